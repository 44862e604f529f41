package mirror

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	bucketName   = []byte("mirror")
	cartKey      = []byte("cart")
	favoritesKey = []byte("favorites")
)

// BoltRepository persists the mirror in a bbolt file so guest state survives
// restarts of the client.
type BoltRepository struct {
	db *bolt.DB
}

func OpenBoltRepository(path string) (*BoltRepository, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create mirror bucket")
	}
	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}

func (r *BoltRepository) Cart(ctx context.Context) ([]Line, error) {
	lines := []Line{}
	if err := r.get(cartKey, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *BoltRepository) SetCart(ctx context.Context, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	return r.put(cartKey, lines)
}

func (r *BoltRepository) Favorites(ctx context.Context) ([]uint, error) {
	ids := []uint{}
	if err := r.get(favoritesKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *BoltRepository) SetFavorites(ctx context.Context, productIDs []uint) error {
	if productIDs == nil {
		productIDs = []uint{}
	}
	return r.put(favoritesKey, productIDs)
}

func (r *BoltRepository) get(key []byte, v interface{}) error {
	return r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(key)
		if raw == nil {
			return nil
		}
		return errors.Wrapf(json.Unmarshal(raw, v), "decode %s", key)
	})
}

func (r *BoltRepository) put(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, raw)
	})
}
