package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"petshop/models"
)

// IdentityStore persists users and the tokens issued to them.
type IdentityStore struct {
	db *gorm.DB
}

func NewIdentityStore(db *gorm.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hashed), nil
}

func CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

// List returns all users, newest first.
func (s *IdentityStore) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&users).Error
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

func (s *IdentityStore) Find(ctx context.Context, id uint) (*models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *IdentityStore) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return &user, nil
}

// EmailTaken reports whether another user than exceptID already uses email.
func (s *IdentityStore) EmailTaken(ctx context.Context, email string, exceptID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&count).
		Error
	if err != nil {
		return false, errors.Wrap(err, "check email")
	}
	return count > 0, nil
}

func (s *IdentityStore) Create(ctx context.Context, user *models.User) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(user).Error, "create user")
}

func (s *IdentityStore) Update(ctx context.Context, user *models.User) error {
	return errors.Wrapf(s.db.WithContext(ctx).Save(user).Error, "update user %d", user.ID)
}

// Delete removes the user and everything the user owns: cart lines, wishlist
// entries and login tokens.
func (s *IdentityStore) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.User{}, id)
		if result.Error != nil {
			return errors.Wrapf(result.Error, "delete user %d", id)
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}

		owned := []interface{}{&models.CartLine{}, &models.WishlistEntry{}, &models.LoginToken{}}
		for _, model := range owned {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return errors.Wrap(err, "delete rows owned by user")
			}
		}
		return nil
	})
}

func (s *IdentityStore) SaveToken(ctx context.Context, token *models.LoginToken) error {
	return errors.Wrap(s.db.WithContext(ctx).Create(token).Error, "save login token")
}

// TokenActive reports whether token was issued, not revoked, and not expired.
func (s *IdentityStore) TokenActive(ctx context.Context, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.LoginToken{}).
		Where("token = ? AND expiration_time > ?", token, time.Now()).
		Count(&count).
		Error
	if err != nil {
		return false, errors.Wrap(err, "check login token")
	}
	return count > 0, nil
}

// DeleteToken revokes token and reports whether it existed.
func (s *IdentityStore) DeleteToken(ctx context.Context, token string) (bool, error) {
	result := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.LoginToken{})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "delete login token")
	}
	return result.RowsAffected > 0, nil
}

// RevokeTokens logs the user out of every session and returns how many
// tokens went away.
func (s *IdentityStore) RevokeTokens(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.LoginToken{})
	if result.Error != nil {
		return 0, errors.Wrapf(result.Error, "revoke login tokens of user %d", userID)
	}
	return result.RowsAffected, nil
}

func (s *IdentityStore) PurgeExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expiration_time <= ?", now).Delete(&models.LoginToken{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "purge expired login tokens")
	}
	return result.RowsAffected, nil
}

// EnsureAdmin creates an administrator with the given credentials unless one
// already exists. It reports whether a user was created.
func (s *IdentityStore) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count admins")
	}
	if count > 0 {
		return false, nil
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return false, err
	}
	if name == "" {
		name = "Administrator"
	}
	admin := &models.User{Name: name, Email: email, Password: hashed, Role: models.RoleAdmin}
	if err := s.Create(ctx, admin); err != nil {
		return false, err
	}
	zap.S().Infow("seeded administrator", "email", email)
	return true, nil
}
