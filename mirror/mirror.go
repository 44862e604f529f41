package mirror

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MergePolicy decides what happens to the local cart when a guest logs in.
type MergePolicy int

const (
	// ServerWins replaces the local cart with the server cart when it can be
	// fetched and keeps the local cart otherwise.
	ServerWins MergePolicy = iota
	// PushLocal folds the quantities added as a guest or offline into the
	// server cart first, then keeps the merged result.
	PushLocal
)

func (p MergePolicy) String() string {
	switch p {
	case ServerWins:
		return "server-wins"
	case PushLocal:
		return "push-local"
	default:
		return "unknown"
	}
}

// ErrInvalidQuantity is returned for additions of less than one unit.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type Option func(*Mirror)

func WithMergePolicy(policy MergePolicy) Option {
	return func(m *Mirror) {
		m.policy = policy
	}
}

// Mirror keeps the client copy of the cart and the favorites. A guest only
// touches the repository; once logged in the server is the authority and the
// repository is the offline copy.
type Mirror struct {
	mu     sync.Mutex
	repo   Repository
	remote Remote
	policy MergePolicy
	token  string
}

func New(repo Repository, remote Remote, opts ...Option) *Mirror {
	m := &Mirror{repo: repo, remote: remote, policy: ServerWins}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mirror) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// offline reports whether err means the server could not be used, as opposed
// to the server refusing the request.
func offline(err error) bool {
	var statusErr *StatusError
	return err != nil && !errors.As(err, &statusErr)
}

// AddToCart adds quantity of product. It reports offline when the server was
// unreachable or rejected the token and the line was kept locally only. A
// refusal such as insufficient stock is returned and leaves the local cart
// untouched.
func (m *Mirror) AddToCart(ctx context.Context, product Product, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if quantity < 1 {
		return false, ErrInvalidQuantity
	}

	wentOffline := false
	if m.token != "" {
		err := m.remote.AddToCart(ctx, m.token, product.ID, quantity)
		if err != nil && !offline(err) {
			return false, err
		}
		if err != nil {
			zap.S().Warnw("add to cart offline", "product_id", product.ID, "error", err)
			wentOffline = true
		}
	}

	lines, err := m.repo.Cart(ctx)
	if err != nil {
		return wentOffline, err
	}
	lines = addLine(lines, product, quantity)
	if m.token == "" || wentOffline {
		lines = markPending(lines, product.ID, quantity)
	}
	return wentOffline, m.repo.SetCart(ctx, lines)
}

// ToggleFavorite flips productID in the favorites and reports whether it is
// now a favorite.
func (m *Mirror) ToggleFavorite(ctx context.Context, productID uint) (favorite, wentOffline bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.repo.Favorites(ctx)
	if err != nil {
		return false, false, err
	}

	if m.token != "" {
		var remoteErr error
		if contains(ids, productID) {
			remoteErr = m.remote.RemoveFavorite(ctx, m.token, productID)
		} else {
			remoteErr = m.remote.AddFavorite(ctx, m.token, productID)
		}
		if remoteErr != nil && !offline(remoteErr) {
			return contains(ids, productID), false, remoteErr
		}
		if remoteErr != nil {
			zap.S().Warnw("toggle favorite offline", "product_id", productID, "error", remoteErr)
			wentOffline = true
		}
	}

	ids, favorite = toggle(ids, productID)
	return favorite, wentOffline, m.repo.SetFavorites(ctx, ids)
}

// Cart returns the server cart when logged in and reachable, refreshing the
// local copy, and the local copy otherwise.
func (m *Mirror) Cart(ctx context.Context) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" {
		lines, err := m.remote.Cart(ctx, m.token)
		if err == nil {
			return lines, m.repo.SetCart(ctx, lines)
		}
		zap.S().Warnw("fetch cart, using local copy", "error", err)
	}
	return m.repo.Cart(ctx)
}

func (m *Mirror) Favorites(ctx context.Context) ([]uint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" {
		ids, err := m.remote.Wishlist(ctx, m.token)
		if err == nil {
			return ids, m.repo.SetFavorites(ctx, ids)
		}
		zap.S().Warnw("fetch wishlist, using local copy", "error", err)
	}
	return m.repo.Favorites(ctx)
}

func (m *Mirror) Login(ctx context.Context, email, password string) error {
	token, err := m.remote.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return m.authenticate(ctx, token)
}

func (m *Mirror) Register(ctx context.Context, name, email, password string) error {
	token, err := m.remote.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	return m.authenticate(ctx, token)
}

// authenticate switches the mirror to token and reconciles local and server
// state. It is the only place the merge runs.
func (m *Mirror) authenticate(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token

	// the server wishlist is authoritative; guest favorites are dropped
	ids, err := m.remote.Wishlist(ctx, token)
	if err != nil {
		zap.S().Warnw("fetch wishlist at login, keeping local favorites", "error", err)
	} else if err := m.repo.SetFavorites(ctx, ids); err != nil {
		return err
	}

	var lines []Line
	switch m.policy {
	case PushLocal:
		local, err := m.repo.Cart(ctx)
		if err != nil {
			return err
		}
		// lines already mirrored from the server are not pushed again
		if pending := pendingLines(local); len(pending) == 0 {
			lines, err = m.remote.Cart(ctx, token)
		} else {
			lines, err = m.remote.MergeCart(ctx, token, pending)
		}
		if err != nil {
			zap.S().Warnw("merge cart at login, keeping local cart", "policy", m.policy.String(), "error", err)
			return nil
		}
	default:
		lines, err = m.remote.Cart(ctx, token)
		if err != nil {
			zap.S().Warnw("fetch cart at login, keeping local cart", "policy", m.policy.String(), "error", err)
			return nil
		}
	}
	return m.repo.SetCart(ctx, lines)
}

// Logout revokes the session on the server when possible. The local copies
// stay as they are.
func (m *Mirror) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" {
		return
	}
	if err := m.remote.Logout(ctx, m.token); err != nil {
		zap.S().Warnw("logout", "error", err)
	}
	m.token = ""
}
