package mirror

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var errNetwork = errors.New("dial tcp: connection refused")

type fakeRemote struct {
	token     string
	cart      []Line
	wishlist  []uint
	addErr    error
	cartErr   error
	favErr    error
	merged    [][]Line
	calls     map[string]int
	loginFail error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{token: "tok", calls: map[string]int{}}
}

func (f *fakeRemote) Login(ctx context.Context, email, password string) (string, error) {
	f.calls["login"]++
	if f.loginFail != nil {
		return "", f.loginFail
	}
	return f.token, nil
}

func (f *fakeRemote) Register(ctx context.Context, name, email, password string) (string, error) {
	f.calls["register"]++
	return f.token, nil
}

func (f *fakeRemote) Logout(ctx context.Context, token string) error {
	f.calls["logout"]++
	return nil
}

func (f *fakeRemote) Cart(ctx context.Context, token string) ([]Line, error) {
	f.calls["cart"]++
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	return append([]Line{}, f.cart...), nil
}

func (f *fakeRemote) AddToCart(ctx context.Context, token string, productID uint, quantity int) error {
	f.calls["add"]++
	if f.addErr != nil {
		return f.addErr
	}
	f.cart = addLine(f.cart, Product{ID: productID}, quantity)
	return nil
}

func (f *fakeRemote) MergeCart(ctx context.Context, token string, lines []Line) ([]Line, error) {
	f.calls["merge"]++
	f.merged = append(f.merged, lines)
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	for _, line := range lines {
		f.cart = addLine(f.cart, Product{ID: line.ProductID, Name: line.Name, Price: line.Price}, line.Quantity)
	}
	return append([]Line{}, f.cart...), nil
}

func (f *fakeRemote) Wishlist(ctx context.Context, token string) ([]uint, error) {
	f.calls["wishlist"]++
	if f.favErr != nil {
		return nil, f.favErr
	}
	return append([]uint{}, f.wishlist...), nil
}

func (f *fakeRemote) AddFavorite(ctx context.Context, token string, productID uint) error {
	f.calls["favorite"]++
	if f.favErr != nil {
		return f.favErr
	}
	f.wishlist = append(f.wishlist, productID)
	return nil
}

func (f *fakeRemote) RemoveFavorite(ctx context.Context, token string, productID uint) error {
	f.calls["unfavorite"]++
	if f.favErr != nil {
		return f.favErr
	}
	f.wishlist, _ = toggle(f.wishlist, productID)
	return nil
}

var (
	kibble = Product{ID: 1, Name: "Kibble", Price: decimal.RequireFromString("9.99"), Image: "/img/kibble.png"}
	leash  = Product{ID: 2, Name: "Leash", Price: decimal.RequireFromString("7.00")}
)

func quantities(lines []Line) map[uint]int {
	out := map[uint]int{}
	for _, line := range lines {
		out[line.ProductID] = line.Quantity
	}
	return out
}

func TestGuestMutationsStayLocal(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote)

	if _, err := m.AddToCart(ctx, kibble, 2); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if _, err := m.AddToCart(ctx, kibble, 1); err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	favorite, _, err := m.ToggleFavorite(ctx, 2)
	if err != nil || !favorite {
		t.Fatalf("ToggleFavorite = %v, %v", favorite, err)
	}

	lines, _ := m.Cart(ctx)
	if len(lines) != 1 || lines[0].Quantity != 3 || lines[0].Image != "/img/kibble.png" {
		t.Fatalf("local cart = %+v", lines)
	}
	if len(remote.calls) != 0 {
		t.Fatalf("guest touched the server: %v", remote.calls)
	}

	favorite, _, _ = m.ToggleFavorite(ctx, 2)
	if favorite {
		t.Fatal("second toggle should unfavorite")
	}
}

func TestLoginServerWinsReplacesLocalState(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.cart = []Line{{ProductID: 2, Name: "Leash", Price: leash.Price, Quantity: 4}}
	remote.wishlist = []uint{7}
	m := New(NewMemoryRepository(), remote)

	m.AddToCart(ctx, kibble, 2)
	m.ToggleFavorite(ctx, 3)

	if err := m.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !m.Authenticated() {
		t.Fatal("not authenticated after login")
	}

	local, _ := m.repo.Cart(ctx)
	if q := quantities(local); len(q) != 1 || q[2] != 4 {
		t.Fatalf("local cart after login = %+v", local)
	}
	favorites, _ := m.repo.Favorites(ctx)
	if len(favorites) != 1 || favorites[0] != 7 {
		t.Fatalf("favorites after login = %v", favorites)
	}
	if remote.calls["cart"] != 1 || remote.calls["wishlist"] != 1 || remote.calls["merge"] != 0 {
		t.Fatalf("login calls = %v", remote.calls)
	}
}

func TestLoginKeepsLocalCartWhenServerUnreachable(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.cartErr = errNetwork
	remote.favErr = errNetwork
	m := New(NewMemoryRepository(), remote)

	m.AddToCart(ctx, kibble, 2)
	m.ToggleFavorite(ctx, 3)
	if err := m.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	lines, err := m.Cart(ctx)
	if err != nil || quantities(lines)[1] != 2 {
		t.Fatalf("cart = %+v, %v", lines, err)
	}
	favorites, _ := m.Favorites(ctx)
	if len(favorites) != 1 || favorites[0] != 3 {
		t.Fatalf("favorites = %v", favorites)
	}
}

func TestLoginPushLocalMergesOnce(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.cart = []Line{{ProductID: 1, Name: "Kibble", Price: kibble.Price, Quantity: 1}}
	m := New(NewMemoryRepository(), remote, WithMergePolicy(PushLocal))

	m.AddToCart(ctx, kibble, 2)
	m.AddToCart(ctx, leash, 1)
	if err := m.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(remote.merged) != 1 || len(remote.merged[0]) != 2 {
		t.Fatalf("merged batches = %+v", remote.merged)
	}

	local, _ := m.repo.Cart(ctx)
	if q := quantities(local); q[1] != 3 || q[2] != 1 {
		t.Fatalf("local after merge = %+v", local)
	}

	if _, err := m.Cart(ctx); err != nil {
		t.Fatalf("Cart: %v", err)
	}
	if remote.calls["merge"] != 1 {
		t.Fatalf("merge ran %d times", remote.calls["merge"])
	}
}

func TestPushLocalSkipsLinesAlreadyOnServer(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote, WithMergePolicy(PushLocal))

	m.AddToCart(ctx, kibble, 2)
	if err := m.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	m.Logout(ctx)
	if err := m.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if q := quantities(remote.cart); q[1] != 2 || remote.calls["merge"] != 1 {
		t.Fatalf("server cart after login/logout/login = %v, merges = %d", q, remote.calls["merge"])
	}

	// only what the guest adds after logging out is pushed next time
	m.Logout(ctx)
	m.AddToCart(ctx, leash, 1)
	if err := m.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("third Login: %v", err)
	}
	if len(remote.merged) != 2 || len(remote.merged[1]) != 1 || remote.merged[1][0].ProductID != leash.ID {
		t.Fatalf("merged batches = %+v", remote.merged)
	}
	if q := quantities(remote.cart); q[1] != 2 || q[2] != 1 {
		t.Fatalf("server cart = %v", q)
	}
}

func TestPushLocalCarriesOfflineAdds(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote, WithMergePolicy(PushLocal))
	m.Login(ctx, "a@b.c", "pw")
	m.AddToCart(ctx, kibble, 1)

	remote.addErr = errNetwork
	if wentOffline, _ := m.AddToCart(ctx, kibble, 2); !wentOffline {
		t.Fatal("add should have gone offline")
	}
	remote.addErr = nil

	m.Logout(ctx)
	if err := m.Login(ctx, "a@b.c", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(remote.merged) != 1 || quantities(remote.merged[0])[1] != 2 {
		t.Fatalf("merged batches = %+v", remote.merged)
	}
	local, _ := m.repo.Cart(ctx)
	if q := quantities(local); q[1] != 3 || len(pendingLines(local)) != 0 {
		t.Fatalf("local after merge = %+v", local)
	}
}

func TestAddToCartRejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote)

	for _, quantity := range []int{0, -3} {
		if _, err := m.AddToCart(ctx, kibble, quantity); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("AddToCart(%d) err = %v", quantity, err)
		}
	}
	m.Login(ctx, "a@b.c", "pw")
	if _, err := m.AddToCart(ctx, kibble, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("authenticated AddToCart(0) err = %v", err)
	}
	local, _ := m.repo.Cart(ctx)
	if len(local) != 0 || remote.calls["add"] != 0 {
		t.Fatalf("local %+v, calls %v", local, remote.calls)
	}
}

func TestFailedLoginStaysGuest(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.loginFail = &StatusError{Code: 401, Message: "Invalid credentials"}
	m := New(NewMemoryRepository(), remote)

	if err := m.Login(ctx, "a@b.c", "bad"); err == nil {
		t.Fatal("login should fail")
	}
	if m.Authenticated() || remote.calls["cart"] != 0 {
		t.Fatalf("failed login changed state: %v", remote.calls)
	}
}

func TestAuthenticatedAddWritesThrough(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote)
	m.Login(ctx, "a@b.c", "pw")

	wentOffline, err := m.AddToCart(ctx, kibble, 2)
	if err != nil || wentOffline {
		t.Fatalf("AddToCart = %v, %v", wentOffline, err)
	}
	local, _ := m.repo.Cart(ctx)
	if quantities(remote.cart)[1] != 2 || quantities(local)[1] != 2 {
		t.Fatalf("server %+v local %+v", remote.cart, local)
	}
}

func TestAuthenticatedAddFallsBackOffline(t *testing.T) {
	for name, failure := range map[string]error{
		"network":      errNetwork,
		"unauthorized": ErrUnauthorized,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			remote := newFakeRemote()
			m := New(NewMemoryRepository(), remote)
			m.Login(ctx, "a@b.c", "pw")
			remote.addErr = failure

			wentOffline, err := m.AddToCart(ctx, kibble, 1)
			if err != nil || !wentOffline {
				t.Fatalf("AddToCart = %v, %v", wentOffline, err)
			}
			local, _ := m.repo.Cart(ctx)
			if quantities(local)[1] != 1 {
				t.Fatalf("local = %+v", local)
			}
		})
	}
}

func TestServerRefusalLeavesLocalUnchanged(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote)
	m.Login(ctx, "a@b.c", "pw")

	available := 5
	remote.addErr = &StatusError{Code: 400, Message: "Insufficient stock", Available: &available}
	_, err := m.AddToCart(ctx, kibble, 6)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || *statusErr.Available != 5 {
		t.Fatalf("err = %v", err)
	}
	local, _ := m.repo.Cart(ctx)
	if len(local) != 0 {
		t.Fatalf("local = %+v", local)
	}
}

func TestAuthenticatedToggleFavorite(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote)
	m.Login(ctx, "a@b.c", "pw")

	favorite, _, err := m.ToggleFavorite(ctx, 4)
	if err != nil || !favorite || len(remote.wishlist) != 1 {
		t.Fatalf("add favorite = %v, %v, server %v", favorite, err, remote.wishlist)
	}
	favorite, _, err = m.ToggleFavorite(ctx, 4)
	if err != nil || favorite || len(remote.wishlist) != 0 {
		t.Fatalf("remove favorite = %v, %v, server %v", favorite, err, remote.wishlist)
	}
	if remote.calls["favorite"] != 1 || remote.calls["unfavorite"] != 1 {
		t.Fatalf("calls = %v", remote.calls)
	}
}

func TestLogoutKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	m := New(NewMemoryRepository(), remote)
	m.Login(ctx, "a@b.c", "pw")
	m.AddToCart(ctx, kibble, 1)

	m.Logout(ctx)
	if m.Authenticated() || remote.calls["logout"] != 1 {
		t.Fatalf("logout calls = %v", remote.calls)
	}
	lines, _ := m.Cart(ctx)
	if quantities(lines)[1] != 1 {
		t.Fatalf("cart after logout = %+v", lines)
	}
}

func TestBoltRepositoryPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mirror.db")

	repo, err := OpenBoltRepository(path)
	if err != nil {
		t.Fatalf("OpenBoltRepository: %v", err)
	}
	empty, err := repo.Cart(ctx)
	if err != nil || len(empty) != 0 {
		t.Fatalf("fresh cart = %+v, %v", empty, err)
	}

	m := New(repo, newFakeRemote())
	m.AddToCart(ctx, kibble, 2)
	m.ToggleFavorite(ctx, 9)
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	repo, err = OpenBoltRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	lines, err := repo.Cart(ctx)
	if err != nil || len(lines) != 1 || lines[0].Quantity != 2 || !lines[0].Price.Equal(kibble.Price) {
		t.Fatalf("cart = %+v, %v", lines, err)
	}
	favorites, err := repo.Favorites(ctx)
	if err != nil || len(favorites) != 1 || favorites[0] != 9 {
		t.Fatalf("favorites = %v, %v", favorites, err)
	}
}
