package mirror

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Line is a cart line as the client keeps it: keyed by product id, since a
// guest has no server line ids.
type Line struct {
	ProductID uint            `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	// Pending is the part of Quantity the server has not seen: added as a
	// guest or while offline.
	Pending   int             `json:"pending,omitempty"`
}

// Product is what the storefront knows about a product when it is added.
type Product struct {
	ID    uint
	Name  string
	Price decimal.Decimal
	Image string
}

// Repository is the client-local store behind the mirror.
type Repository interface {
	Cart(ctx context.Context) ([]Line, error)
	SetCart(ctx context.Context, lines []Line) error
	Favorites(ctx context.Context) ([]uint, error)
	SetFavorites(ctx context.Context, productIDs []uint) error
}

// MemoryRepository keeps the mirror in process memory.
type MemoryRepository struct {
	mu        sync.Mutex
	cart      []Line
	favorites []uint
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Cart(ctx context.Context) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Line{}, r.cart...), nil
}

func (r *MemoryRepository) SetCart(ctx context.Context, lines []Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cart = append([]Line{}, lines...)
	return nil
}

func (r *MemoryRepository) Favorites(ctx context.Context) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint{}, r.favorites...), nil
}

func (r *MemoryRepository) SetFavorites(ctx context.Context, productIDs []uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.favorites = append([]uint{}, productIDs...)
	return nil
}

// addLine adds quantity to the line for product, creating it when absent.
func addLine(lines []Line, product Product, quantity int) []Line {
	for i := range lines {
		if lines[i].ProductID == product.ID {
			lines[i].Quantity += quantity
			return lines
		}
	}
	return append(lines, Line{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.Image,
		Quantity:  quantity,
	})
}

// markPending records that quantity of productID was added locally only.
func markPending(lines []Line, productID uint, quantity int) []Line {
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Pending += quantity
		}
	}
	return lines
}

// pendingLines returns the lines carrying quantities the server has not
// seen, with Quantity set to just that part.
func pendingLines(lines []Line) []Line {
	var out []Line
	for _, line := range lines {
		if line.Pending > 0 {
			line.Quantity = line.Pending
			line.Pending = 0
			out = append(out, line)
		}
	}
	return out
}

// toggle flips membership of id and reports whether it is now present.
func toggle(ids []uint, id uint) ([]uint, bool) {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...), false
		}
	}
	return append(ids, id), true
}

func contains(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
