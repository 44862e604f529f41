package mirror

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/dataflow"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrUnauthorized is returned when the server no longer accepts the token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a request the server understood and refused.
type StatusError struct {
	Code      int
	Message   string
	Available *int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Remote is the storefront API as the mirror uses it.
type Remote interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, name, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
	Cart(ctx context.Context, token string) ([]Line, error)
	AddToCart(ctx context.Context, token string, productID uint, quantity int) error
	MergeCart(ctx context.Context, token string, lines []Line) ([]Line, error)
	Wishlist(ctx context.Context, token string) ([]uint, error)
	AddFavorite(ctx context.Context, token string, productID uint) error
	RemoveFavorite(ctx context.Context, token string, productID uint) error
}

// HTTPRemote talks to the REST API mounted under baseURL + "/api".
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

func NewHTTPRemote(baseURL string, timeout time.Duration) *HTTPRemote {
	return &HTTPRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type wireSummary struct {
	ID    uint            `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image *string         `json:"image"`
}

type wireCart struct {
	Items []struct {
		ProductID uint        `json:"product_id"`
		Product   wireSummary `json:"product"`
		Quantity  int         `json:"quantity"`
	} `json:"items"`
}

func (w *wireCart) lines() []Line {
	lines := make([]Line, 0, len(w.Items))
	for _, item := range w.Items {
		line := Line{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			Price:     item.Product.Price,
			Quantity:  item.Quantity,
		}
		if item.Product.Image != nil {
			line.Image = *item.Product.Image
		}
		lines = append(lines, line)
	}
	return lines
}

type wireSession struct {
	Token string `json:"token"`
}

func (r *HTTPRemote) Login(ctx context.Context, email, password string) (string, error) {
	var session wireSession
	body := gout.H{"email": email, "password": password}
	if err := r.call(ctx, http.MethodPost, "/login", "", body, &session); err != nil {
		return "", err
	}
	return session.Token, nil
}

func (r *HTTPRemote) Register(ctx context.Context, name, email, password string) (string, error) {
	var session wireSession
	body := gout.H{"name": name, "email": email, "password": password}
	if err := r.call(ctx, http.MethodPost, "/register", "", body, &session); err != nil {
		return "", err
	}
	return session.Token, nil
}

func (r *HTTPRemote) Logout(ctx context.Context, token string) error {
	return r.call(ctx, http.MethodPost, "/logout", token, nil, nil)
}

func (r *HTTPRemote) Cart(ctx context.Context, token string) ([]Line, error) {
	var cart wireCart
	if err := r.call(ctx, http.MethodGet, "/cart", token, nil, &cart); err != nil {
		return nil, err
	}
	return cart.lines(), nil
}

func (r *HTTPRemote) AddToCart(ctx context.Context, token string, productID uint, quantity int) error {
	body := gout.H{"product_id": productID, "quantity": quantity}
	return r.call(ctx, http.MethodPost, "/cart", token, body, nil)
}

func (r *HTTPRemote) MergeCart(ctx context.Context, token string, lines []Line) ([]Line, error) {
	items := make([]gout.H, 0, len(lines))
	for _, line := range lines {
		items = append(items, gout.H{"product_id": line.ProductID, "quantity": line.Quantity})
	}

	var cart wireCart
	if err := r.call(ctx, http.MethodPost, "/cart/merge", token, gout.H{"items": items}, &cart); err != nil {
		return nil, err
	}
	return cart.lines(), nil
}

func (r *HTTPRemote) Wishlist(ctx context.Context, token string) ([]uint, error) {
	var entries []struct {
		ProductID uint `json:"product_id"`
	}
	if err := r.call(ctx, http.MethodGet, "/wishlist", token, nil, &entries); err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ProductID)
	}
	return ids, nil
}

func (r *HTTPRemote) AddFavorite(ctx context.Context, token string, productID uint) error {
	return r.call(ctx, http.MethodPost, "/wishlist", token, gout.H{"product_id": productID}, nil)
}

func (r *HTTPRemote) RemoveFavorite(ctx context.Context, token string, productID uint) error {
	path := fmt.Sprintf("/wishlist/0?product_id=%d", productID)
	return r.call(ctx, http.MethodDelete, path, token, nil, nil)
}

// call performs one request. Transport failures come back as plain errors,
// 401 as ErrUnauthorized and other non-2xx answers as *StatusError.
func (r *HTTPRemote) call(ctx context.Context, method, path, token string, body, out interface{}) error {
	url := r.baseURL + "/api" + path

	header := gout.H{"Accept": "application/json"}
	if token != "" {
		header["Authorization"] = "Bearer " + token
	}

	var raw string
	var code int
	req := r.flow(method, url).WithContext(ctx).SetHeader(header)
	if body != nil {
		req = req.SetJSON(body)
	}
	if err := req.BindBody(&raw).Code(&code).Do(); err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}

	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code < 200 || code > 299:
		statusErr := &StatusError{Code: code}
		var payload struct {
			Message   string `json:"message"`
			Available *int   `json:"available"`
		}
		if json.UnmarshalFromString(raw, &payload) == nil {
			statusErr.Message = payload.Message
			statusErr.Available = payload.Available
		}
		return statusErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrapf(json.UnmarshalFromString(raw, out), "decode %s %s", method, path)
}

func (r *HTTPRemote) flow(method, url string) *dataflow.DataFlow {
	client := gout.New(r.client)
	switch method {
	case http.MethodPost:
		return client.POST(url)
	case http.MethodPut:
		return client.PUT(url)
	case http.MethodDelete:
		return client.DELETE(url)
	default:
		return client.GET(url)
	}
}
