package usecase

import (
	"net/http"
	"time"

	"theater/internal/domain/model"

	"github.com/shopspring/decimal"
)

const (
	defaultPerPage = 20
	maxPerPage     = 50
)

// 0は未指定扱い
func normalizePage(page, perPage int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = defaultPerPage
	}
	if page < 1 {
		return 0, 0, NewHTTPError(http.StatusBadRequest, CodeBadRequest, "page must be >= 1")
	}
	if perPage < 1 || perPage > maxPerPage {
		return 0, 0, NewHTTPError(http.StatusBadRequest, CodeBadRequest, "per_page must be between 1 and 50")
	}
	return page, perPage, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type MovieRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Year   int    `json:"year,omitempty"`
	Status string `json:"status"`
}

func toMovieRef(m *model.Movie) *MovieRef {
	if m == nil {
		return nil
	}
	return &MovieRef{ID: m.ID, Name: m.Name, Year: m.Year, Status: string(m.Status)}
}

type OrderItemOutput struct {
	ID           int64     `json:"id"`
	MovieID      int64     `json:"movie_id"`
	PriceAtOrder string    `json:"price_at_order"`
	Movie        *MovieRef `json:"movie,omitempty"`
}

type OrderOutput struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Status      string            `json:"status"`
	TotalAmount string            `json:"total_amount"`
	CreatedAt   time.Time         `json:"created_at"`
	Items       []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items   []OrderOutput `json:"items"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

func toOrderOutput(o model.Order) OrderOutput {
	items := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemOutput{
			ID:           it.ID,
			MovieID:      it.MovieID,
			PriceAtOrder: money(it.PriceAtOrder),
			Movie:        toMovieRef(it.Movie),
		})
	}
	return OrderOutput{
		ID:          o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: money(o.TotalAmount),
		CreatedAt:   o.CreatedAt,
		Items:       items,
	}
}

type PaymentItemOutput struct {
	ID             int64     `json:"id"`
	OrderItemID    int64     `json:"order_item_id"`
	MovieID        int64     `json:"movie_id"`
	PriceAtPayment string    `json:"price_at_payment"`
	Movie          *MovieRef `json:"movie,omitempty"`
}

type PaymentOutput struct {
	ID                int64               `json:"id"`
	OrderID           int64               `json:"order_id"`
	Status            string              `json:"status"`
	Amount            string              `json:"amount"`
	ExternalPaymentID *string             `json:"external_payment_id"`
	CreatedAt         time.Time           `json:"created_at"`
	OrderStatus       string              `json:"order_status,omitempty"`
	Items             []PaymentItemOutput `json:"items"`
}

type PaymentListOutput struct {
	Items   []PaymentOutput `json:"items"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

func toPaymentOutput(p model.Payment) PaymentOutput {
	items := make([]PaymentItemOutput, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, PaymentItemOutput{
			ID:             it.ID,
			OrderItemID:    it.OrderItemID,
			MovieID:        it.MovieID,
			PriceAtPayment: money(it.PriceAtPayment),
			Movie:          toMovieRef(it.Movie),
		})
	}
	out := PaymentOutput{
		ID:                p.ID,
		OrderID:           p.OrderID,
		Status:            string(p.Status),
		Amount:            money(p.Amount),
		ExternalPaymentID: p.ExternalPaymentID,
		CreatedAt:         p.CreatedAt,
		Items:             items,
	}
	if p.Order != nil {
		out.OrderStatus = string(p.Order.Status)
	}
	return out
}

type CartItemOutput struct {
	ID        int64     `json:"id"`
	MovieID   int64     `json:"movie_id"`
	Price     string    `json:"price"`
	Available bool      `json:"available"`
	AddedAt   time.Time `json:"added_at"`
	Movie     *MovieRef `json:"movie,omitempty"`
}

type CartOutput struct {
	ID          int64            `json:"id"`
	Items       []CartItemOutput `json:"items"`
	TotalAmount string           `json:"total_amount"`
}

func toCartItemOutput(ci model.CartItem) CartItemOutput {
	out := CartItemOutput{
		ID:      ci.ID,
		MovieID: ci.MovieID,
		AddedAt: ci.AddedAt,
		Movie:   toMovieRef(ci.Movie),
		Price:   money(decimal.Zero),
	}
	if ci.Movie != nil {
		out.Price = money(ci.Movie.Price)
		out.Available = ci.Movie.IsAvailable()
	}
	return out
}
