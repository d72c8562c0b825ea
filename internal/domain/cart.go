package domain

import (
	"time"
)

type CartStatus string

const (
	CartActive         CartStatus = "ACTIVE"
	CartPendingPayment CartStatus = "PENDING_PAYMENT"
	CartCompleted      CartStatus = "COMPLETED"
)

// CanTransitionTo reports whether the checkout saga allows moving from s to next.
func (s CartStatus) CanTransitionTo(next CartStatus) bool {
	switch s {
	case CartActive:
		return next == CartPendingPayment
	case CartPendingPayment:
		return next == CartCompleted || next == CartActive
	default:
		return false
	}
}

func (s CartStatus) String() string {
	return string(s)
}

// Cart becomes an order record once it reaches COMPLETED.
type Cart struct {
	ID        int64
	UserID    string
	Status    CartStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
}

type CartItemView struct {
	ProductID  int64  `json:"productId"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl"`
	Quantity   int    `json:"quantity"`
	Price      int64  `json:"price"`
	TotalPrice int64  `json:"totalPrice"`
}

func NewCartItemView(item CartItem, product Product) CartItemView {
	return CartItemView{
		ProductID:  product.ID,
		Name:       product.Name,
		ImageURL:   product.ImageURL,
		Quantity:   item.Quantity,
		Price:      product.Price,
		TotalPrice: product.Price * int64(item.Quantity),
	}
}

type CartView struct {
	Items       []CartItemView `json:"items"`
	TotalAmount int64          `json:"totalAmount"`
}

func NewCartView(items []CartItemView) CartView {
	if items == nil {
		items = []CartItemView{}
	}
	var total int64
	for _, item := range items {
		total += item.TotalPrice
	}
	return CartView{Items: items, TotalAmount: total}
}

func (v CartView) TotalQuantity() int {
	n := 0
	for _, item := range v.Items {
		n += item.Quantity
	}
	return n
}

type OrderView struct {
	ID          int64          `json:"id"`
	Status      CartStatus     `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	Items       []CartItemView `json:"items"`
	TotalAmount int64          `json:"totalAmount"`
}

func NewOrderView(cart Cart, items []CartItemView) OrderView {
	view := NewCartView(items)
	return OrderView{
		ID:          cart.ID,
		Status:      cart.Status,
		CreatedAt:   cart.CreatedAt,
		Items:       view.Items,
		TotalAmount: view.TotalAmount,
	}
}
