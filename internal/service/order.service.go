package service

import (
	"context"
	"strconv"

	"toyshop/internal/domain"
	"toyshop/internal/repo"
)

// OrderService reads completed carts back as orders.
type OrderService interface {
	ListOrders(ctx context.Context, owner string) ([]domain.OrderView, error)
	GetOrder(ctx context.Context, owner string, id int64) (*domain.OrderView, error)
}

type orderService struct {
	cartRepo repo.CartRepo
	carts    CartService
}

func NewOrderService(cartRepo repo.CartRepo, carts CartService) OrderService {
	return &orderService{cartRepo: cartRepo, carts: carts}
}

func (s *orderService) ListOrders(ctx context.Context, owner string) ([]domain.OrderView, error) {
	completed, err := s.cartRepo.FindByUserAndStatus(ctx, owner, domain.CartCompleted)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.OrderView, 0, len(completed))
	for _, cart := range completed {
		items, err := s.carts.ItemViews(ctx, cart.ID)
		if err != nil {
			return nil, err
		}
		orders = append(orders, domain.NewOrderView(cart, items))
	}
	return orders, nil
}

// GetOrder hides other owners' orders and unfinished carts behind ErrOrderNotFound.
func (s *orderService) GetOrder(ctx context.Context, owner string, id int64) (*domain.OrderView, error) {
	cart, err := s.cartRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.UserID != owner || cart.Status != domain.CartCompleted {
		return nil, ErrOrderNotFound
	}
	items, err := s.carts.ItemViews(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	view := domain.NewOrderView(*cart, items)
	return &view, nil
}

// OrderID is the ledger-side order reference for a cart.
func OrderID(id int64) string {
	return strconv.FormatInt(id, 10)
}
