package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toyshop/internal/domain"
	"toyshop/internal/repo"

	"github.com/sirupsen/logrus"
)

type CartService interface {
	// GetActiveCart returns the owner's ACTIVE cart, creating it on first use.
	GetActiveCart(ctx context.Context, owner string) (*domain.Cart, error)
	// FindActiveCart never creates; nil means the owner has no ACTIVE cart.
	FindActiveCart(ctx context.Context, owner string) (*domain.Cart, error)
	AddProduct(ctx context.Context, owner string, productID int64) error
	DecreaseProduct(ctx context.Context, owner string, productID int64) error
	IncreaseProduct(ctx context.Context, owner string, productID int64) error
	RemoveProduct(ctx context.Context, owner string, productID int64) error
	GetCartView(ctx context.Context, owner string) (domain.CartView, error)
	ItemViews(ctx context.Context, cartID int64) ([]domain.CartItemView, error)
	// Checkout moves the ACTIVE cart to PENDING_PAYMENT, freezing its items.
	Checkout(ctx context.Context, owner string) (*domain.Cart, error)
	CompleteCheckout(ctx context.Context, cartID int64) error
	RevertCheckout(ctx context.Context, cartID int64) error
}

type cartService struct {
	cartRepo     repo.CartRepo
	cartItemRepo repo.CartItemRepo
	productRepo  repo.ProductRepo
	logger       logrus.FieldLogger
}

func NewCartService(
	cartRepo repo.CartRepo,
	cartItemRepo repo.CartItemRepo,
	productRepo repo.ProductRepo,
	logger logrus.FieldLogger,
) CartService {
	return &cartService{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		logger:       logger,
	}
}

func (s *cartService) GetActiveCart(ctx context.Context, owner string) (*domain.Cart, error) {
	open, err := s.cartRepo.FindOpenByUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return activeOrBusy(open)
	}

	now := time.Now()
	cart := &domain.Cart{UserID: owner, Status: domain.CartActive, CreatedAt: now, UpdatedAt: now}
	err = s.cartRepo.CreateCart(ctx, nil, cart)
	if repo.IsUniqueViolation(err) {
		// a concurrent request created it first
		open, err = s.cartRepo.FindOpenByUser(ctx, owner)
		if err != nil {
			return nil, err
		}
		if open == nil {
			return nil, fmt.Errorf("open cart for %s vanished after conflict", owner)
		}
		return activeOrBusy(open)
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"owner": owner, "cart_id": cart.ID}).Debug("created cart")
	return cart, nil
}

func activeOrBusy(cart *domain.Cart) (*domain.Cart, error) {
	if cart.Status == domain.CartPendingPayment {
		return nil, ErrCheckoutInProgress
	}
	return cart, nil
}

func (s *cartService) FindActiveCart(ctx context.Context, owner string) (*domain.Cart, error) {
	open, err := s.cartRepo.FindOpenByUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if open == nil || open.Status != domain.CartActive {
		return nil, nil
	}
	return open, nil
}

func (s *cartService) AddProduct(ctx context.Context, owner string, productID int64) error {
	cart, err := s.GetActiveCart(ctx, owner)
	if err != nil {
		return err
	}
	return s.increment(ctx, cart, productID)
}

func (s *cartService) IncreaseProduct(ctx context.Context, owner string, productID int64) error {
	cart, err := s.FindActiveCart(ctx, owner)
	if err != nil || cart == nil {
		return err
	}
	return s.increment(ctx, cart, productID)
}

// increment adds one unit unless the line already holds the whole stock.
func (s *cartService) increment(ctx context.Context, cart *domain.Cart, productID int64) error {
	product, err := s.productRepo.FindById(ctx, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return ErrProductNotFound
	}

	item, err := s.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, productID)
	if err != nil {
		return err
	}
	if item == nil {
		if product.Quantity < 1 {
			return nil
		}
		err = s.cartItemRepo.CreateItem(ctx, &domain.CartItem{CartID: cart.ID, ProductID: productID, Quantity: 1})
		if !repo.IsUniqueViolation(err) {
			return lineWriteErr(err)
		}
		// a concurrent add created the line first
		item, err = s.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("cart %d line for product %d vanished after conflict", cart.ID, productID)
		}
	}
	if item.Quantity >= product.Quantity {
		return nil
	}
	return lineWriteErr(s.cartItemRepo.UpdateQuantity(ctx, item.ID, item.Quantity+1))
}

// lineWriteErr reports a write that lost the race against checkout as
// ErrCheckoutInProgress.
func lineWriteErr(err error) error {
	if errors.Is(err, repo.ErrCartNotActive) {
		return ErrCheckoutInProgress
	}
	return err
}

func (s *cartService) DecreaseProduct(ctx context.Context, owner string, productID int64) error {
	item, err := s.activeItem(ctx, owner, productID)
	if err != nil || item == nil {
		return err
	}
	if item.Quantity <= 1 {
		return lineWriteErr(s.cartItemRepo.DeleteItem(ctx, item.ID))
	}
	return lineWriteErr(s.cartItemRepo.UpdateQuantity(ctx, item.ID, item.Quantity-1))
}

func (s *cartService) RemoveProduct(ctx context.Context, owner string, productID int64) error {
	item, err := s.activeItem(ctx, owner, productID)
	if err != nil || item == nil {
		return err
	}
	return lineWriteErr(s.cartItemRepo.DeleteItem(ctx, item.ID))
}

func (s *cartService) activeItem(ctx context.Context, owner string, productID int64) (*domain.CartItem, error) {
	cart, err := s.FindActiveCart(ctx, owner)
	if err != nil || cart == nil {
		return nil, err
	}
	return s.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, productID)
}

func (s *cartService) GetCartView(ctx context.Context, owner string) (domain.CartView, error) {
	cart, err := s.FindActiveCart(ctx, owner)
	if err != nil {
		return domain.CartView{}, err
	}
	if cart == nil {
		return domain.NewCartView(nil), nil
	}
	items, err := s.ItemViews(ctx, cart.ID)
	if err != nil {
		return domain.CartView{}, err
	}
	return domain.NewCartView(items), nil
}

// ItemViews joins the cart's lines with current product data.
func (s *cartService) ItemViews(ctx context.Context, cartID int64) ([]domain.CartItemView, error) {
	items, err := s.cartItemRepo.FindByCartId(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []domain.CartItemView{}, nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.FindByIds(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]domain.CartItemView, 0, len(items))
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			s.logger.WithFields(logrus.Fields{"cart_id": cartID, "product_id": item.ProductID}).Warn("cart item references missing product")
			continue
		}
		views = append(views, domain.NewCartItemView(item, product))
	}
	return views, nil
}

func (s *cartService) Checkout(ctx context.Context, owner string) (*domain.Cart, error) {
	open, err := s.cartRepo.FindOpenByUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNoActiveCart
	}
	if open.Status == domain.CartPendingPayment {
		return nil, ErrCheckoutInProgress
	}

	items, err := s.cartItemRepo.FindByCartId(ctx, open.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	ok, err := s.cartRepo.UpdateStatus(ctx, nil, open.ID, domain.CartActive, domain.CartPendingPayment)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost the race against a concurrent checkout
		return nil, ErrNoActiveCart
	}

	open.Status = domain.CartPendingPayment
	open.UpdatedAt = time.Now()
	s.logger.WithFields(logrus.Fields{"owner": owner, "cart_id": open.ID}).Info("cart checked out, awaiting payment")
	return open, nil
}

func (s *cartService) CompleteCheckout(ctx context.Context, cartID int64) error {
	return s.transition(ctx, cartID, domain.CartPendingPayment, domain.CartCompleted)
}

func (s *cartService) RevertCheckout(ctx context.Context, cartID int64) error {
	return s.transition(ctx, cartID, domain.CartPendingPayment, domain.CartActive)
}

func (s *cartService) transition(ctx context.Context, cartID int64, from, to domain.CartStatus) error {
	ok, err := s.cartRepo.UpdateStatus(ctx, nil, cartID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cart %d is not %s", cartID, from)
	}
	s.logger.WithFields(logrus.Fields{"cart_id": cartID, "from": from, "to": to}).Info("cart status changed")
	return nil
}
