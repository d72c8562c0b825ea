package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toyshop/internal/domain"
)

// CartItemRepo line writes only apply while the owning cart is ACTIVE;
// otherwise they return ErrCartNotActive and change nothing.
type CartItemRepo interface {
	FindByCartId(ctx context.Context, cartID int64) ([]domain.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID, productID int64) (*domain.CartItem, error)
	CreateItem(ctx context.Context, item *domain.CartItem) error
	UpdateQuantity(ctx context.Context, id int64, quantity int) error
	DeleteItem(ctx context.Context, id int64) error
}

type cartItemRepo struct {
	db *sql.DB
}

func NewCartItemRepo(db *sql.DB) CartItemRepo {
	return &cartItemRepo{db: db}
}

func (r *cartItemRepo) FindByCartId(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, cart_id, product_id, quantity FROM cart_item WHERE cart_id = $1 ORDER BY id",
		cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *cartItemRepo) FindByCartAndProduct(ctx context.Context, cartID, productID int64) (*domain.CartItem, error) {
	var item domain.CartItem
	err := r.db.QueryRowContext(ctx,
		"SELECT id, cart_id, product_id, quantity FROM cart_item WHERE cart_id = $1 AND product_id = $2",
		cartID, productID,
	).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart item: %w", err)
	}
	return &item, nil
}

// The cart row is share-locked so a line write and the checkout status
// change cannot interleave.
const (
	insertItemSQL = `INSERT INTO cart_item (cart_id, product_id, quantity)
		SELECT $1, $2, $3
		WHERE EXISTS (SELECT 1 FROM cart WHERE id = $1 AND status = 'ACTIVE' FOR SHARE)
		RETURNING id`
	updateItemSQL = `UPDATE cart_item SET quantity = $1
		WHERE id = $2
		AND EXISTS (SELECT 1 FROM cart WHERE cart.id = cart_item.cart_id AND cart.status = 'ACTIVE' FOR SHARE)`
	deleteItemSQL = `DELETE FROM cart_item
		WHERE id = $1
		AND EXISTS (SELECT 1 FROM cart WHERE cart.id = cart_item.cart_id AND cart.status = 'ACTIVE' FOR SHARE)`
)

func (r *cartItemRepo) CreateItem(ctx context.Context, item *domain.CartItem) error {
	err := r.db.QueryRowContext(ctx, insertItemSQL, item.CartID, item.ProductID, item.Quantity).Scan(&item.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCartNotActive
	}
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	return nil
}

func (r *cartItemRepo) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	res, err := r.db.ExecContext(ctx, updateItemSQL, quantity, id)
	if err != nil {
		return fmt.Errorf("update cart item %d: %w", id, err)
	}
	return affectedOrNotActive(res)
}

func (r *cartItemRepo) DeleteItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deleteItemSQL, id)
	if err != nil {
		return fmt.Errorf("delete cart item %d: %w", id, err)
	}
	return affectedOrNotActive(res)
}

func affectedOrNotActive(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartNotActive
	}
	return nil
}
