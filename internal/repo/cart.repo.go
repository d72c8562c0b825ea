package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"toyshop/internal/domain"
)

type CartRepo interface {
	FindById(ctx context.Context, id int64) (*domain.Cart, error)
	// FindOpenByUser returns the user's ACTIVE or PENDING_PAYMENT cart.
	FindOpenByUser(ctx context.Context, userID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, tx *sql.Tx, cart *domain.Cart) error
	// UpdateStatus moves the cart only if it is currently in from; false means no row matched.
	UpdateStatus(ctx context.Context, tx *sql.Tx, id int64, from, to domain.CartStatus) (bool, error)
	FindByUserAndStatus(ctx context.Context, userID string, status domain.CartStatus) ([]domain.Cart, error)
	FindStuckCarts(ctx context.Context, olderThan time.Duration) ([]domain.Cart, error)
}

type cartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepo {
	return &cartRepo{db: db}
}

const cartColumns = "id, user_id, status, created_at, updated_at"

func scanCart(row interface{ Scan(dest ...any) error }) (domain.Cart, error) {
	var c domain.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *cartRepo) FindById(ctx context.Context, id int64) (*domain.Cart, error) {
	cart, err := scanCart(r.db.QueryRowContext(ctx, "SELECT "+cartColumns+" FROM cart WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find cart %d: %w", id, err)
	}
	return &cart, nil
}

func (r *cartRepo) FindOpenByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := scanCart(r.db.QueryRowContext(ctx,
		"SELECT "+cartColumns+" FROM cart WHERE user_id = $1 AND status IN ('ACTIVE', 'PENDING_PAYMENT') LIMIT 1",
		userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open cart: %w", err)
	}
	return &cart, nil
}

func (r *cartRepo) CreateCart(ctx context.Context, tx *sql.Tx, cart *domain.Cart) error {
	err := conn(r.db, tx).QueryRowContext(ctx,
		"INSERT INTO cart (user_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id",
		cart.UserID, cart.Status, cart.CreatedAt, cart.UpdatedAt,
	).Scan(&cart.ID)
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (r *cartRepo) UpdateStatus(ctx context.Context, tx *sql.Tx, id int64, from, to domain.CartStatus) (bool, error) {
	res, err := conn(r.db, tx).ExecContext(ctx,
		"UPDATE cart SET status = $1, updated_at = now() WHERE id = $2 AND status = $3",
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update cart %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *cartRepo) FindByUserAndStatus(ctx context.Context, userID string, status domain.CartStatus) ([]domain.Cart, error) {
	return r.query(ctx,
		"SELECT "+cartColumns+" FROM cart WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC",
		userID, status,
	)
}

func (r *cartRepo) FindStuckCarts(ctx context.Context, olderThan time.Duration) ([]domain.Cart, error) {
	return r.query(ctx,
		"SELECT "+cartColumns+" FROM cart WHERE status = 'PENDING_PAYMENT' AND updated_at < $1",
		time.Now().Add(-olderThan),
	)
}

func (r *cartRepo) query(ctx context.Context, query string, args ...any) ([]domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query carts: %w", err)
	}
	defer rows.Close()

	var carts []domain.Cart
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		carts = append(carts, cart)
	}
	return carts, rows.Err()
}
