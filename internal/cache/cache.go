package cache

import (
	"context"
	"errors"

	"toyshop/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type ProductCache interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	GetAll(ctx context.Context) ([]domain.Product, error)
	SetAll(ctx context.Context, products []domain.Product) error
	// Invalidate drops the given product entries and the full list.
	Invalidate(ctx context.Context, ids ...int64) error
}
