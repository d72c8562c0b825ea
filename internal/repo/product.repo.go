package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"toyshop/internal/domain"
)

type ProductRepo interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
	FindById(ctx context.Context, id int64) (*domain.Product, error)
	FindByIds(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	SearchByName(ctx context.Context, keyword string) ([]domain.Product, error)
	Save(ctx context.Context, product *domain.Product) error
}

type productRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepo {
	return &productRepo{db: db}
}

const productColumns = "id, name, description, price, image_url, quantity"

func scanProduct(row interface{ Scan(dest ...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.Quantity)
	return p, err
}

func (r *productRepo) FindAll(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, "SELECT "+productColumns+" FROM product ORDER BY id")
}

func (r *productRepo) FindById(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM product WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product %d: %w", id, err)
	}
	return &p, nil
}

func (r *productRepo) FindByIds(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	out := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	products, err := r.query(ctx, "SELECT "+productColumns+" FROM product WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (r *productRepo) SearchByName(ctx context.Context, keyword string) ([]domain.Product, error) {
	return r.query(ctx,
		"SELECT "+productColumns+" FROM product WHERE name ILIKE '%' || $1 || '%' ORDER BY name",
		keyword,
	)
}

// Save inserts when ID is zero and updates otherwise.
func (r *productRepo) Save(ctx context.Context, p *domain.Product) error {
	if p.ID == 0 {
		err := r.db.QueryRowContext(ctx,
			"INSERT INTO product (name, description, price, image_url, quantity) VALUES ($1, $2, $3, $4, $5) RETURNING id",
			p.Name, p.Description, p.Price, p.ImageURL, p.Quantity,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		"UPDATE product SET name = $1, description = $2, price = $3, image_url = $4, quantity = $5 WHERE id = $6",
		p.Name, p.Description, p.Price, p.ImageURL, p.Quantity, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return nil
}

func (r *productRepo) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
