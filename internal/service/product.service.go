package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"toyshop/internal/cache"
	"toyshop/internal/domain"
	"toyshop/internal/repo"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const DefaultPageSize = 10

type ListQuery struct {
	Keyword string
	Sort    string // name_asc, name_desc, price_asc, price_desc
	Size    int
}

type ProductService interface {
	GetAll(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	Search(ctx context.Context, keyword string) ([]domain.Product, error)
	List(ctx context.Context, q ListQuery) ([]domain.Product, error)
	Save(ctx context.Context, product *domain.Product) error
}

// productService reads through the cache. Cache errors other than a miss are
// logged and the database answers instead.
type productService struct {
	productRepo repo.ProductRepo
	cache       cache.ProductCache
	group       singleflight.Group
	logger      logrus.FieldLogger
}

func NewProductService(productRepo repo.ProductRepo, productCache cache.ProductCache, logger logrus.FieldLogger) ProductService {
	return &productService{productRepo: productRepo, cache: productCache, logger: logger}
}

func (s *productService) GetAll(ctx context.Context) ([]domain.Product, error) {
	products, err := s.cache.GetAll(ctx)
	if err == nil {
		return products, nil
	}
	s.logCacheError(err, "product:all")

	v, err, _ := s.group.Do("product:all", func() (any, error) {
		products, err := s.productRepo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetAll(ctx, products); err != nil {
			s.logger.WithError(err).Warn("cache product list failed")
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (s *productService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.cache.GetProduct(ctx, id)
	if err == nil {
		return product, nil
	}
	key := "product:" + strconv.FormatInt(id, 10)
	s.logCacheError(err, key)

	v, err, _ := s.group.Do(key, func() (any, error) {
		product, err := s.productRepo.FindById(ctx, id)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, ErrProductNotFound
		}
		if err := s.cache.SetProduct(ctx, product); err != nil {
			s.logger.WithError(err).WithField("product_id", id).Warn("cache product failed")
		}
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *productService) Search(ctx context.Context, keyword string) ([]domain.Product, error) {
	return s.productRepo.SearchByName(ctx, keyword)
}

// List filters, sorts and truncates the cached catalogue.
func (s *productService) List(ctx context.Context, q ListQuery) ([]domain.Product, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	keyword := strings.ToLower(strings.TrimSpace(q.Keyword))
	out := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if keyword == "" || strings.Contains(strings.ToLower(p.Name), keyword) {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch q.Sort {
		case "price_asc":
			return a.Price < b.Price
		case "price_desc":
			return a.Price > b.Price
		case "name_desc":
			return strings.ToLower(a.Name) > strings.ToLower(b.Name)
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	})

	size := q.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	if len(out) > size {
		out = out[:size]
	}
	return out, nil
}

func (s *productService) Save(ctx context.Context, product *domain.Product) error {
	if err := s.productRepo.Save(ctx, product); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, product.ID); err != nil {
		s.logger.WithError(err).WithField("product_id", product.ID).Warn("cache invalidation failed")
	}
	return nil
}

func (s *productService) logCacheError(err error, key string) {
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.WithError(err).WithField("key", key).Warn("cache read failed")
	}
}
