package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/food-ordering-api/internal/dto"
	"github.com/flicky/food-ordering-api/internal/model"
	"github.com/flicky/food-ordering-api/internal/repository"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrNoFieldsToUpdate = errors.New("no fields to update")
	ErrInvalidPrice     = errors.New("price must be between 0 and 99999999.99 with at most 2 decimal places")
)

const (
	productCacheTTL       = 60 * time.Second
	productCachePrefix    = "product:"
	productListCacheMatch = "products:available:*"
)

type ProductService struct {
	productRepo repository.ProductRepository
	redisClient *redis.Client
}

func NewProductService(productRepo repository.ProductRepository, redisClient *redis.Client) *ProductService {
	return &ProductService{productRepo: productRepo, redisClient: redisClient}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if req.Price == nil || !model.ValidAmount(*req.Price) {
		return nil, ErrInvalidPrice
	}
	product := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		IsAvailable: true,
	}
	if req.IsAvailable != nil {
		product.IsAvailable = *req.IsAvailable
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		if errors.Is(err, repository.ErrValueOutOfRange) {
			return nil, ErrInvalidPrice
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.invalidateCache(ctx, product.ID)
	resp := toProductResponse(product)
	return &resp, nil
}

// GetAvailable returns a product from the public menu.
func (s *ProductService) GetAvailable(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	cacheKey := productCachePrefix + id.String()

	var cached dto.ProductResponse
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || !product.IsAvailable {
		return nil, ErrProductNotFound
	}

	resp := toProductResponse(product)
	s.cacheSet(ctx, cacheKey, resp)
	return &resp, nil
}

// ListAvailable returns the public menu, optionally narrowed to one category.
func (s *ProductService) ListAvailable(ctx context.Context, categoryID *uuid.UUID) ([]dto.ProductResponse, error) {
	cacheKey := "products:available:all"
	if categoryID != nil {
		cacheKey = "products:available:" + categoryID.String()
	}

	var cached []dto.ProductResponse
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	resp, err := s.list(ctx, model.ProductFilter{CategoryID: categoryID, AvailableOnly: true})
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKey, resp)
	return resp, nil
}

func (s *ProductService) ListAll(ctx context.Context) ([]dto.ProductResponse, error) {
	return s.list(ctx, model.ProductFilter{})
}

func (s *ProductService) list(ctx context.Context, filter model.ProductFilter) ([]dto.ProductResponse, error) {
	products, err := s.productRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i]))
	}
	return items, nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	patch := req.Patch()
	if patch.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}
	if patch.Price != nil && !model.ValidAmount(*patch.Price) {
		return nil, ErrInvalidPrice
	}

	product, err := s.productRepo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		if errors.Is(err, repository.ErrValueOutOfRange) {
			return nil, ErrInvalidPrice
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	s.invalidateCache(ctx, id)
	resp := toProductResponse(product)
	return &resp, nil
}

// Delete removes a product. Unknown ids succeed.
func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *ProductService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.redisClient == nil {
		return false
	}
	cached, err := s.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "read product cache", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(cached, dst); err != nil {
		slog.WarnContext(ctx, "decode product cache", "key", key, "error", err)
		return false
	}
	return true
}

func (s *ProductService) cacheSet(ctx context.Context, key string, v any) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "encode product cache", "key", key, "error", err)
		return
	}
	if err := s.redisClient.Set(ctx, key, data, productCacheTTL).Err(); err != nil {
		slog.WarnContext(ctx, "write product cache", "key", key, "error", err)
	}
}

func (s *ProductService) invalidateCache(ctx context.Context, id uuid.UUID) {
	if s.redisClient == nil {
		return
	}
	keys := []string{productCachePrefix + id.String()}
	iter := s.redisClient.Scan(ctx, 0, productListCacheMatch, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.ErrorContext(ctx, "scan product cache keys", "error", err)
	}
	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		slog.ErrorContext(ctx, "invalidate product cache", "keys", len(keys), "error", err)
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		IsAvailable: p.IsAvailable,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
