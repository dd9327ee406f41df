package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HenryBurlingameIV/OrderManagementSystem-sub000/internal/catalog/domain"
)

// cachedCatalogService is a cache-aside decorator over product reads.
// Stock-mutating calls invalidate the cached product so readers never see a
// stale stock level for longer than one round trip.
type cachedCatalogService struct {
	next        CatalogService
	redisClient *redis.Client
	cacheTTL    time.Duration
}

func NewCachedCatalogService(next CatalogService, redisClient *redis.Client) CatalogService {
	return &cachedCatalogService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    10 * time.Minute,
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (s *cachedCatalogService) Create(ctx context.Context, req *CreateProductRequest) (*domain.Product, error) {
	return s.next.Create(ctx, req)
}

func (s *cachedCatalogService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)

	if val, err := s.redisClient.Get(ctx, key).Result(); err == nil {
		var product domain.Product
		if err := json.Unmarshal([]byte(val), &product); err == nil {
			return &product, nil
		}
	}

	product, err := s.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}

	return product, nil
}

func (s *cachedCatalogService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, error) {
	return s.next.List(ctx, limit, offset, search)
}

func (s *cachedCatalogService) Reserve(ctx context.Context, productID, quantity int64) (domain.Reservation, error) {
	res, err := s.next.Reserve(ctx, productID, quantity)
	if err != nil {
		return res, err
	}

	s.redisClient.Del(ctx, productKey(productID))
	return res, nil
}

func (s *cachedCatalogService) Release(ctx context.Context, productID, quantity int64) (domain.Reservation, error) {
	res, err := s.next.Release(ctx, productID, quantity)
	if err != nil {
		return res, err
	}

	s.redisClient.Del(ctx, productKey(productID))
	return res, nil
}
