package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sealedger/internal/aggregate/models"
	"sealedger/pkg/platform/sentinel"
)

const keyPrefix = "sealedger:metrics:"

// Redis persists category metrics in Redis. Entries carry value-store
// handles, not ciphertext, so losing Redis loses only the aggregate pointers
// and a recomputation restores them.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Put(ctx context.Context, m *models.CategoryMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal category metrics: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+m.Category, payload, 0).Err(); err != nil {
		return fmt.Errorf("store category metrics: %w", err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, category string) error {
	if err := s.client.Del(ctx, keyPrefix+category).Err(); err != nil {
		return fmt.Errorf("delete category metrics: %w", err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, category string) (*models.CategoryMetrics, error) {
	payload, err := s.client.Get(ctx, keyPrefix+category).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load category metrics: %w", err)
	}
	var m models.CategoryMetrics
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("unmarshal category metrics: %w", err)
	}
	return &m, nil
}

func (s *Redis) Has(ctx context.Context, category string) (bool, error) {
	m, err := s.Get(ctx, category)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.HasMetrics, nil
}
