package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const KeyPrefix = "cutx:progress:page:"

// StateManager remembers the last listing page handed to the queue per supplier category.
type StateManager interface {
	GetLastProcessedPage(ctx context.Context, catalogue, categoryPath string) (int, error)
	SetLastProcessedPage(ctx context.Context, catalogue, categoryPath string, pageNumber int) error
	Reset(ctx context.Context, catalogue, categoryPath string) error
}

type redisStateManager struct {
	redisClient *redis.Client
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{redisClient: redisClient}
}

// Key is the redis key holding progress for a catalogue category.
func Key(catalogue, categoryPath string) string {
	return KeyPrefix + catalogue + ":" + categoryPath
}

func (s *redisStateManager) GetLastProcessedPage(ctx context.Context, catalogue, categoryPath string) (int, error) {
	val, err := s.redisClient.Get(ctx, Key(catalogue, categoryPath)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // No progress saved yet
		}
		return 0, fmt.Errorf("failed to get last processed page for %s/%s: %w", catalogue, categoryPath, err)
	}

	page, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("failed to parse page number for %s/%s: %w", catalogue, categoryPath, err)
	}

	return page, nil
}

func (s *redisStateManager) SetLastProcessedPage(ctx context.Context, catalogue, categoryPath string, pageNumber int) error {
	if err := s.redisClient.Set(ctx, Key(catalogue, categoryPath), pageNumber, 0).Err(); err != nil {
		return fmt.Errorf("failed to set last processed page for %s/%s: %w", catalogue, categoryPath, err)
	}
	return nil
}

func (s *redisStateManager) Reset(ctx context.Context, catalogue, categoryPath string) error {
	if err := s.redisClient.Del(ctx, Key(catalogue, categoryPath)).Err(); err != nil {
		return fmt.Errorf("failed to reset progress for %s/%s: %w", catalogue, categoryPath, err)
	}
	return nil
}
