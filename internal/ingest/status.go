package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RishiKendai/matchcode/internal/infra/redis"
	"github.com/RishiKendai/matchcode/internal/models"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const statusTTL = 12 * time.Hour

// ErrStatusNotFound is returned when no indexing status is recorded.
var ErrStatusNotFound = errors.New("status not found")

func statusKey(packageID string) string {
	return "matchcode:index_status:" + packageID
}

// UpdateStatus records the indexing step of a package.
func UpdateStatus(ctx context.Context, redisClient *redis.Client, packageID string, step models.Step) error {
	validSteps := map[models.Step]bool{
		models.StepQueued:    true,
		models.StepStarted:   true,
		models.StepIndexing:  true,
		models.StepCompleted: true,
		models.StepFailed:    true,
	}
	if !validSteps[step] {
		return fmt.Errorf("unknown step: %s", step)
	}

	rkey := statusKey(packageID)

	err := redisClient.Set(ctx, rkey, string(step), statusTTL).Err()
	if err != nil {
		log.Error().Err(err).
			Str("step", string(step)).
			Str("package_id", packageID).
			Str("redisKey", rkey).
			Msg("Failed to update status in Redis")
		return fmt.Errorf("failed to update status in Redis: %w", err)
	}

	log.Trace().
		Str("step", string(step)).
		Str("package_id", packageID).
		Msg("Status updated in Redis")

	return nil
}

// GetStatus returns the recorded indexing step of a package.
func GetStatus(ctx context.Context, redisClient *redis.Client, packageID string) (models.Step, error) {
	step, err := redisClient.Get(ctx, statusKey(packageID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrStatusNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status from Redis: %w", err)
	}
	return models.Step(step), nil
}

// RedisStatus records indexing steps in Redis.
type RedisStatus struct {
	client *redis.Client
}

func NewRedisStatus(client *redis.Client) *RedisStatus {
	return &RedisStatus{client: client}
}

func (s *RedisStatus) UpdateStatus(ctx context.Context, packageID string, step models.Step) error {
	return UpdateStatus(ctx, s.client, packageID, step)
}

func (s *RedisStatus) GetStatus(ctx context.Context, packageID string) (models.Step, error) {
	return GetStatus(ctx, s.client, packageID)
}
