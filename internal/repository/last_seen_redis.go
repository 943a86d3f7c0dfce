package repository

import (
	"context"
	"sort"
	"time"

	"crmrt/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisLastSeenRepository keeps every record as a field of one hash:
// username -> RFC3339 timestamp.
type RedisLastSeenRepository struct {
	client *redis.Client
	key    string
}

func NewRedisLastSeenRepository(client *redis.Client, key string) *RedisLastSeenRepository {
	return &RedisLastSeenRepository{client: client, key: key}
}

func (r *RedisLastSeenRepository) Touch(ctx context.Context, username string, at time.Time) error {
	return r.client.HSet(ctx, r.key, username, at.UTC().Format(time.RFC3339Nano)).Err()
}

func (r *RedisLastSeenRepository) List(ctx context.Context) ([]models.LastSeen, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	return parseLastSeenHash(fields), nil
}

func parseLastSeenHash(fields map[string]string) []models.LastSeen {
	out := make([]models.LastSeen, 0, len(fields))
	for name, raw := range fields {
		out = append(out, models.LastSeen{Username: name, LastSeen: asTime(raw)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
