package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"flappyq/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	REDIS_VALUES_KEY = "flappyq:action_values"
	REDIS_RUN_KEY    = "flappyq:run_id"
)

// RedisStore keeps the latest snapshot in a hash of state key to JSON-encoded vector.
type RedisStore struct {
	client *redis.Client
	runID  uuid.UUID
}

func OpenRedisStore(ctx context.Context, addr string, runID uuid.UUID) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return &RedisStore{client: client, runID: runID}, nil
}

func (rs *RedisStore) RunID() uuid.UUID {
	return rs.runID
}

// SaveSnapshot swaps the hash in a MULTI/EXEC block.
func (rs *RedisStore) SaveSnapshot(ctx context.Context, values map[models.StateKey][]float64) error {
	fields := make(map[string]interface{}, len(values))
	for state, vals := range values {
		data, err := json.Marshal(vals)
		if err != nil {
			return fmt.Errorf("encode %s: %w", state, err)
		}
		fields[string(state)] = data
	}

	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, REDIS_VALUES_KEY)
		if len(fields) > 0 {
			pipe.HSet(ctx, REDIS_VALUES_KEY, fields)
		}
		pipe.Set(ctx, REDIS_RUN_KEY, rs.runID.String(), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis snapshot: %w", err)
	}
	return nil
}

func (rs *RedisStore) Load(ctx context.Context) (map[models.StateKey][]float64, error) {
	saved, err := rs.client.Exists(ctx, REDIS_RUN_KEY).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}
	if saved == 0 {
		return nil, ErrNoSnapshot
	}

	fields, err := rs.client.HGetAll(ctx, REDIS_VALUES_KEY).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load: %w", err)
	}
	values := make(map[models.StateKey][]float64, len(fields))
	for state, data := range fields {
		vals := []float64{}
		if err = json.Unmarshal([]byte(data), &vals); err != nil {
			return nil, fmt.Errorf("decode %s: %w", state, err)
		}
		values[models.StateKey(state)] = vals
	}
	return values, nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
