package backend

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/go-redis/redis/v8"

	"voxelmap.ai/internal/world/mapblock"
)

type RedisOptions struct {
	Addr string
	Hash string
	DB   int
}

// Redis reads a world stored as one hash: field = decimal legacy block key,
// value = serialized block.
type Redis struct {
	client *redis.Client
	hash   string
}

func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" || opts.Hash == "" {
		return nil, fmt.Errorf("redis backend needs an address and a hash name")
	}
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &Redis{client: client, hash: opts.Hash}, nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Positions(ctx context.Context) iter.Seq2[mapblock.Position, error] {
	return func(yield func(mapblock.Position, error) bool) {
		keys, err := r.client.HKeys(ctx, r.hash).Result()
		if err != nil {
			yield(mapblock.Position{}, fmt.Errorf("redis hkeys %s: %w", r.hash, err))
			return
		}
		for _, k := range keys {
			p, err := parseRedisField(k)
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

func (r *Redis) Block(ctx context.Context, pos mapblock.Position) ([]byte, error) {
	data, err := r.client.HGet(ctx, r.hash, redisField(pos)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w at %v", ErrBlockNotFound, pos)
	}
	return data, err
}

func redisField(pos mapblock.Position) string {
	return strconv.FormatInt(pos.Key(), 10)
}

func parseRedisField(field string) (mapblock.Position, error) {
	k, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return mapblock.Position{}, fmt.Errorf("bad block key %q: %w", field, err)
	}
	return mapblock.PositionFromKey(k), nil
}
