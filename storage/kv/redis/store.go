package rediskv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/masomo-portal/core"
)

const defaultPrefix = "masomo:portal:"

type store struct {
	client *redis.Client
	prefix string
}

var _ core.KeyValueBackend = (*store)(nil)

// Open connects to redis and checks the connection.
func Open(ctx context.Context, conf core.RedisConfig) (core.KeyValueBackend, error) {
	if conf.Addr == "" {
		return nil, errors.New("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Username: conf.Username,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "redis ping failed")
	}

	prefix := conf.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &store{client: client, prefix: prefix}, nil
}

func (s *store) key(k string) string {
	return s.prefix + k
}

func (s *store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", core.ErrKeyNotFound
		}
		return "", errors.Wrapf(err, "redis get %s", key)
	}
	return val, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	return errors.Wrapf(s.client.Set(ctx, s.key(key), value, 0).Err(), "redis set %s", key)
}

func (s *store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return errors.Wrap(s.client.Del(ctx, full...).Err(), "redis del")
}

func (s *store) Close() error {
	return s.client.Close()
}
