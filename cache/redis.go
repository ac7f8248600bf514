// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/redis/go-redis/v9"
)

const redisConnectTimeout = 5 * time.Second

// the subset of the go-redis client used here
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisStore - values compressed with snappy and stored with SET EX
type RedisStore struct {
	log    *logger.L
	client redisClient
}

// NewRedis - connect to a redis server, e.g. redis://localhost:6379/0
func NewRedis(url string, log *logger.L) (*RedisStore, error) {
	options, err := redis.ParseURL(url)
	if nil != err {
		return nil, err
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	err = client.Ping(ctx).Err()
	if nil != err {
		log.Errorf("redis: %s  ping error: %s", options.Addr, err)
		_ = client.Close()
		return nil, err
	}

	return newRedisStore(client, log), nil
}

func newRedisStore(client redisClient, log *logger.L) *RedisStore {
	return &RedisStore{
		log:    log,
		client: client,
	}
}

// Get - fetch and decompress
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if redis.Nil == err {
		return nil, false, nil
	}
	if nil != err {
		s.log.Errorf("get: %q  error: %s", key, err)
		return nil, false, err
	}

	value, err := decompress(data)
	if nil != err {
		s.log.Errorf("get: %q  decompress error: %s", key, err)
		return nil, false, err
	}
	return value, true, nil
}

// Set - compress and store with expiry
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.client.Set(ctx, key, compress(value), ttl).Err()
	if nil != err {
		s.log.Errorf("set: %q  error: %s", key, err)
	}
	return err
}

// Close - release the connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
