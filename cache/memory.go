// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	memoryDefaultExpiration = 15 * time.Minute
	memoryCleanupInterval   = time.Minute
)

// MemoryStore - process local store
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemory - create an empty store
func NewMemory() *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(memoryDefaultExpiration, memoryCleanupInterval),
	}
}

// Get - a copy of the stored value
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	obj, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}
	value := obj.([]byte)
	return append([]byte{}, value...), true, nil
}

// Set - store a copy of value
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.cache.Set(key, append([]byte{}, value...), ttl)
	return nil
}

// Close - drop all items
func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
