// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/fixtures"
)

var testValue = []byte(`{"hash":"0000000000000000000000000000000000000000000000000000000000000000","tx":[]}`)

// in memory stand-in for the go-redis client
type fakeRedis struct {
	sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	err    error
	closed bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.Lock()
	defer f.Unlock()
	if nil != f.err {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.Lock()
	defer f.Unlock()
	if nil != f.err {
		return redis.NewStatusResult("", f.err)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	client := newFakeRedis()
	s := newRedisStore(client, fixtures.Logger())
	ctx := context.Background()

	_, found, err := s.Get(ctx, "rpc/perm/getblockbyheight/x")
	assert.Nil(t, err, "wrong error")
	assert.False(t, found, "missing key found")

	err = s.Set(ctx, "rpc/perm/getblockbyheight/x", testValue, 24*time.Hour)
	assert.Nil(t, err, "wrong Set")
	assert.Equal(t, 24*time.Hour, client.ttls["rpc/perm/getblockbyheight/x"], "wrong ttl")
	assert.NotEqual(t, string(testValue), client.data["rpc/perm/getblockbyheight/x"], "value not compressed")

	value, found, err := s.Get(ctx, "rpc/perm/getblockbyheight/x")
	assert.Nil(t, err, "wrong error")
	assert.True(t, found, "stored key not found")
	assert.Equal(t, testValue, value, "wrong value")

	client.data["corrupt"] = "\xff\xff\xff\xff"
	_, _, err = s.Get(ctx, "corrupt")
	assert.NotNil(t, err, "corrupt value accepted")

	errExpected := errors.New("connection refused")
	client.err = errExpected
	_, _, err = s.Get(ctx, "block_height")
	assert.Equal(t, errExpected, err, "wrong error")
	err = s.Set(ctx, "block_height", []byte("1"), time.Second)
	assert.Equal(t, errExpected, err, "wrong error")

	assert.Nil(t, s.Close(), "wrong Close")
	assert.True(t, client.closed, "client not closed")
}

func TestLevelDBStore(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	s, err := NewLevelDB(filepath.Join(t.TempDir(), "cache.leveldb"), time.Hour, fixtures.Logger())
	assert.Nil(t, err, "wrong NewLevelDB")
	ctx := context.Background()

	_, found, err := s.Get(ctx, "block_height")
	assert.Nil(t, err, "wrong error")
	assert.False(t, found, "missing key found")

	err = s.Set(ctx, "block_height", []byte("12345"), time.Minute)
	assert.Nil(t, err, "wrong Set")
	err = s.Set(ctx, "rpc/100/getinfo/x", testValue, time.Minute)
	assert.Nil(t, err, "wrong Set")

	value, found, err := s.Get(ctx, "block_height")
	assert.Nil(t, err, "wrong error")
	assert.True(t, found, "stored key not found")
	assert.Equal(t, []byte("12345"), value, "wrong value")

	value, found, err = s.Get(ctx, "rpc/100/getinfo/x")
	assert.Nil(t, err, "wrong error")
	assert.True(t, found, "stored key not found")
	assert.Equal(t, testValue, value, "wrong value")

	// already expired record reads as absent
	err = s.database.Put([]byte("old"), packExpiring([]byte("stale"), time.Now().Add(-time.Second)), nil)
	assert.Nil(t, err, "wrong Put")
	_, found, err = s.Get(ctx, "old")
	assert.Nil(t, err, "wrong error")
	assert.False(t, found, "expired key found")

	// sweep an hour ahead removes everything, including the short record
	err = s.database.Put([]byte("short"), []byte{1, 2}, nil)
	assert.Nil(t, err, "wrong Put")
	n, err := s.deleteExpired(time.Now().Add(time.Hour))
	assert.Nil(t, err, "wrong deleteExpired")
	assert.Equal(t, 4, n, "wrong number removed")

	_, found, _ = s.Get(ctx, "block_height")
	assert.False(t, found, "swept key found")

	assert.Nil(t, s.Close(), "wrong Close")
	assert.Nil(t, s.Close(), "second Close failed")

	_, _, err = s.Get(ctx, "block_height")
	assert.NotNil(t, err, "Get after Close succeeded")
}

func TestLevelDBSubSecondExpiry(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	s, err := NewLevelDB(filepath.Join(t.TempDir(), "cache.leveldb"), time.Hour, fixtures.Logger())
	assert.Nil(t, err, "wrong NewLevelDB")
	defer s.Close()
	ctx := context.Background()

	err = s.Set(ctx, "block_height", []byte("12345"), 500*time.Millisecond)
	assert.Nil(t, err, "wrong Set")

	value, found, err := s.Get(ctx, "block_height")
	assert.Nil(t, err, "wrong error")
	assert.True(t, found, "live key not found")
	assert.Equal(t, []byte("12345"), value, "wrong value")

	n, err := s.deleteExpired(time.Now())
	assert.Nil(t, err, "wrong deleteExpired")
	assert.Equal(t, 0, n, "live key swept")

	time.Sleep(600 * time.Millisecond)
	_, found, err = s.Get(ctx, "block_height")
	assert.Nil(t, err, "wrong error")
	assert.False(t, found, "expired key found")
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "block_height")
	assert.Nil(t, err, "wrong error")
	assert.False(t, found, "missing key found")

	buffer := []byte("12345")
	err = s.Set(ctx, "block_height", buffer, 50*time.Millisecond)
	assert.Nil(t, err, "wrong Set")

	// stored value is independent of the caller's buffer
	buffer[0] = '9'
	value, found, err := s.Get(ctx, "block_height")
	assert.Nil(t, err, "wrong error")
	assert.True(t, found, "stored key not found")
	assert.Equal(t, []byte("12345"), value, "wrong value")

	time.Sleep(100 * time.Millisecond)
	_, found, _ = s.Get(ctx, "block_height")
	assert.False(t, found, "expired key found")

	assert.Nil(t, s.Close(), "wrong Close")
}

func TestCodec(t *testing.T) {
	expires := time.Unix(1700000000, 123456789)
	record := packExpiring(testValue, expires)

	e, compressed, err := unpackExpiring(record)
	assert.Nil(t, err, "wrong unpack")
	assert.True(t, expires.Equal(e), "wrong expiry: %s", e)

	value, err := decompress(compressed)
	assert.Nil(t, err, "wrong decompress")
	assert.True(t, bytes.Equal(testValue, value), "wrong value")

	_, _, err = unpackExpiring([]byte{1, 2, 3})
	assert.Equal(t, fault.ErrTruncatedRecord, err, "wrong error")
}

func TestNew(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	s, err := New(&Configuration{Type: "memory"}, fixtures.Logger())
	assert.Nil(t, err, "wrong New")
	_, ok := s.(*MemoryStore)
	assert.True(t, ok, "not a memory store")

	s, err = New(&Configuration{Type: "LevelDB", Directory: t.TempDir()}, fixtures.Logger())
	assert.Nil(t, err, "wrong New")
	_, ok = s.(*LevelDBStore)
	assert.True(t, ok, "not a leveldb store")
	assert.Nil(t, s.Close(), "wrong Close")

	_, err = New(&Configuration{Type: "memcached"}, fixtures.Logger())
	assert.Equal(t, fault.ErrInvalidCacheType, err, "wrong error")

	_, err = New(&Configuration{Type: "redis", URL: "not a url"}, fixtures.Logger())
	assert.NotNil(t, err, "bad redis url accepted")

	_, err = New(&Configuration{Type: "memory"}, nil)
	assert.Equal(t, fault.ErrInvalidLoggerChannel, err, "wrong error")
}
