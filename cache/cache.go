// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"strings"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/hsdproxy/fault"
)

// store types
const (
	TypeRedis   = "redis"
	TypeLevelDB = "leveldb"
	TypeMemory  = "memory"
)

// BlockHeightKey - where the chain height is cached
const BlockHeightKey = "block_height"

//go:generate mockgen -destination=../mocks/store.go -package=mocks github.com/bitmark-inc/hsdproxy/cache Store

// Store - byte oriented key/value store with per key expiry
//
// Get returns false for a missing or expired key, an error only for a
// store failure
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Configuration - store selection
type Configuration struct {
	Type      string `gluamapper:"type" json:"type"`
	URL       string `gluamapper:"url" json:"url"`
	Directory string `gluamapper:"directory" json:"directory"`
	Sweep     int    `gluamapper:"sweep" json:"sweep"` // seconds between leveldb expiry sweeps
}

// New - open the configured store
func New(configuration *Configuration, log *logger.L) (Store, error) {
	if nil == log {
		return nil, fault.ErrInvalidLoggerChannel
	}

	switch strings.ToLower(configuration.Type) {
	case TypeRedis:
		log.Infof("redis store: %s", configuration.URL)
		s, err := NewRedis(configuration.URL, log)
		if nil != err {
			return nil, err
		}
		return s, nil

	case TypeLevelDB:
		log.Infof("leveldb store: %s", configuration.Directory)
		sweep := time.Duration(configuration.Sweep) * time.Second
		s, err := NewLevelDB(configuration.Directory, sweep, log)
		if nil != err {
			return nil, err
		}
		return s, nil

	case TypeMemory, "":
		log.Info("memory store")
		return NewMemory(), nil

	default:
		log.Errorf("invalid store type: %q", configuration.Type)
		return nil, fault.ErrInvalidCacheType
	}
}
