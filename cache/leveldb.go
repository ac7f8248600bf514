// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitmark-inc/hsdproxy/background"
)

const defaultSweepInterval = 5 * time.Minute

// LevelDBStore - on disk store with expiry kept in each record
type LevelDBStore struct {
	sync.RWMutex
	log        *logger.L
	database   *leveldb.DB
	background *background.T
}

// NewLevelDB - open or create the database in directory and start the
// expiry sweeper
func NewLevelDB(directory string, sweep time.Duration, log *logger.L) (*LevelDBStore, error) {
	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: false,
	}

	db, err := leveldb.OpenFile(directory, opt)
	if nil != err {
		log.Errorf("open: %q  error: %s", directory, err)
		return nil, err
	}

	if sweep <= 0 {
		sweep = defaultSweepInterval
	}

	s := &LevelDBStore{
		log:      log,
		database: db,
	}

	processes := background.Processes{
		&sweeper{
			store:    s,
			interval: sweep,
		},
	}
	s.background = background.Start(processes, nil)

	return s, nil
}

// Get - absent if missing or expired
func (s *LevelDBStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.RLock()
	defer s.RUnlock()

	if nil == s.database {
		return nil, false, leveldb.ErrClosed
	}

	record, err := s.database.Get([]byte(key), nil)
	if leveldb.ErrNotFound == err {
		return nil, false, nil
	}
	if nil != err {
		s.log.Errorf("get: %q  error: %s", key, err)
		return nil, false, err
	}

	expires, compressed, err := unpackExpiring(record)
	if nil != err {
		s.log.Errorf("get: %q  error: %s", key, err)
		return nil, false, err
	}
	if !time.Now().Before(expires) {
		return nil, false, nil
	}

	value, err := decompress(compressed)
	if nil != err {
		s.log.Errorf("get: %q  decompress error: %s", key, err)
		return nil, false, err
	}
	return value, true, nil
}

// Set - store with an absolute expiry of now + ttl
func (s *LevelDBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.RLock()
	defer s.RUnlock()

	if nil == s.database {
		return leveldb.ErrClosed
	}

	err := s.database.Put([]byte(key), packExpiring(value, time.Now().Add(ttl)), nil)
	if nil != err {
		s.log.Errorf("set: %q  error: %s", key, err)
	}
	return err
}

// Close - stop the sweeper and close the database
func (s *LevelDBStore) Close() error {
	s.background.Stop()

	s.Lock()
	defer s.Unlock()

	if nil == s.database {
		return nil
	}
	err := s.database.Close()
	s.database = nil
	return err
}

// remove all expired records, returns the number deleted
func (s *LevelDBStore) deleteExpired(now time.Time) (int, error) {
	s.RLock()
	defer s.RUnlock()

	if nil == s.database {
		return 0, leveldb.ErrClosed
	}

	batch := new(leveldb.Batch)
	iter := s.database.NewIterator(nil, nil)
	for iter.Next() {
		expires, _, err := unpackExpiring(iter.Value())

		// unreadable records are dropped too
		if nil != err || !now.Before(expires) {
			batch.Delete(append([]byte{}, iter.Key()...))
		}
	}
	iter.Release()
	err := iter.Error()
	if nil != err {
		return 0, err
	}

	n := batch.Len()
	if 0 == n {
		return 0, nil
	}
	return n, s.database.Write(batch, nil)
}

// background expiry
type sweeper struct {
	store    *LevelDBStore
	interval time.Duration
}

func (c *sweeper) Run(args interface{}, shutdown <-chan struct{}) {
	log := c.store.log
	ticker := time.NewTicker(c.interval)
	for {
		select {
		case <-ticker.C:
			n, err := c.store.deleteExpired(time.Now())
			if nil != err {
				log.Errorf("sweep error: %s", err)
			} else if n > 0 {
				log.Debugf("sweep removed: %d", n)
			}
		case <-shutdown:
			ticker.Stop()
			return
		}
	}
}
