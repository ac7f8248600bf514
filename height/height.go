// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package height - current chain height, cached briefly and fetched
// at most once at a time
package height

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/hsdproxy/backend"
	"github.com/bitmark-inc/hsdproxy/cache"
	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/flight"
)

// how long a fetched height is reused
const TTL = 10 * time.Second

const getBlockCount = "getblockcount"

// Resolver - chain height lookup
type Resolver struct {
	log     *logger.L
	store   cache.Store
	backend backend.Backend
	flight  *flight.Resolver
}

// New - create a resolver
func New(store cache.Store, b backend.Backend, log *logger.L) *Resolver {
	return &Resolver{
		log:     log,
		store:   store,
		backend: b,
		flight:  flight.New(cache.BlockHeightKey),
	}
}

// Get - the current chain height
//
// concurrent callers share a single store lookup and, on a miss, a
// single backend call
func (r *Resolver) Get(ctx context.Context) (uint64, error) {

	// the shared lookup must not fail because the caller that
	// started it went away
	shared := context.WithoutCancel(ctx)

	v, err := r.flight.Resolve(func() (interface{}, error) {
		return r.fetch(shared)
	})
	if nil != err {
		return 0, err
	}
	return v.(uint64), nil
}

func (r *Resolver) fetch(ctx context.Context) (uint64, error) {
	data, found, err := r.store.Get(ctx, cache.BlockHeightKey)
	if nil != err {
		return 0, err
	}
	if found {
		h, err := strconv.ParseUint(string(data), 10, 64)
		if nil == err {
			return h, nil
		}
		r.log.Warnf("cached height: %q  error: %s", data, err)
	}

	reply, err := r.backend.Execute(ctx, getBlockCount, []interface{}{})
	if nil != err {
		r.log.Errorf("%s: error: %s", getBlockCount, err)
		return 0, err
	}
	// the node's error stays in the log, callers only see the height is unavailable
	if nil != reply.Error {
		r.log.Errorf("%s: rpc error: %s", getBlockCount, reply.Error)
		return 0, fault.ErrBlockHeightUnavailable
	}

	var h uint64
	err = json.Unmarshal(reply.Result, &h)
	if nil != err {
		r.log.Errorf("%s: result: %s  error: %s", getBlockCount, reply.Result, err)
		return 0, fault.ErrBlockHeightUnavailable
	}

	r.log.Debugf("chain height: %d", h)

	err = r.store.Set(ctx, cache.BlockHeightKey, []byte(strconv.FormatUint(h, 10)), TTL)
	if nil != err {
		return 0, err
	}
	return h, nil
}
