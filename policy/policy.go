// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package policy

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/hsdproxy/backend"
	"github.com/bitmark-inc/hsdproxy/cache"
	"github.com/bitmark-inc/hsdproxy/fault"
)

// FinalityDepth - confirmations after which a block is not expected to
// be reorganised
const FinalityDepth = 11

// Expiry - cache lifetimes for the two key tiers
type Expiry struct {
	Volatile  time.Duration
	Permanent time.Duration
}

// lifetimes used by the proxy
var (
	BlockExpiry   = Expiry{Volatile: 15 * time.Minute, Permanent: 24 * time.Hour}
	MempoolExpiry = Expiry{Volatile: 10 * time.Second, Permanent: 24 * time.Hour}
)

// PathTTL - default lifetime of a cached REST response
const PathTTL = 30 * time.Minute

// HeightSource - provides the current chain height
type HeightSource interface {
	Get(ctx context.Context) (uint64, error)
}

// Policy - finality aware cache in front of the backend
type Policy struct {
	log     *logger.L
	store   cache.Store
	backend backend.Backend
	heights HeightSource
}

// New - create a policy
func New(store cache.Store, b backend.Backend, heights HeightSource, log *logger.L) *Policy {
	return &Policy{
		log:     log,
		store:   store,
		backend: b,
		heights: heights,
	}
}

// IsFinal - true if target is at least FinalityDepth blocks below chain
func IsFinal(chain uint64, target uint64) bool {
	return chain >= target && chain-target >= FinalityDepth
}

// CacheKey - the store key for an RPC call
//
// permanent keys do not include the chain height so they survive new
// blocks
func CacheKey(method string, params []interface{}, chainHeight uint64, permanent bool) string {
	if permanent {
		return fmt.Sprintf("rpc/perm/%s/%s", method, hashParams(params))
	}
	return fmt.Sprintf("rpc/%d/%s/%s", chainHeight, method, hashParams(params))
}

// TimedKey - the store key for an RPC call cached for a fixed time
func TimedKey(method string, params []interface{}) string {
	return fmt.Sprintf("rpc/%s/%s", method, hashParams(params))
}

// PathKey - the store key for a REST GET
func PathKey(path string, chainHeight uint64) string {
	return fmt.Sprintf("rpc/%d/%s", chainHeight, path)
}

// md5 of the compact JSON encoding of the parameters
func hashParams(params []interface{}) string {
	if nil == params {
		params = []interface{}{}
	}

	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	// parameters come from decoded JSON so always encode
	fault.PanicIfError("policy: encode parameters", encoder.Encode(params))

	digest := md5.Sum(bytes.TrimRight(buffer.Bytes(), "\n"))
	return hex.EncodeToString(digest[:])
}

// Resolve - an RPC call cached by block finality
//
// when target is a height that is final the result is stored under a
// permanent key, otherwise under a key for the current chain height
func (p *Policy) Resolve(ctx context.Context, method string, params []interface{}, target *uint64, expiry Expiry) (json.RawMessage, error) {
	chain, err := p.heights.Get(ctx)
	if nil != err {
		return nil, err
	}

	permanent := nil != target && IsFinal(chain, *target)
	ttl := expiry.Volatile
	if permanent {
		ttl = expiry.Permanent
	}

	return p.cached(ctx, CacheKey(method, params, chain, permanent), ttl, method, params)
}

// Timed - an RPC call cached for ttl regardless of chain height
func (p *Policy) Timed(ctx context.Context, method string, params []interface{}, ttl time.Duration) (json.RawMessage, error) {
	return p.cached(ctx, TimedKey(method, params), ttl, method, params)
}

// Direct - an uncached RPC call
func (p *Policy) Direct(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	reply, err := p.backend.Execute(ctx, method, params)
	if nil != err {
		return nil, err
	}
	if nil != reply.Error {
		return nil, reply.Error
	}
	return result(reply), nil
}

// Path - a REST GET cached at the current chain height
func (p *Policy) Path(ctx context.Context, path string, ttl time.Duration) ([]byte, error) {
	chain, err := p.heights.Get(ctx)
	if nil != err {
		return nil, err
	}

	key := PathKey(path, chain)
	data, found, err := p.store.Get(ctx, key)
	if nil != err {
		return nil, err
	}
	if found {
		p.log.Debugf("hit: %s", key)
		return data, nil
	}

	data, err = p.backend.Get(ctx, path)
	if nil != err {
		return nil, err
	}

	err = p.store.Set(ctx, key, data, ttl)
	if nil != err {
		return nil, err
	}
	return data, nil
}

// store lookup, backend call on a miss, non-null results written back
func (p *Policy) cached(ctx context.Context, key string, ttl time.Duration, method string, params []interface{}) (json.RawMessage, error) {
	data, found, err := p.store.Get(ctx, key)
	if nil != err {
		return nil, err
	}
	if found {
		p.log.Debugf("hit: %s", key)
		return data, nil
	}

	p.log.Debugf("miss: %s", key)

	reply, err := p.backend.Execute(ctx, method, params)
	if nil != err {
		return nil, err
	}
	if nil != reply.Error {
		return nil, reply.Error
	}

	if reply.IsNull() {
		return result(reply), nil
	}

	err = p.store.Set(ctx, key, reply.Result, ttl)
	if nil != err {
		return nil, err
	}
	return reply.Result, nil
}

var null = json.RawMessage("null")

func result(reply *backend.Reply) json.RawMessage {
	if reply.IsNull() {
		return null
	}
	return reply.Result
}
