// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package flight_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/hsdproxy/flight"
)

type outcome struct {
	value interface{}
	err   error
}

// start two callers while the computation is held, then release it
func concurrentPair(r *flight.Resolver, compute flight.Compute, started <-chan struct{}, release chan<- struct{}) [2]outcome {
	var results [2]outcome
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := r.Resolve(compute)
		results[0] = outcome{v, err}
	}()
	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := r.Resolve(compute)
		results[1] = outcome{v, err}
	}()

	// give the second caller time to join
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	return results
}

func TestSharedValue(t *testing.T) {
	r := flight.New("block_height")
	assert.Equal(t, "block_height", r.Key(), "wrong key")

	var calls int64
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func() (interface{}, error) {
		n := atomic.AddInt64(&calls, 1)
		if 1 == n {
			close(started)
			<-release
		}
		return uint64(1000 + n), nil
	}

	results := concurrentPair(r, compute, started, release)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "computation not shared")
	for i, o := range results {
		assert.Nil(t, o.err, "%d: wrong error", i)
		assert.Equal(t, uint64(1001), o.value, "%d: wrong value", i)
	}

	// after settlement a new computation runs
	v, err := r.Resolve(compute)
	assert.Nil(t, err, "wrong error")
	assert.Equal(t, uint64(1002), v, "stale value returned")
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls), "wrong number of computations")
}

func TestSharedError(t *testing.T) {
	r := flight.New("block_height")

	errExpected := errors.New("backend down")
	var calls int64
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func() (interface{}, error) {
		if 1 == atomic.AddInt64(&calls, 1) {
			close(started)
			<-release
			return nil, errExpected
		}
		return "recovered", nil
	}

	results := concurrentPair(r, compute, started, release)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "computation not shared")
	for i, o := range results {
		assert.Equal(t, errExpected, o.err, "%d: wrong error", i)
		assert.Nil(t, o.value, "%d: unexpected value", i)
	}

	// a failure is not remembered
	v, err := r.Resolve(compute)
	assert.Nil(t, err, "wrong error")
	assert.Equal(t, "recovered", v, "wrong value")
}
