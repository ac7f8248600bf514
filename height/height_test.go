// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package height_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/hsdproxy/backend"
	"github.com/bitmark-inc/hsdproxy/cache"
	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/fixtures"
	"github.com/bitmark-inc/hsdproxy/height"
	"github.com/bitmark-inc/hsdproxy/mocks"
)

func TestCachedHeight(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	ctl := gomock.NewController(t)
	defer ctl.Finish()

	store := mocks.NewMockStore(ctl)
	b := mocks.NewMockBackend(ctl)

	store.EXPECT().Get(gomock.Any(), cache.BlockHeightKey).Return([]byte("12345"), true, nil).Times(1)

	r := height.New(store, b, fixtures.Logger())
	h, err := r.Get(context.Background())
	assert.Nil(t, err, "wrong error")
	assert.Equal(t, uint64(12345), h, "wrong height")
}

func TestFetchHeight(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	ctl := gomock.NewController(t)
	defer ctl.Finish()

	store := mocks.NewMockStore(ctl)
	b := mocks.NewMockBackend(ctl)

	gomock.InOrder(
		store.EXPECT().Get(gomock.Any(), cache.BlockHeightKey).Return(nil, false, nil),
		b.EXPECT().Execute(gomock.Any(), "getblockcount", []interface{}{}).Return(&backend.Reply{Result: []byte("100")}, nil),
		store.EXPECT().Set(gomock.Any(), cache.BlockHeightKey, []byte("100"), 10*time.Second).Return(nil),
	)

	r := height.New(store, b, fixtures.Logger())
	h, err := r.Get(context.Background())
	assert.Nil(t, err, "wrong error")
	assert.Equal(t, uint64(100), h, "wrong height")
}

func TestBackendError(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	ctl := gomock.NewController(t)
	defer ctl.Finish()

	store := mocks.NewMockStore(ctl)
	b := mocks.NewMockBackend(ctl)

	store.EXPECT().Get(gomock.Any(), cache.BlockHeightKey).Return(nil, false, nil).Times(2)
	b.EXPECT().Execute(gomock.Any(), "getblockcount", gomock.Any()).Return(&backend.Reply{
		Result: []byte("null"),
		Error:  &fault.RPCError{Code: -32603, Message: "Internal error."},
	}, nil).Times(1)

	r := height.New(store, b, fixtures.Logger())
	_, err := r.Get(context.Background())
	assert.Equal(t, fault.ErrBlockHeightUnavailable, err, "wrong error")

	errExpected := errors.New("connection refused")
	b.EXPECT().Execute(gomock.Any(), "getblockcount", gomock.Any()).Return(nil, errExpected).Times(1)
	_, err = r.Get(context.Background())
	assert.Equal(t, errExpected, err, "wrong error")
}

func TestStoreError(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	ctl := gomock.NewController(t)
	defer ctl.Finish()

	store := mocks.NewMockStore(ctl)
	b := mocks.NewMockBackend(ctl)

	errExpected := errors.New("redis down")
	store.EXPECT().Get(gomock.Any(), cache.BlockHeightKey).Return(nil, false, errExpected).Times(1)

	r := height.New(store, b, fixtures.Logger())
	_, err := r.Get(context.Background())
	assert.Equal(t, errExpected, err, "wrong error")
}

func TestConcurrentCallersShareFetch(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	ctl := gomock.NewController(t)
	defer ctl.Finish()

	store := mocks.NewMockStore(ctl)
	b := mocks.NewMockBackend(ctl)

	release := make(chan struct{})
	started := make(chan struct{})

	store.EXPECT().Get(gomock.Any(), cache.BlockHeightKey).Return(nil, false, nil).Times(1)
	b.EXPECT().Execute(gomock.Any(), "getblockcount", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, _ []interface{}) (*backend.Reply, error) {
			close(started)
			<-release
			return &backend.Reply{Result: []byte("777")}, nil
		}).Times(1)
	store.EXPECT().Set(gomock.Any(), cache.BlockHeightKey, []byte("777"), height.TTL).Return(nil).Times(1)

	r := height.New(store, b, fixtures.Logger())

	const callers = 5
	results := make([]uint64, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = r.Get(context.Background())
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Get(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, h := range results {
		assert.Equal(t, uint64(777), h, "%d: wrong height", i)
	}
}
