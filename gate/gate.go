// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package gate - bounded concurrency for calls to the backend node
//
// Actions are started in the order Admit was called and never more
// than the number of tickets run at once.  A slot is released when its
// action returns, whether or not it failed.
package gate

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/bitmark-inc/hsdproxy/fault"
)

var (
	activeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hsdproxy",
		Subsystem: "gate",
		Name:      "active",
		Help:      "Number of backend calls currently running",
	})
	waitingGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hsdproxy",
		Subsystem: "gate",
		Name:      "waiting",
		Help:      "Number of backend calls queued for a free slot",
	})
)

// Action - a unit of work run inside the gate
type Action func() (interface{}, error)

// Gate - FIFO admission with a fixed number of tickets
type Gate struct {
	tickets int
	sem     *semaphore.Weighted
	active  int64
	waiting int64
}

// New - create a gate allowing tickets concurrent actions
func New(tickets int) (*Gate, error) {
	if tickets <= 0 {
		return nil, fault.ErrInvalidTickets
	}
	return &Gate{
		tickets: tickets,
		sem:     semaphore.NewWeighted(int64(tickets)),
	}, nil
}

// Admit - queue the action and return its own result once it has run
//
// if ctx ends while the action is still queued it is abandoned and
// ctx.Err() is returned; an action that has started always runs to
// completion
func (g *Gate) Admit(ctx context.Context, action Action) (interface{}, error) {
	atomic.AddInt64(&g.waiting, 1)
	waitingGauge.Inc()
	err := g.sem.Acquire(ctx, 1)
	atomic.AddInt64(&g.waiting, -1)
	waitingGauge.Dec()
	if nil != err {
		return nil, err
	}

	atomic.AddInt64(&g.active, 1)
	activeGauge.Inc()
	defer func() {
		atomic.AddInt64(&g.active, -1)
		activeGauge.Dec()
		g.sem.Release(1)
	}()

	return action()
}

// Tickets - maximum concurrency
func (g *Gate) Tickets() int {
	return g.tickets
}

// Active - number of actions running
func (g *Gate) Active() int {
	return int(atomic.LoadInt64(&g.active))
}

// Waiting - number of callers queued
func (g *Gate) Waiting() int {
	return int(atomic.LoadInt64(&g.waiting))
}
