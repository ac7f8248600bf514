// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package flight - collapse concurrent identical computations into one
package flight

import (
	"golang.org/x/sync/singleflight"
)

// Compute - the shared computation
type Compute func() (interface{}, error)

// Resolver - at most one computation in flight at a time
//
// all callers that arrive while a computation is running receive its
// outcome; the in flight marker is cleared before the outcome is
// delivered so a later call always starts afresh
type Resolver struct {
	key   string
	group singleflight.Group
}

// New - create a resolver, key names the value for diagnostics only
func New(key string) *Resolver {
	return &Resolver{
		key: key,
	}
}

// Resolve - join the running computation or start compute
func (r *Resolver) Resolve(compute Compute) (interface{}, error) {
	v, err, _ := r.group.Do(r.key, compute)
	return v, err
}

// Key - the name of the resolved value
func (r *Resolver) Key() string {
	return r.key
}
