// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/hsdproxy/fault"
)

// Limit - delay a single request until the limiter allows it
func Limit(ctx context.Context, limiter *rate.Limiter) error {
	return LimitN(ctx, limiter, 1, 1)
}

// LimitN - delay a request counting as count requests
//
// an invalid count is limited as a single request and reported
func LimitN(ctx context.Context, limiter *rate.Limiter, count int, maximumCount int) error {
	invalid := count <= 0 || count > maximumCount
	if invalid {
		count = 1
	}

	r := limiter.ReserveN(time.Now(), count)
	if !r.OK() {
		return fault.ErrRateLimiting
	}

	delay := r.Delay()
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}

	if invalid {
		return fault.ErrInvalidCount
	}
	return nil
}
