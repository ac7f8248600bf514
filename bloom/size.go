// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

const maxCapacity = int(^uint(0) >> 1)

// size bands keyed on the expected number of elements, keeps the false
// positive rate roughly constant
var bands = []struct {
	below int
	m     uint64
	k     uint64
}{
	{below: 10, m: 1007, k: 23},
	{below: 100, m: 5572, k: 13},
	{below: 250, m: 14378, k: 13},
	{below: 500, m: 28576, k: 13},
	{below: 1000, m: 57511, k: 13},
}

const (
	largestM = 76681
	largestK = 13
)

// Recommended - the (m, k) to use for a filter expected to hold count
// elements
func Recommended(count int) (uint64, uint64) {
	for _, b := range bands {
		if count < b.below {
			return b.m, b.k
		}
	}
	return largestM, largestK
}
