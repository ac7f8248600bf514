// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bitvector - fixed capacity bit storage with a big-endian
// serialisation
//
// serialised layout:
//
//   [capacity: uint64 BE][word 0: uint64 BE] ... [word n-1: uint64 BE]
//
// where n = ceil(capacity / 64) and bit i lives in word i/64 at
// position i%64 (bit 0 is the least significant)
package bitvector

import (
	"encoding/binary"

	"github.com/bitmark-inc/hsdproxy/fault"
)

const (
	wordSize     = 64
	log2WordSize = 6
	uint64Size   = 8
)

// T - the bit vector
type T struct {
	capacity uint64
	words    []uint64
}

// New - create a zeroed vector that can address capacity bits
func New(capacity int) (*T, error) {
	if capacity < 0 {
		return nil, fault.ErrInvalidCapacity
	}
	c := uint64(capacity)
	return &T{
		capacity: c,
		words:    make([]uint64, wordsNeeded(c)),
	}, nil
}

// Decode - rebuild a vector from the output of Bytes
func Decode(data []byte) (*T, error) {
	if len(data) < uint64Size {
		return nil, fault.ErrInvalidBitVectorLength
	}
	capacity := binary.BigEndian.Uint64(data)
	n := wordsNeeded(capacity)

	data = data[uint64Size:]
	if uint64(len(data)) != n*uint64Size {
		return nil, fault.ErrInvalidBitVectorLength
	}

	v := &T{
		capacity: capacity,
		words:    make([]uint64, n),
	}
	for i := range v.words {
		v.words[i] = binary.BigEndian.Uint64(data[i*uint64Size:])
	}
	return v, nil
}

// Capacity - number of addressable bits
func (v *T) Capacity() uint64 {
	return v.capacity
}

// Set - set bit i to one
//
// an index beyond the capacity is rejected rather than written into
// the spare bits of the last word
func (v *T) Set(i uint64) error {
	if i >= v.capacity {
		return fault.ErrBitIndexOutOfRange
	}
	v.words[i>>log2WordSize] |= 1 << (i & (wordSize - 1))
	return nil
}

// Test - true if bit i is set, false for any index beyond the capacity
func (v *T) Test(i uint64) bool {
	if i >= v.capacity {
		return false
	}
	return 0 != v.words[i>>log2WordSize]&(1<<(i&(wordSize-1)))
}

// Bytes - serialise the vector
func (v *T) Bytes() []byte {
	buffer := make([]byte, uint64Size+uint64Size*len(v.words))
	binary.BigEndian.PutUint64(buffer, v.capacity)
	for i, w := range v.words {
		binary.BigEndian.PutUint64(buffer[uint64Size+i*uint64Size:], w)
	}
	return buffer
}

func wordsNeeded(capacity uint64) uint64 {
	return (capacity + wordSize - 1) >> log2WordSize
}
