// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/bitmark-inc/hsdproxy/bitvector"
	"github.com/bitmark-inc/hsdproxy/fault"
)

const headerSize = 16

// Filter - a bloom filter of m slots and k probes per element
type Filter struct {
	m      uint64
	k      uint64
	vector *bitvector.T
}

// New - create an empty filter
func New(m uint64, k uint64) (*Filter, error) {
	if 0 == m || 0 == k {
		return nil, fault.ErrInvalidParameters
	}

	// capacity is an int, so guard against truncation
	if m > uint64(maxCapacity) {
		return nil, fault.ErrInvalidParameters
	}
	vector, err := bitvector.New(int(m))
	if nil != err {
		return nil, err
	}

	return &Filter{
		m:      m,
		k:      k,
		vector: vector,
	}, nil
}

// Decode - rebuild a filter from its wire format
func Decode(data []byte) (*Filter, error) {
	if len(data) < headerSize {
		return nil, fault.ErrInvalidParameters
	}
	m := binary.BigEndian.Uint64(data[0:8])
	k := binary.BigEndian.Uint64(data[8:16])
	if 0 == m || 0 == k {
		return nil, fault.ErrInvalidParameters
	}

	vector, err := bitvector.Decode(data[headerSize:])
	if nil != err {
		return nil, err
	}
	if vector.Capacity() != m {
		return nil, fault.ErrInvalidParameters
	}

	return &Filter{
		m:      m,
		k:      k,
		vector: vector,
	}, nil
}

// M - number of slots
func (f *Filter) M() uint64 {
	return f.m
}

// K - number of probes
func (f *Filter) K() uint64 {
	return f.k
}

// Add - insert an element
func (f *Filter) Add(element []byte) {
	h := baseHashes(element)
	for i := uint64(0); i < f.k; i++ {
		// location is always below m which is the vector capacity
		_ = f.vector.Set(f.location(h, i))
	}
}

// Contains - false means definitely absent, true means possibly present
func (f *Filter) Contains(element []byte) bool {
	h := baseHashes(element)
	for i := uint64(0); i < f.k; i++ {
		if !f.vector.Test(f.location(h, i)) {
			return false
		}
	}
	return true
}

// Bytes - serialise as: m (uint64 BE), k (uint64 BE), bit vector
func (f *Filter) Bytes() []byte {
	vector := f.vector.Bytes()

	buffer := make([]byte, headerSize, headerSize+len(vector))
	binary.BigEndian.PutUint64(buffer[0:8], f.m)
	binary.BigEndian.PutUint64(buffer[8:16], f.k)
	return append(buffer, vector...)
}

// two 128 bit digests from a single streaming state: one of the
// element, the next after also writing a 0x01 byte
func baseHashes(element []byte) [4]uint64 {
	hasher := murmur3.New128()
	hasher.Write(element)
	a, b := hasher.Sum128()
	hasher.Write([]byte{0x01})
	c, d := hasher.Sum128()
	return [4]uint64{a, b, c, d}
}

// enhanced double hashing, the multiplier alternates between the
// halves of the second digest
//
// the sum deliberately wraps at 2^64; existing serialised filters were
// produced that way
func (f *Filter) location(h [4]uint64, i uint64) uint64 {
	j := 2 + ((i+i%2)%4)/2
	return (h[i%2] + i*h[j]) % f.m
}
