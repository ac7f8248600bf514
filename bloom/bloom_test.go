// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/hsdproxy/bloom"
	"github.com/bitmark-inc/hsdproxy/fault"
)

// serialised filter shared with light clients
const golden = "000000000000068e0000000000000017" +
	"000000000000068e4000000280000080" +
	"00000800000000020008000000000000" +
	"00048000000000000810000008400000" +
	"00000000004000000002000000000000" +
	"00008080400080000000001001010002" +
	"00004000000000000000002000200000" +
	"00000202001002000002008000040400" +
	"00000800000000000000002000000040" +
	"00000808000000000020208000001020" +
	"00902200000000000000000042000000" +
	"00000000000000000002000000000100" +
	"10080000000020040008000000800000" +
	"00000081000000000000000400000200" +
	"08800020080000000000000000000000"

var included = [][]byte{
	[]byte("test string"),
	{0x01, 0x02, 0x03},
	make([]byte, 32),
}

var excluded = [][]byte{
	bytes.Repeat([]byte{0x01}, 32),
	[]byte("another test string"),
	{0x03, 0x02, 0x01},
}

func TestGolden(t *testing.T) {
	f, err := bloom.New(1678, 23)
	assert.Nil(t, err, "wrong New")

	for _, e := range included {
		f.Add(e)
	}
	for i, e := range included {
		assert.True(t, f.Contains(e), "%d: included element missing", i)
	}
	for i, e := range excluded {
		assert.False(t, f.Contains(e), "%d: excluded element found", i)
	}

	b := f.Bytes()
	assert.Equal(t, 16+8+8*27, len(b), "wrong length")
	assert.Equal(t, golden, hex.EncodeToString(b), "wrong serialisation")
}

func TestInvalidParameters(t *testing.T) {
	for _, p := range [][2]uint64{{0, 1}, {1, 0}, {0, 0}} {
		f, err := bloom.New(p[0], p[1])
		assert.Equal(t, fault.ErrInvalidParameters, err, "m: %d  k: %d", p[0], p[1])
		assert.Nil(t, f, "filter created")
	}
}

func TestEmptyFilter(t *testing.T) {
	f, err := bloom.New(64, 3)
	assert.Nil(t, err, "wrong New")
	assert.False(t, f.Contains([]byte{}), "empty filter matched")
	assert.Equal(t, "0000000000000040"+"0000000000000003"+"0000000000000040"+"0000000000000000", hex.EncodeToString(f.Bytes()), "wrong serialisation")
}

func TestNoFalseNegatives(t *testing.T) {
	m, k := bloom.Recommended(500)
	f, err := bloom.New(m, k)
	assert.Nil(t, err, "wrong New")

	elements := make([][]byte, 0, 500)
	for i := 0; i < 500; i++ {
		e := []byte{byte(i >> 8), byte(i), 0x5a, byte(i * 7)}
		elements = append(elements, e)
		f.Add(e)
	}
	for i, e := range elements {
		assert.True(t, f.Contains(e), "%d: false negative", i)
	}
}

func TestDecode(t *testing.T) {
	data, err := hex.DecodeString(golden)
	assert.Nil(t, err, "bad golden hex")

	f, err := bloom.Decode(data)
	assert.Nil(t, err, "wrong Decode")
	assert.Equal(t, uint64(1678), f.M(), "wrong m")
	assert.Equal(t, uint64(23), f.K(), "wrong k")

	for i, e := range included {
		assert.True(t, f.Contains(e), "%d: included element missing", i)
	}
	for i, e := range excluded {
		assert.False(t, f.Contains(e), "%d: excluded element found", i)
	}
	assert.Equal(t, data, f.Bytes(), "wrong round trip")
}

func TestDecodeInvalid(t *testing.T) {
	invalid := []struct {
		data string
		err  error
	}{
		{"", fault.ErrInvalidParameters},
		{"0000000000000040", fault.ErrInvalidParameters},
		{"0000000000000000" + "0000000000000003" + "0000000000000000", fault.ErrInvalidParameters},
		{"0000000000000040" + "0000000000000000" + "0000000000000040" + "0000000000000000", fault.ErrInvalidParameters},
		// header says 65 bits, vector says 64
		{"0000000000000041" + "0000000000000003" + "0000000000000040" + "0000000000000000", fault.ErrInvalidParameters},
		// vector truncated
		{"0000000000000040" + "0000000000000003" + "0000000000000040", fault.ErrInvalidBitVectorLength},
	}
	for i, item := range invalid {
		data, _ := hex.DecodeString(item.data)
		_, err := bloom.Decode(data)
		assert.Equal(t, item.err, err, "%d: wrong error", i)
	}
}

func TestRecommended(t *testing.T) {
	sizes := []struct {
		count int
		m     uint64
		k     uint64
	}{
		{0, 1007, 23},
		{9, 1007, 23},
		{10, 5572, 13},
		{99, 5572, 13},
		{100, 14378, 13},
		{249, 14378, 13},
		{250, 28576, 13},
		{499, 28576, 13},
		{500, 57511, 13},
		{999, 57511, 13},
		{1000, 76681, 13},
		{50000, 76681, 13},
	}
	for _, s := range sizes {
		m, k := bloom.Recommended(s.count)
		assert.Equal(t, s.m, m, "count: %d  wrong m", s.count)
		assert.Equal(t, s.k, k, "count: %d  wrong k", s.count)
	}
}
