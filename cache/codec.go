// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cache

import (
	"encoding/binary"
	"time"

	"github.com/golang/snappy"

	"github.com/bitmark-inc/hsdproxy/fault"
)

const expirySize = 8

func compress(value []byte) []byte {
	return snappy.Encode(nil, value)
}

func decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

// prefix the compressed value with its absolute expiry time in
// nanoseconds
func packExpiring(value []byte, expires time.Time) []byte {
	compressed := compress(value)
	record := make([]byte, expirySize, expirySize+len(compressed))
	binary.BigEndian.PutUint64(record, uint64(expires.UnixNano()))
	return append(record, compressed...)
}

// return the expiry and the still compressed value
func unpackExpiring(record []byte) (time.Time, []byte, error) {
	if len(record) < expirySize {
		return time.Time{}, nil, fault.ErrTruncatedRecord
	}
	expires := time.Unix(0, int64(binary.BigEndian.Uint64(record[:expirySize])))
	return expires, record[expirySize:], nil
}
