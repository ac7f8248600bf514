// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloom - membership filter published to light clients
//
// The wire format and the murmur3 probe derivation are shared with
// external verifiers, so any change to either makes previously cached
// filters unreadable.
//
// wire format:
//
//   [m: uint64 BE][k: uint64 BE][bit vector with capacity m]
package bloom
