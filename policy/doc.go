// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package policy - choose cache keys and lifetimes for backend calls
//
// a result that depends on a block at least FinalityDepth blocks below
// the tip is stored under a key without the chain height:
//
//   rpc/perm/<method>/<md5 of params JSON>
//
// anything else is keyed by the chain height at the time of the call,
// so a new block makes it unreachable:
//
//   rpc/<height>/<method>/<md5 of params JSON>
//
// results that only need to be fresh for a while use:
//
//   rpc/<method>/<md5 of params JSON>
//
// the address blooms of a block are built from its verbose form and
// cached as a single record using the same finality rule
package policy
