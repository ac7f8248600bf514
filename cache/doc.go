// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cache - stores for cached backend responses
//
//  ***** Keys *****
//
//  block_height                        current chain height           10s
//  rpc/<height>/<method>/<md5>         volatile RPC result            per method class
//  rpc/perm/<method>/<md5>             RPC result for a final block   24h
//  rpc/<method>/<md5>                  height independent RPC result  per method
//  rpc/<height>/<path>                 REST GET body                  30m
//
//  ***** Stores *****
//
//  redis    shared between proxy instances, values snappy compressed
//  leveldb  single instance on disk, values are:
//             [expiry: uint64 BE unix seconds][snappy compressed value]
//           expired records read as absent and are removed by a sweeper
//  memory   single instance, for testing and small deployments
package cache
