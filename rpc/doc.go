// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package rpc - the HTTP front end of the proxy
//
// POST <prefix>            JSON-RPC, single call or batch
// GET  <prefix>/...        REST, cached at the current block
// POST <prefix>/...        REST, configured paths only
// GET  /healthz            liveness
// GET  /metrics            prometheus metrics
//
// JSON-RPC replies always carry id, result and error; errors reported
// by the node are passed on unchanged
package rpc
