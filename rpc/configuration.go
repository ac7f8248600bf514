// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

// defaults
const (
	DefaultPrefix    = "/hsd"
	DefaultRateLimit = 200 // requests per second
	DefaultRateBurst = 400
)

// ServerConfiguration - configuration file data for the HTTP(S) server
//
// TLS is used when both certificate and private key are set
type ServerConfiguration struct {
	Listen      []string `gluamapper:"listen" json:"listen"`
	Certificate string   `gluamapper:"certificate" json:"certificate"`
	PrivateKey  string   `gluamapper:"private_key" json:"private_key"`
	RateLimit   float64  `gluamapper:"rate_limit" json:"rate_limit"`
	RateBurst   int      `gluamapper:"rate_burst" json:"rate_burst"`
	Prefix      string   `gluamapper:"rest_prefix" json:"rest_prefix"`
}

// MethodsConfiguration - how each JSON-RPC method is answered
//
// direct:   always sent to the backend
// block:    cached until the next block (at most 15 minutes)
// mempool:  cached until the next block (at most 10 seconds)
// timed:    method name to lifetime in seconds, independent of blocks
// disabled: rejected with code -32000
//
// methods not listed anywhere are not found
type MethodsConfiguration struct {
	Direct   []string       `gluamapper:"direct" json:"direct"`
	Block    []string       `gluamapper:"block" json:"block"`
	Mempool  []string       `gluamapper:"mempool" json:"mempool"`
	Timed    map[string]int `gluamapper:"timed" json:"timed"`
	Disabled []string       `gluamapper:"disabled" json:"disabled"`
}

// RESTConfiguration - how REST paths below the prefix are answered
//
// GET requests are cached at the current block unless the path is
// under a direct or disabled path, POST requests must be listed in
// post
type RESTConfiguration struct {
	Direct   []string `gluamapper:"direct" json:"direct"`
	Post     []string `gluamapper:"post" json:"post"`
	Disabled []string `gluamapper:"disabled" json:"disabled"`
}
