// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/policy"
	"github.com/bitmark-inc/hsdproxy/rpc/ratelimit"
)

// built in methods
const (
	getBloomByHeight      = "getbloombyheight"
	getBloomByHeightRange = "getbloombyheightrange"
)

// most calls in one batch
const maximumBatch = 100

// standard replies
var (
	errInvalidRequest = &fault.RPCError{Code: fault.CodeInvalidRequest, Message: "Invalid request."}
	errMethodNotFound = &fault.RPCError{Code: fault.CodeMethodNotFound, Message: "Method not found."}
	errInvalidParams  = &fault.RPCError{Code: fault.CodeInvalidParams, Message: "Invalid params."}
	errInternalError  = &fault.RPCError{Code: fault.CodeInternalError, Message: "Internal error."}
	errParseError     = &fault.RPCError{Code: fault.CodeParseError, Message: "Parse error."}
	errDisabled       = &fault.RPCError{Code: fault.CodeDisabled, Message: "RPC method is disabled."}
)

var rpcCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hsdproxy_rpc_calls_total",
	Help: "JSON-RPC calls by method class and outcome",
}, []string{"class", "outcome"})

// answers one call
type method struct {
	class string
	call  func(ctx context.Context, name string, params []interface{}) (json.RawMessage, error)
}

// a single call as received
type request struct {
	ID     json.RawMessage `json:"id"`
	Method json.RawMessage `json:"method"`
	Params json.RawMessage `json:"params"`
}

// a single reply
type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *fault.RPCError `json:"error"`
}

// build the method table from configuration
func (h *Handler) register(methods *MethodsConfiguration) error {
	h.methods = map[string]method{
		getBloomByHeight:      {class: "bloom", call: h.bloomByHeight},
		getBloomByHeightRange: {class: "bloom", call: h.bloomByHeightRange},
	}
	if nil == methods {
		return nil
	}

	add := func(names []string, m method) error {
		for _, name := range names {
			if _, ok := h.methods[name]; ok {
				h.log.Errorf("method: %q configured more than once", name)
				return fault.ErrDuplicateMethod
			}
			h.methods[name] = m
		}
		return nil
	}

	err := add(methods.Direct, method{class: "direct", call: h.policy.Direct})
	if nil != err {
		return err
	}
	err = add(methods.Block, method{class: "block", call: h.expiring(policy.BlockExpiry)})
	if nil != err {
		return err
	}
	err = add(methods.Mempool, method{class: "mempool", call: h.expiring(policy.MempoolExpiry)})
	if nil != err {
		return err
	}
	err = add(methods.Disabled, method{class: "disabled", call: disabled})
	if nil != err {
		return err
	}

	for name, seconds := range methods.Timed {
		if seconds <= 0 {
			h.log.Errorf("method: %q invalid lifetime: %d", name, seconds)
			return fault.ErrInvalidParameters
		}
		err = add([]string{name}, method{class: "timed", call: h.timed(time.Duration(seconds) * time.Second)})
		if nil != err {
			return err
		}
	}
	return nil
}

func (h *Handler) expiring(expiry policy.Expiry) func(context.Context, string, []interface{}) (json.RawMessage, error) {
	return func(ctx context.Context, name string, params []interface{}) (json.RawMessage, error) {
		return h.policy.Resolve(ctx, name, params, nil, expiry)
	}
}

func (h *Handler) timed(ttl time.Duration) func(context.Context, string, []interface{}) (json.RawMessage, error) {
	return func(ctx context.Context, name string, params []interface{}) (json.RawMessage, error) {
		return h.policy.Timed(ctx, name, params, ttl)
	}
}

func disabled(ctx context.Context, name string, params []interface{}) (json.RawMessage, error) {
	return nil, errDisabled
}

// POST of a single call or a batch
func (h *Handler) rpc(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maximumBodySize))
	if nil != err {
		h.log.Warnf("rpc read error: %s", err)
		sendReply(w, http.StatusOK, &response{Error: errParseError})
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && '[' == body[0] {
		var batch []json.RawMessage
		err = json.Unmarshal(body, &batch)
		if nil != err {
			sendReply(w, http.StatusOK, &response{Error: errParseError})
			return
		}

		if 0 == len(batch) {
			sendReply(w, http.StatusOK, []*response{})
			return
		}

		err = ratelimit.LimitN(r.Context(), h.limiter, len(batch), maximumBatch)
		if nil != err {
			h.sendLimitError(w, err)
			return
		}

		responses := make([]*response, len(batch))
		for i, item := range batch {
			responses[i] = h.call(r.Context(), item)
		}
		sendReply(w, http.StatusOK, responses)
		return
	}

	if !json.Valid(body) {
		sendReply(w, http.StatusOK, &response{Error: errParseError})
		return
	}

	err = ratelimit.Limit(r.Context(), h.limiter)
	if nil != err {
		h.sendLimitError(w, err)
		return
	}

	sendReply(w, http.StatusOK, h.call(r.Context(), body))
}

func (h *Handler) sendLimitError(w http.ResponseWriter, err error) {
	switch err {
	case fault.ErrInvalidCount:
		sendReply(w, http.StatusOK, &response{Error: errInvalidRequest})
	case fault.ErrRateLimiting:
		sendMessage(w, http.StatusTooManyRequests, "Too many requests.")
	default:
		// client went away while waiting
		sendMessage(w, http.StatusServiceUnavailable, "Request cancelled.")
	}
}

// decode and answer one call
func (h *Handler) call(ctx context.Context, raw json.RawMessage) *response {
	raw = bytes.TrimSpace(raw)
	if 0 == len(raw) || '{' != raw[0] {
		return &response{Error: errInvalidRequest}
	}

	var req request
	err := json.Unmarshal(raw, &req)
	if nil != err {
		return &response{Error: errInvalidRequest}
	}

	id := bytes.TrimSpace(req.ID)
	if len(id) > 0 && ('{' == id[0] || '[' == id[0]) {
		return &response{Error: errInvalidRequest}
	}

	reply := &response{ID: id}

	var name string
	err = json.Unmarshal(req.Method, &name)
	if nil != err || 0 == len(req.Method) {
		reply.Error = errMethodNotFound
		return reply
	}

	params, ok := decodeParams(req.Params)
	if !ok {
		reply.Error = errInvalidParams
		return reply
	}

	m, ok := h.methods[name]
	if !ok {
		reply.Error = errMethodNotFound
		return reply
	}

	result, err := m.call(ctx, name, params)
	if nil != err {
		if e, ok := fault.IsRPCError(err); ok {
			reply.Error = e
		} else {
			h.log.Errorf("method: %s  error: %s", name, err)
			reply.Error = errInternalError
		}
		rpcCalls.WithLabelValues(m.class, "error").Inc()
		return reply
	}

	rpcCalls.WithLabelValues(m.class, "result").Inc()
	reply.Result = result
	return reply
}

// params must be an array, anything that is false in JavaScript means
// no params
func decodeParams(raw json.RawMessage) ([]interface{}, bool) {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", "0", `""`:
		return []interface{}{}, true
	}
	if '[' != raw[0] {
		return nil, false
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var params []interface{}
	err := decoder.Decode(&params)
	if nil != err {
		return nil, false
	}
	return params, true
}

// bloom records for a list of heights, entries that are not numbers
// are skipped
func (h *Handler) bloomByHeight(ctx context.Context, name string, params []interface{}) (json.RawMessage, error) {
	if len(params) < 1 {
		return nil, fault.NewInvalidParams("Must specify at least one block height.")
	}
	if len(params) > policy.MaximumHeights {
		return nil, fault.NewInvalidParams("Cannot specify more than 100 block heights.")
	}

	heights := make([]int64, 0, len(params))
	for _, p := range params {
		number, ok := p.(json.Number)
		if !ok {
			continue
		}

		// negative heights are skipped, even fractional ones
		if f, err := number.Float64(); nil == err && f < 0 {
			continue
		}
		n, ok := integer(p)
		if !ok {
			return nil, errInvalidParams
		}
		heights = append(heights, n)
	}

	records, err := h.policy.AddressBlooms(ctx, heights)
	if nil != err {
		return nil, err
	}
	return json.Marshal(records)
}

// bloom records for [start, end]
func (h *Handler) bloomByHeightRange(ctx context.Context, name string, params []interface{}) (json.RawMessage, error) {
	if 2 != len(params) {
		return nil, fault.NewInvalidParams("Must specify a start and end block height.")
	}

	start, ok := integer(params[0])
	if !ok {
		return nil, fault.NewInvalidParams("Start and end must be integers.")
	}
	end, ok := integer(params[1])
	if !ok {
		return nil, fault.NewInvalidParams("Start and end must be integers.")
	}

	records, err := h.policy.AddressBloomRange(ctx, start, end)
	if nil != err {
		return nil, err
	}
	return json.Marshal(records)
}

// the value of an integral JSON number, out of range values are
// clamped
func integer(v interface{}) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if nil == err {
		return i, true
	}

	f, err := n.Float64()
	if nil != err && !math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, true
	case f <= math.MinInt64:
		return math.MinInt64, true
	}
	return int64(f), true
}
