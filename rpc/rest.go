// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/policy"
	"github.com/bitmark-inc/hsdproxy/rpc/ratelimit"
)

var restCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hsdproxy_rest_calls_total",
	Help: "REST calls by kind and response status",
}, []string{"kind", "status"})

// REST request below the prefix
func (h *Handler) restRequest(w http.ResponseWriter, r *http.Request, path string) {
	err := ratelimit.Limit(r.Context(), h.limiter)
	if nil != err {
		h.sendLimitError(w, err)
		return
	}

	if underAny(path, h.rest.Disabled) {
		restCalls.WithLabelValues("disabled", "403").Inc()
		sendMessage(w, http.StatusForbidden, "Forbidden.")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if underAny(path, h.rest.Direct) {
			data, err := h.backend.Get(r.Context(), path)
			h.sendREST(w, "direct", path, data, err)
			return
		}
		data, err := h.policy.Path(r.Context(), path, policy.PathTTL)
		if nil == err && "/" == path {
			data = redactInfo(data)
		}
		h.sendREST(w, "cached", path, data, err)

	case http.MethodPost:
		if !underAny(path, h.rest.Post) {
			restCalls.WithLabelValues("post", "404").Inc()
			sendMessage(w, http.StatusNotFound, "Not found.")
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maximumBodySize))
		if nil != err {
			restCalls.WithLabelValues("post", "400").Inc()
			sendMessage(w, http.StatusBadRequest, "Invalid body.")
			return
		}
		if txByAddressPath == strings.TrimRight(path, "/") {
			h.txByAddress(w, r, path, body)
			return
		}
		data, err := h.backend.Post(r.Context(), path, body)
		h.sendREST(w, "post", path, data, err)

	default:
		sendMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

// pass the backend response or its status on
func (h *Handler) sendREST(w http.ResponseWriter, kind string, path string, data []byte, err error) {
	if nil == err {
		restCalls.WithLabelValues(kind, "200").Inc()
		sendJSON(w, http.StatusOK, data)
		return
	}

	if e, ok := err.(*fault.StatusError); ok {
		restCalls.WithLabelValues(kind, strconv.Itoa(e.StatusCode)).Inc()
		sendReply(w, e.StatusCode, e.StatusCode)
		return
	}

	h.log.Errorf("rest: %s  error: %s", path, err)
	restCalls.WithLabelValues(kind, "503").Inc()
	sendMessage(w, http.StatusServiceUnavailable, "Internal error.")
}

// true if path is one of the bases or below one of them
func underAny(path string, bases []string) bool {
	for _, base := range bases {
		base = "/" + strings.Trim(base, "/")
		if path == base || "/" == base || strings.HasPrefix(path, base+"/") {
			return true
		}
	}
	return false
}

// hide details of the node behind the proxy in the info reply
func redactInfo(data []byte) []byte {
	var info map[string]interface{}
	err := json.Unmarshal(data, &info)
	if nil != err {
		return data
	}

	if pool, ok := info["pool"].(map[string]interface{}); ok {
		pool["host"] = "0.0.0.0"
		pool["identitykey"] = ""
		pool["outbound"] = 0
		pool["inbound"] = 0
	}
	if t, ok := info["time"].(map[string]interface{}); ok {
		t["uptime"] = 0
	}
	if _, ok := info["memory"]; ok {
		info["memory"] = map[string]int{
			"total":       0,
			"jsHeap":      0,
			"jsHeapTotal": 0,
			"external":    0,
		}
	}

	redacted, err := json.Marshal(info)
	if nil != err {
		return data
	}
	return redacted
}
