// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
)

const (
	txByAddressPath = "/tx/address"

	maximumAddresses  = 10000
	maximumBlockRange = 250
)

type txByAddressReply struct {
	StartBlock float64         `json:"startBlock"`
	EndBlock   float64         `json:"endBlock"`
	TXs        json.RawMessage `json:"txs"`
}

// transactions touching a list of addresses over a bounded block
// range, the backend result is returned below "txs"
func (h *Handler) txByAddress(w http.ResponseWriter, r *http.Request, path string, body []byte) {
	var request map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&request); nil != err {
		restCalls.WithLabelValues("post", "400").Inc()
		sendMessage(w, http.StatusBadRequest, "Invalid body.")
		return
	}

	start, end, message := checkTXByAddress(request)
	if "" != message {
		restCalls.WithLabelValues("post", "400").Inc()
		sendMessage(w, http.StatusBadRequest, message)
		return
	}

	data, err := h.backend.Post(r.Context(), path, body)
	if nil != err {
		h.sendREST(w, "post", path, nil, err)
		return
	}

	restCalls.WithLabelValues("post", "200").Inc()
	sendReply(w, http.StatusOK, txByAddressReply{
		StartBlock: start,
		EndBlock:   end,
		TXs:        data,
	})
}

// validate the request, a non-blank message is the reason for rejection
func checkTXByAddress(request map[string]interface{}) (float64, float64, string) {
	addresses, _ := request["addresses"].([]interface{})
	if 0 == len(addresses) {
		return 0, 0, "Must specify a list of addresses."
	}
	if len(addresses) > maximumAddresses {
		return 0, 0, "Cannot specify more than 10000 addresses."
	}

	startValue, hasStart := request["startBlock"]
	endValue, hasEnd := request["endBlock"]
	if !hasStart || !hasEnd {
		return 0, 0, "Must specify start and end blocks."
	}

	start := numeric(startValue)
	end := numeric(endValue)
	if math.IsNaN(start) || math.IsNaN(end) {
		return 0, 0, "Must specify numeric start and end blocks."
	}
	if start > end {
		return 0, 0, "Start block must be before end block."
	}
	if end-start+1 > maximumBlockRange {
		return 0, 0, "Cannot specify a block range of more than 250 blocks."
	}
	return start, end, ""
}

// loose numeric conversion: null and blank strings are zero, numeric
// strings are parsed and anything else is NaN
func numeric(v interface{}) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case bool:
		if n {
			return 1
		}
		return 0
	case json.Number:
		f, err := n.Float64()
		if nil != err {
			return math.NaN()
		}
		return f
	case string:
		s := strings.TrimSpace(n)
		if "" == s {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if nil != err || math.IsInf(f, 0) {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}
