// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/bitmark-inc/hsdproxy/backend"
	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/policy"
)

// largest request body accepted
const maximumBodySize = 4 << 20

// Handler - the HTTP front end
type Handler struct {
	log     *logger.L
	policy  *policy.Policy
	backend backend.Backend
	limiter *rate.Limiter
	prefix  string
	methods map[string]method
	rest    *RESTConfiguration
	start   time.Time
	mux     *http.ServeMux
}

// NewHandler - create the front end
func NewHandler(
	server *ServerConfiguration,
	methods *MethodsConfiguration,
	rest *RESTConfiguration,
	p *policy.Policy,
	b backend.Backend,
	log *logger.L,
) (*Handler, error) {
	if nil == log {
		return nil, fault.ErrInvalidLoggerChannel
	}

	prefix := "/" + strings.Trim(server.Prefix, "/")
	if "/" == prefix {
		prefix = DefaultPrefix
	}

	limit := rate.Limit(server.RateLimit)
	if server.RateLimit <= 0 {
		limit = DefaultRateLimit
	}
	burst := server.RateBurst
	if burst <= 0 {
		burst = DefaultRateBurst
	}

	if nil == rest {
		rest = &RESTConfiguration{}
	}

	h := &Handler{
		log:     log,
		policy:  p,
		backend: b,
		limiter: rate.NewLimiter(limit, burst),
		prefix:  prefix,
		rest:    rest,
		start:   time.Now(),
	}

	err := h.register(methods)
	if nil != err {
		return nil, err
	}

	h.mux = http.NewServeMux()
	h.mux.HandleFunc(prefix, h.hsd)
	h.mux.HandleFunc(prefix+"/", h.hsd)
	h.mux.HandleFunc("/healthz", h.healthz)
	h.mux.Handle("/metrics", promhttp.Handler())
	h.mux.HandleFunc("/", h.root)

	log.Infof("prefix: %s  rate limit: %g/s  burst: %d  methods: %d", prefix, float64(limit), burst, len(h.methods))

	return h, nil
}

// ServeHTTP - dispatch a request
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// JSON-RPC on POST to the prefix, REST below it
func (h *Handler) hsd(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, h.prefix)
	if "" == path {
		path = "/"
	}

	if http.MethodPost == r.Method && "/" == path {
		h.rpc(w, r)
		return
	}
	h.restRequest(w, r, path)
}

// JSON-RPC is also accepted at the root
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	if "/" == r.URL.Path && http.MethodPost == r.Method {
		h.rpc(w, r)
		return
	}
	sendMessage(w, http.StatusNotFound, "Not found.")
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if http.MethodGet != r.Method {
		sendMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	sendReply(w, http.StatusOK, struct {
		Message string `json:"message"`
		Uptime  string `json:"uptime"`
	}{
		Message: "OK",
		Uptime:  time.Since(h.start).Truncate(time.Second).String(),
	})
}

// send an already encoded JSON body
func sendJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// send a JSON encoded reply
func sendReply(w http.ResponseWriter, status int, data interface{}) {
	text, err := json.Marshal(data)
	if nil != err {
		// manually composed error just incase JSON fails
		http.Error(w, `{"message":"Internal error."}`, http.StatusInternalServerError)
		return
	}
	sendJSON(w, status, text)
}

// send {"message": text}
func sendMessage(w http.ResponseWriter, status int, message string) {
	sendReply(w, status, struct {
		Message string `json:"message"`
	}{
		Message: message,
	})
}
