// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpc

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/rpc/certificate"
)

const (
	serverLogName = "http_rpc"

	// backend calls may take up to the backend timeout, leave room for
	// queueing in the gate
	readTimeout  = 10 * time.Second
	writeTimeout = 60 * time.Second
)

// Server - HTTP or HTTPS listeners sharing one handler
type Server struct {
	sync.Mutex

	log       *logger.L
	listen    []string
	handler   http.Handler
	tlsConfig *tls.Config
	servers   []*http.Server
	addresses []string
}

// NewServer - prepare listeners, TLS if a certificate is configured
func NewServer(configuration *ServerConfiguration, handler http.Handler, log *logger.L) (*Server, error) {
	if nil == log {
		return nil, fault.ErrInvalidLoggerChannel
	}
	if 0 == len(configuration.Listen) {
		log.Errorf("%s: no listen addresses", serverLogName)
		return nil, fault.ErrMissingParameters
	}

	s := &Server{
		log:     log,
		listen:  configuration.Listen,
		handler: handler,
	}

	if "" != configuration.Certificate || "" != configuration.PrivateKey {
		tlsConfiguration, fingerprint, err := certificate.Load(log, serverLogName, configuration.Certificate, configuration.PrivateKey)
		if nil != err {
			return nil, err
		}
		tlsConfiguration.NextProtos = []string{"http/1.1"}
		s.tlsConfig = tlsConfiguration

		log.Infof("%s: SHA3-256 fingerprint: %x", serverLogName, fingerprint)
	}

	return s, nil
}

// Start - open all listeners and serve in background
func (s *Server) Start() error {
	s.Lock()
	defer s.Unlock()

	for _, listen := range s.listen {
		if '*' == listen[0] {
			// change "*:PORT" to "[::]:PORT"
			// on the assumption that this will listen on tcp4 and tcp6
			listen = "[::]" + ":" + strings.Split(listen, ":")[1]
		}

		ln, err := net.Listen("tcp", listen)
		if nil != err {
			s.log.Errorf("%s: listen on: %q  error: %s", serverLogName, listen, err)
			s.shutdown(context.Background())
			return err
		}

		var l net.Listener = tcpKeepAliveListener{ln.(*net.TCPListener)}
		if nil != s.tlsConfig {
			l = tls.NewListener(l, s.tlsConfig)
		}

		server := &http.Server{
			Handler:        s.handler,
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			MaxHeaderBytes: 1 << 20,
		}
		s.servers = append(s.servers, server)
		s.addresses = append(s.addresses, ln.Addr().String())

		s.log.Infof("starting server: %s on: %s  tls: %t", serverLogName, ln.Addr(), nil != s.tlsConfig)

		go func() {
			err := server.Serve(l)
			if nil != err && http.ErrServerClosed != err {
				s.log.Errorf("%s: serve error: %s", serverLogName, err)
			}
		}()
	}
	return nil
}

// Addresses - the bound listen addresses
func (s *Server) Addresses() []string {
	s.Lock()
	defer s.Unlock()
	return append([]string{}, s.addresses...)
}

// Stop - stop accepting and wait for active requests
func (s *Server) Stop(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()
	return s.shutdown(ctx)
}

func (s *Server) shutdown(ctx context.Context) error {
	var first error
	for _, server := range s.servers {
		err := server.Shutdown(ctx)
		if nil != err && nil == first {
			first = err
		}
	}
	s.servers = nil
	s.addresses = nil
	return first
}

type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if nil != err {
		return nil, err
	}
	_ = tc.SetKeepAlive(true)
	_ = tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
