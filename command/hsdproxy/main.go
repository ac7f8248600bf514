// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/hsdproxy/backend"
	"github.com/bitmark-inc/hsdproxy/cache"
	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/height"
	"github.com/bitmark-inc/hsdproxy/policy"
	"github.com/bitmark-inc/hsdproxy/rpc"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// how long in-flight requests may take to finish at shutdown
const shutdownTimeout = 15 * time.Second

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		processSetupCommand(program, []string{"version"})
		return
	}

	if len(options["help"]) > 0 {
		processSetupCommand(program, []string{"help"})
		return
	}

	// these commands do not require the configuration and
	// process data needed for initial setup
	if len(arguments) > 0 && processSetupCommand(program, arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: only one config-file option is required, %d were detected", program, len(options["config-file"]))
	}

	// read options and parse the configuration file
	configurationFile := options["config-file"][0]
	theConfiguration, err := getConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// these commands require the configuration and
	// perform enquiries on the configuration
	if len(arguments) > 0 && processConfigCommand(arguments, theConfiguration) {
		return
	}

	// start logging
	if err = logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// last gasp channel for invariant failures
	if err = fault.Initialise(); nil != err {
		exitwithstatus.Message("%s: fault setup failed with error: %s", program, err)
	}
	defer fault.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)
	log.Debugf("theConfiguration: %v", theConfiguration)

	// optional PID file
	// use if not running under a supervisor program like daemon(8)
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if nil != err {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed, error: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	log.Info("initialise cache")
	store, err := cache.New(&theConfiguration.Cache, logger.New("cache"))
	if nil != err {
		log.Criticalf("cache initialise error: %s", err)
		exitwithstatus.Message("cache initialise error: %s", err)
	}
	defer store.Close()

	log.Info("initialise backend")
	client, err := backend.New(&theConfiguration.Backend, logger.New("backend"))
	if nil != err {
		log.Criticalf("backend initialise error: %s", err)
		exitwithstatus.Message("backend initialise error: %s", err)
	}

	heights := height.New(store, client, logger.New("height"))
	p := policy.New(store, client, heights, logger.New("policy"))

	rpcLog := logger.New("rpc")
	handler, err := rpc.NewHandler(
		&theConfiguration.Server,
		&theConfiguration.Methods,
		&theConfiguration.REST,
		p,
		client,
		rpcLog,
	)
	if nil != err {
		log.Criticalf("rpc handler initialise error: %s", err)
		exitwithstatus.Message("rpc handler initialise error: %s", err)
	}

	server, err := rpc.NewServer(&theConfiguration.Server, handler, rpcLog)
	if nil != err {
		log.Criticalf("rpc server initialise error: %s", err)
		exitwithstatus.Message("rpc server initialise error: %s", err)
	}

	log.Info("start server")
	if err = server.Start(); nil != err {
		log.Criticalf("rpc server start error: %s", err)
		exitwithstatus.Message("rpc server start error: %s", err)
	}
	for _, address := range server.Addresses() {
		log.Infof("listening on: %s", address)
	}

	// wait for CTRL-C before shutting down to allow manual testing
	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…")
	}

	// turn Signals into channel messages
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\n", sig)
		fmt.Printf("\nshutting down…\n")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down…")
	if err := server.Stop(ctx); nil != err {
		log.Errorf("rpc server stop error: %s", err)
	}
}
