// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/bitmark-inc/logger"
)

// allow logging output to reach the file before the panic
const panicDelay = 100 * time.Millisecond

var (
	logLock sync.Mutex
	log     *logger.L
)

// Initialise - open the "PANIC" channel used for a last attempt to
// log something before aborting
func Initialise() error {
	logLock.Lock()
	defer logLock.Unlock()

	if nil != log {
		return ErrAlreadyInitialised
	}
	log = logger.New("PANIC")
	if nil == log {
		return ErrInvalidLoggerChannel
	}
	return nil
}

// Finalise - flush any data and detach from the logger
func Finalise() {
	logLock.Lock()
	defer logLock.Unlock()

	if nil != log {
		log.Flush()
		log = nil
	}
}

// Criticalf - log a formatted string prefixed by the caller's location
func Criticalf(format string, arguments ...interface{}) {
	criticalf(2, format, arguments...)
}

// Panicf - log a formatted message then panic
func Panicf(format string, arguments ...interface{}) {
	criticalf(2, format, arguments...)
	time.Sleep(panicDelay)
	panic(fmt.Sprintf(format, arguments...))
}

// PanicIfError - conditional panic
func PanicIfError(message string, err error) {
	if nil == err {
		return
	}
	criticalf(2, "%s failed with error: %s", message, err)
	time.Sleep(panicDelay)
	panic(fmt.Sprintf("%s failed with error: %s", message, err))
}

// depth is the number of frames to skip to reach the original caller
func criticalf(depth int, format string, arguments ...interface{}) {
	if _, file, line, ok := runtime.Caller(depth); ok {
		format = "(%q:%d) " + format
		arguments = append([]interface{}{file, line}, arguments...)
	}

	logLock.Lock()
	defer logLock.Unlock()

	// no channel yet so output to the console
	if nil == log {
		fmt.Printf("*** "+format+"\n", arguments...)
		return
	}
	log.Criticalf(format, arguments...)
	log.Flush()
}
