// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/hsdproxy/fault"
	"github.com/bitmark-inc/hsdproxy/fixtures"
)

var (
	ErrExistsOne   = fault.ExistsError("exists one ")
	ErrExistsTwo   = fault.ExistsError("exists two")
	ErrInvalidOne  = fault.InvalidError("invalid one")
	ErrInvalidTwo  = fault.InvalidError("invalid two")
	ErrNotFoundOne = fault.NotFoundError("not found one")
	ErrNotFoundTwo = fault.NotFoundError("not found two")
	ErrProcessOne  = fault.ProcessError("process one")
	ErrProcessTwo  = fault.ProcessError("process two")
)

// test that the error classes are distinguished
func TestClasses(t *testing.T) {
	errorList := []struct {
		err      error
		exists   bool
		invalid  bool
		notFound bool
		process  bool
	}{
		{ErrExistsOne, true, false, false, false},
		{ErrExistsTwo, true, false, false, false},
		{ErrInvalidOne, false, true, false, false},
		{ErrInvalidTwo, false, true, false, false},
		{ErrNotFoundOne, false, false, true, false},
		{ErrNotFoundTwo, false, false, true, false},
		{ErrProcessOne, false, false, false, true},
		{ErrProcessTwo, false, false, false, true},
		{fault.ErrInvalidCapacity, false, true, false, false},
		{fault.ErrBlockHeightUnavailable, false, false, false, true},
	}

	for i, e := range errorList {
		err := e.err
		if fault.IsErrExists(err) != e.exists {
			t.Errorf("%d: expected 'exists' == %v for err = %v", i, e.exists, err)
		}
		if fault.IsErrInvalid(err) != e.invalid {
			t.Errorf("%d: expected 'invalid' == %v for err = %v", i, e.invalid, err)
		}
		if fault.IsErrNotFound(err) != e.notFound {
			t.Errorf("%d: expected 'not found' == %v for err = %v", i, e.notFound, err)
		}
		if fault.IsErrProcess(err) != e.process {
			t.Errorf("%d: expected 'process' == %v for err = %v", i, e.process, err)
		}
	}
}

func TestRPCError(t *testing.T) {
	var err error = &fault.RPCError{Code: -32602, Message: "Invalid params."}

	r, ok := fault.IsRPCError(err)
	assert.True(t, ok, "not an rpc error")
	assert.Equal(t, -32602, r.Code, "wrong code")
	assert.Equal(t, "rpc error: -32602: Invalid params.", err.Error(), "wrong message")

	_, ok = fault.IsRPCError(fmt.Errorf("wrapped: %w", err))
	assert.False(t, ok, "wrapped error must not match directly")

	_, ok = fault.IsRPCError(fault.ErrInvalidCount)
	assert.False(t, ok, "plain error detected as rpc error")
}

func TestStatusError(t *testing.T) {
	err := &fault.StatusError{StatusCode: 404, Status: "404 Not Found"}
	assert.Equal(t, `backend status: 404 "404 Not Found"`, err.Error(), "wrong message")
}

func TestPanicIfError(t *testing.T) {
	assert.NotPanics(t, func() { fault.PanicIfError("nothing", nil) }, "nil error panicked")
	assert.Panics(t, func() { fault.PanicIfError("something", fault.ErrInvalidCount) }, "error did not panic")
	assert.Panics(t, func() { fault.Panicf("value: %d", 5) }, "no panic")
}

func TestInitialise(t *testing.T) {
	fixtures.SetupTestLogger()
	defer fixtures.TeardownTestLogger()

	err := fault.Initialise()
	assert.Nil(t, err, "wrong error")
	defer fault.Finalise()

	err = fault.Initialise()
	assert.Equal(t, fault.ErrAlreadyInitialised, err, "wrong error")

	assert.NotPanics(t, func() { fault.Criticalf("logged to: %s", "PANIC") }, "critical panicked")
}
