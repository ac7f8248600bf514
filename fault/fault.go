// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"fmt"
)

// GenericError - error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised        = ExistsError("already initialised")
	ErrBitIndexOutOfRange        = InvalidError("bit index out of range")
	ErrBlockHeightUnavailable    = ProcessError("error getting block height")
	ErrBlockNotFound             = NotFoundError("block not found")
	ErrCertificateFileExists     = ExistsError("certificate file already exists")
	ErrDuplicateMethod           = ExistsError("duplicate method")
	ErrInvalidBackendURL         = InvalidError("invalid backend url")
	ErrInvalidBitVectorLength    = InvalidError("invalid bit vector length")
	ErrInvalidCacheType          = InvalidError("invalid cache type")
	ErrInvalidCapacity           = InvalidError("invalid capacity")
	ErrInvalidConfiguration      = InvalidError("configuration must return a table")
	ErrInvalidCount              = InvalidError("invalid count")
	ErrInvalidLoggerChannel      = InvalidError("invalid logger channel")
	ErrInvalidParameters         = InvalidError("invalid parameters")
	ErrInvalidStructPointer      = InvalidError("invalid struct pointer")
	ErrInvalidTickets            = InvalidError("invalid number of tickets")
	ErrKeyFileExists             = ExistsError("key file already exists")
	ErrMissingParameters         = InvalidError("missing parameters")
	ErrRateLimiting              = InvalidError("rate limiting")
	ErrTransactionIDLength       = InvalidError("transaction id length is invalid")
	ErrTruncatedRecord           = ProcessError("truncated cache record")
	ErrUnexpectedBackendResponse = ProcessError("unexpected backend response")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool   { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool  { _, ok := e.(InvalidError); return ok }
func IsErrNotFound(e error) bool { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool  { _, ok := e.(ProcessError); return ok }

// JSON-RPC error codes
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeParseError     = -32700
	CodeDisabled       = -32000
)

// RPCError - an error reported by the backend node in a JSON-RPC reply
//
// it is passed to clients unchanged
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error: %d: %s", e.Code, e.Message)
}

// NewInvalidParams - an invalid params error with a specific message
func NewInvalidParams(message string) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: message}
}

// IsRPCError - check for a backend reported error
func IsRPCError(e error) (*RPCError, bool) {
	r, ok := e.(*RPCError)
	return r, ok
}

// StatusError - a REST call to the backend returned a non-2xx status
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status: %d %q", e.StatusCode, e.Status)
}
