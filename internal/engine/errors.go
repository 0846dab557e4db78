package engine

import (
	"errors"
	"fmt"
)

// Code identifies why a transfer failed. Values follow libcurl's CURLcode.
type Code int

const (
	CodeOK                  Code = 0
	CodeUnsupportedProtocol Code = 1
	CodeURLMalformat        Code = 3
	CodeNotSupported        Code = 4
	CodeCouldntConnect      Code = 7
	CodeOperationTimedout   Code = 28
	CodeAbortedByCallback   Code = 42
	CodeBadFunctionArgument Code = 43
	CodeTooManyRedirects    Code = 47
	CodeSendError           Code = 55
	CodeRecvError           Code = 56
	CodeBadContentEncoding  Code = 61
)

var codeText = map[Code]string{
	CodeOK:                  "no error",
	CodeUnsupportedProtocol: "unsupported protocol",
	CodeURLMalformat:        "url malformed",
	CodeNotSupported:        "option not supported",
	CodeCouldntConnect:      "couldn't connect to server",
	CodeOperationTimedout:   "operation timed out",
	CodeAbortedByCallback:   "operation aborted by callback",
	CodeBadFunctionArgument: "bad function argument",
	CodeTooManyRedirects:    "number of redirects hit maximum amount",
	CodeSendError:           "failed sending data to the peer",
	CodeRecvError:           "failure when receiving data from the peer",
	CodeBadContentEncoding:  "unrecognized or bad content encoding",
}

func (c Code) String() string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return fmt.Sprintf("code %d", int(c))
}

// Error is returned by Request and by reads of a Result body.
type Error struct {
	Code Code
	Err  error
}

// ErrAbortedByCallback is the error a transfer ends with once its progress
// callback returned non-zero. Match it with errors.Is.
var ErrAbortedByCallback = &Error{Code: CodeAbortedByCallback}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine: %s (%d): %v", e.Code, int(e.Code), e.Err)
	}
	return fmt.Sprintf("engine: %s (%d)", e.Code, int(e.Code))
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Code == e.Code
}

// CodeOf returns the Code carried by err, or CodeOK when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeOK
}
