// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyutil

import (
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
)

// ErrCodeInternal is the JSON-RPC code reported when the node's own data,
// rather than the caller's input, is at fault.
var ErrCodeInternal = btcjson.ErrRPCInternal.Code

func invalidAddressOrKey(format string, args ...interface{}) *btcjson.RPCError {
	return &btcjson.RPCError{
		Code:    btcjson.ErrRPCInvalidAddressOrKey,
		Message: fmt.Sprintf(format, args...),
	}
}

func invalidParameter(format string, args ...interface{}) *btcjson.RPCError {
	return &btcjson.RPCError{
		Code:    btcjson.ErrRPCInvalidParameter,
		Message: fmt.Sprintf(format, args...),
	}
}

func internalError(format string, args ...interface{}) *btcjson.RPCError {
	return &btcjson.RPCError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsErrorCode reports whether err is an RPC error with the given code.
func IsErrorCode(err error, code btcjson.RPCErrorCode) bool {
	switch e := err.(type) {
	case *btcjson.RPCError:
		return e != nil && e.Code == code
	case btcjson.RPCError:
		return e.Code == code
	}
	return false
}
