// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package legacyrpc

import (
	"errors"

	"github.com/btcsuite/btcd/btcjson"
)

var (
	// ErrNoAuth represents an error where authentication could not succeed
	// due to a missing Authorization HTTP header.
	ErrNoAuth = errors.New("no auth")

	errBadAuth = errors.New("bad auth")
)

// jsonError creates a JSON-RPC error from the Go error.  Errors that are
// not already RPC errors use the catch-all code btcjson.ErrRPCWallet.
func jsonError(err error) *btcjson.RPCError {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case btcjson.RPCError:
		return &e
	case *btcjson.RPCError:
		return e
	}
	return &btcjson.RPCError{
		Code:    btcjson.ErrRPCWallet,
		Message: err.Error(),
	}
}
