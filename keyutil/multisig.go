// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyutil

import (
	"github.com/btcsuite/btcd/txscript"
)

const (
	// MaxPubKeysPerMultiSig is the most keys a multisig redeem script
	// built here may commit to.  This is the standardness limit, lower
	// than the 20 keys OP_CHECKMULTISIG accepts.
	MaxPubKeysPerMultiSig = 16

	// MaxScriptElementSize is the largest data push a script may
	// contain.  A redeem script is pushed whole when spending, so it is
	// bound by this limit too.
	MaxScriptElementSize = txscript.MaxScriptElementSize
)

// CreateMultisigRedeemScript returns the script
//
//	OP_<required> <pubkey 1> ... <pubkey n> OP_<n> OP_CHECKMULTISIG
//
// with keys in the order given.  The checks run in a fixed order and the
// first failing one decides the message: required below one, fewer keys
// than required, more than MaxPubKeysPerMultiSig keys, and finally the size
// of the serialized script.
func CreateMultisigRedeemScript(required int, pubKeys []PublicKey) ([]byte, error) {
	if required < 1 {
		return nil, invalidParameter("a multisignature address must " +
			"require at least one key to redeem")
	}
	if len(pubKeys) < required {
		return nil, invalidParameter("not enough keys supplied (got %d "+
			"keys, but need at least %d to redeem)", len(pubKeys),
			required)
	}
	if len(pubKeys) > MaxPubKeysPerMultiSig {
		return nil, invalidParameter("Number of keys involved in the " +
			"multisignature address creation > 16\nReduce the number")
	}

	builder := txscript.NewScriptBuilder().AddInt64(int64(required))
	for _, pk := range pubKeys {
		builder.AddData(pk)
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	script, err := builder.Script()
	if err != nil {
		return nil, internalError("unable to build redeemScript: %v", err)
	}

	if len(script) > MaxScriptElementSize {
		return nil, invalidParameter("redeemScript exceeds size limit: "+
			"%d > %d", len(script), MaxScriptElementSize)
	}
	return script, nil
}
