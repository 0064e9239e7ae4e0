// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyutil

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg"
)

// KeyStore is the read side of a key store as seen by the resolver.
// Implementations must be safe for concurrent reads.
type KeyStore interface {
	// KeyIDForDestination returns the key id a destination pays to, if
	// any.  It does not imply the store holds the key itself.
	KeyIDForDestination(dest Destination) (KeyID, bool)

	// PubKey returns the full public key stored under id.
	PubKey(id KeyID) (PublicKey, bool)
}

// HexToPubKey decodes a hex encoded public key and checks that it is a
// valid point on the curve.
func HexToPubKey(hexStr string) (PublicKey, error) {
	if !isHex(hexStr) {
		return nil, invalidAddressOrKey("Invalid public key: %s", hexStr)
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, invalidAddressOrKey("Invalid public key: %s", hexStr)
	}
	pk := PublicKey(b)
	if !pk.IsFullyValid() {
		return nil, invalidAddressOrKey("Invalid public key: %s", hexStr)
	}
	return pk, nil
}

// AddrToPubKey decodes addr for the network described by params and looks
// up the full public key behind it in keys.
//
// A key the store cannot produce (for example a watch-only address) is the
// caller's problem and reported as ErrRPCInvalidAddressOrKey.  A key the
// store produces but which is not a valid curve point means the store is
// corrupt and is reported with ErrCodeInternal.
func AddrToPubKey(params *chaincfg.Params, keys KeyStore, addr string) (PublicKey, error) {
	dest := DecodeDestination(addr, params)
	if !dest.IsValid() {
		return nil, invalidAddressOrKey("Invalid address: %s", addr)
	}
	id, ok := keys.KeyIDForDestination(dest)
	if !ok {
		return nil, invalidAddressOrKey("%s does not refer to a key", addr)
	}
	pk, ok := keys.PubKey(id)
	if !ok {
		return nil, invalidAddressOrKey("no full public key for address %s", addr)
	}
	if !pk.IsFullyValid() {
		return nil, internalError("Wallet contains an invalid public key")
	}
	return pk, nil
}
