// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyutil

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
)

// DestinationKind identifies the variant held by a Destination.
type DestinationKind uint8

// The closed set of destination variants.
const (
	// NoDestination is the zero value and marks an address that could
	// not be decoded or is of an unsupported kind.
	NoDestination DestinationKind = iota

	// KeyIDDestination pays to the hash160 of a public key.
	KeyIDDestination

	// ScriptIDDestination pays to the hash160 of a redeem script.
	ScriptIDDestination
)

var destinationKindStrings = map[DestinationKind]string{
	NoDestination:       "nodestination",
	KeyIDDestination:    "keyid",
	ScriptIDDestination: "scriptid",
}

// String returns the DestinationKind in human-readable form.
func (k DestinationKind) String() string {
	s, ok := destinationKindStrings[k]
	if ok {
		return s
	}
	return fmt.Sprintf("Unknown DestinationKind (%d)", uint8(k))
}

// Destination is a tagged address target.  The zero value is
// NoDestination.
type Destination struct {
	kind DestinationKind
	hash [20]byte
}

// KeyDestination returns a destination paying to the key with the given
// id.
func KeyDestination(id KeyID) Destination {
	return Destination{kind: KeyIDDestination, hash: id}
}

// ScriptDestination returns a destination paying to the script with the
// given id.
func ScriptDestination(id ScriptID) Destination {
	return Destination{kind: ScriptIDDestination, hash: id}
}

// Kind returns the variant held by d.
func (d Destination) Kind() DestinationKind { return d.kind }

// IsValid reports whether d is anything other than NoDestination.
func (d Destination) IsValid() bool { return d.kind != NoDestination }

// KeyID returns the key id of a key destination.
func (d Destination) KeyID() (KeyID, bool) {
	if d.kind != KeyIDDestination {
		return KeyID{}, false
	}
	return KeyID(d.hash), true
}

// ScriptID returns the script id of a script destination.
func (d Destination) ScriptID() (ScriptID, bool) {
	if d.kind != ScriptIDDestination {
		return ScriptID{}, false
	}
	return ScriptID(d.hash), true
}

// DecodeDestination decodes an encoded address for the network described
// by params.  Pay-to-pubkey-hash addresses decode to a key destination and
// pay-to-script-hash addresses to a script destination.  Everything else
// decodes to NoDestination, including addresses for another network and
// bare hex public keys, which btcutil accepts as pay-to-pubkey addresses.
func DecodeDestination(s string, params *chaincfg.Params) Destination {
	addr, err := btcutil.DecodeAddress(s, params)
	if err != nil || !addr.IsForNet(params) {
		return Destination{}
	}
	return destinationForAddress(addr)
}

func destinationForAddress(addr btcutil.Address) Destination {
	switch a := addr.(type) {
	case *btcutil.AddressPubKeyHash:
		return KeyDestination(KeyID(*a.Hash160()))
	case *btcutil.AddressScriptHash:
		return ScriptDestination(ScriptID(*a.Hash160()))
	}
	return Destination{}
}

// EncodeDestination returns the address string of d on the network
// described by params.  NoDestination encodes to the empty string.
func EncodeDestination(d Destination, params *chaincfg.Params) (string, error) {
	addr, err := d.Address(params)
	if err != nil || addr == nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// Address converts d to the btcutil address type for the network described
// by params.  NoDestination converts to a nil address.
func (d Destination) Address(params *chaincfg.Params) (btcutil.Address, error) {
	switch d.kind {
	case NoDestination:
		return nil, nil
	case KeyIDDestination:
		return btcutil.NewAddressPubKeyHash(d.hash[:], params)
	case ScriptIDDestination:
		return btcutil.NewAddressScriptHashFromHash(d.hash[:], params)
	}
	panic(fmt.Sprintf("unhandled destination kind %v", d.kind))
}

// AddressDescription is the destination-dependent part of an address
// introspection response.  It is empty for NoDestination.
type AddressDescription struct {
	IsScript *bool `json:"isscript,omitempty"`
}

// DescribeAddress classifies d for address introspection responses.
func DescribeAddress(d Destination) AddressDescription {
	isScript := func(b bool) AddressDescription {
		return AddressDescription{IsScript: &b}
	}
	switch d.kind {
	case NoDestination:
		return AddressDescription{}
	case KeyIDDestination:
		return isScript(false)
	case ScriptIDDestination:
		return isScript(true)
	}
	panic(fmt.Sprintf("unhandled destination kind %v", d.kind))
}
