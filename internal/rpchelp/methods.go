// Copyright (c) 2015-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpchelp

import (
	"sort"
	"strings"
)

// Common results.
var (
	resultString = &Arg{Name: "result", Type: ArgStr}
	resultHex    = &Arg{Name: "result", Type: ArgStrHex}
)

// Methods describes every method served by the RPC server, keyed by method
// name.
var Methods = map[string]*HelpMan{
	"createmultisig": NewHelpMan("createmultisig",
		"Creates a multi-signature address with n keys where nrequired "+
			"signatures are required to redeem.",
		&Arg{Name: "result", Type: ArgObj, Inner: []Arg{
			{Name: "address", Type: ArgStr, Description: "The new pay-to-script-hash address."},
			{Name: "redeemScript", Type: ArgStrHex, Description: "The hex-encoded redeem script."},
		}},
		Arg{Name: "nrequired", Type: ArgNum,
			Description: "The number of required signatures out of the n keys."},
		Arg{Name: "keys", Type: ArgArr,
			Description: "Hex-encoded public keys, or addresses whose public key is held by the key store.",
			Inner:       []Arg{{Name: "key", Type: ArgStr}}},
	),

	"getaddresspubkey": NewHelpMan("getaddresspubkey",
		"Returns the full public key behind an address held by the key store.",
		resultHex,
		Arg{Name: "address", Type: ArgStr, Description: "The address to look up."},
	),

	"help": NewHelpMan("help",
		"Returns a list of all commands or help for a specified command.",
		resultString,
		Arg{Name: "command", Type: ArgStr, Optional: true,
			Description: "The command to retrieve help for."},
	),

	"importpubkey": NewHelpMan("importpubkey",
		"Adds a public key to the key store.",
		nil,
		Arg{Name: "pubkey", Type: ArgStrHex, Description: "The hex-encoded public key."},
		Arg{Name: "rescan", Type: ArgBool, Optional: true,
			Description: "Accepted for compatibility. No rescan is performed."},
	),

	"stop": NewHelpMan("stop",
		"Stops the server.",
		resultString,
	),

	"validateaddress": NewHelpMan("validateaddress",
		"Returns information about the given address.",
		&Arg{Name: "result", Type: ArgObj, Inner: []Arg{
			{Name: "isvalid", Type: ArgBool, Description: "Whether the address is valid. Other fields are only set when it is."},
			{Name: "address", Type: ArgStr, Description: "The address validated."},
			{Name: "scriptPubKey", Type: ArgStrHex, Description: "The hex-encoded output script paying to the address."},
			{Name: "isscript", Type: ArgBool, Description: "Whether the address pays to a script."},
			{Name: "ismine", Type: ArgBool, Description: "Whether the key store holds the full public key."},
			{Name: "pubkey", Type: ArgStrHex, Description: "The public key, when ismine is true."},
		}},
		Arg{Name: "address", Type: ArgStr, Description: "The address to validate."},
	),
}

// Usages returns the usage line of every method, sorted by method name.
func Usages() string {
	names := make([]string, 0, len(Methods))
	for name := range Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(Methods[name].String())
	}
	return b.String()
}
