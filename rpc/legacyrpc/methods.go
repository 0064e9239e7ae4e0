// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package legacyrpc

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/keyrpc/internal/rpchelp"
	"github.com/btcsuite/keyrpc/keyutil"
)

// KeyStore is the key store a Server resolves and imports keys with.
type KeyStore interface {
	keyutil.KeyStore

	// ImportPubKey adds a fully valid key, reporting whether it was new.
	ImportPubKey(pk keyutil.PublicKey) (bool, error)
}

// GetAddressPubKeyCmd defines the getaddresspubkey JSON-RPC command.
type GetAddressPubKeyCmd struct {
	Address string
}

func init() {
	btcjson.MustRegisterCmd("getaddresspubkey", (*GetAddressPubKeyCmd)(nil),
		btcjson.UFWalletOnly)
}

// rpcContext is what every request handler runs against.
type rpcContext struct {
	keys   KeyStore
	params *chaincfg.Params
}

// requestHandler is a handler function to handle an unmarshaled and parsed
// request into a marshalable response.  If the error is a *btcjson.RPCError
// the server responds with its code.  All other errors use the catch-all
// error code, btcjson.ErrRPCWallet.
type requestHandler func(interface{}, *rpcContext) (interface{}, error)

var rpcHandlers = map[string]struct {
	handler requestHandler

	// noHelp marks methods the help tests should not require
	// documentation for.
	noHelp bool
}{
	"createmultisig":   {handler: createMultiSig},
	"getaddresspubkey": {handler: getAddressPubKey},
	"help":             {handler: help},
	"importpubkey":     {handler: importPubKey},
	"validateaddress":  {handler: validateAddress},
}

// requestUsages contains single line usages for every supported request,
// separated by newlines.  Building it at package initialization panics on a
// malformed method table.
var requestUsages = rpchelp.Usages()

// lazyHandler is a closure over a requestHandler and the context it runs
// against.
type lazyHandler func() (interface{}, *btcjson.RPCError)

// lazyApplyHandler looks up the request handler for the method and returns
// a closure that parses the request and runs the handler.  Unknown methods
// answer with btcjson.ErrRPCMethodNotFound.
func lazyApplyHandler(request *btcjson.Request, c *rpcContext) lazyHandler {
	handlerData, ok := rpcHandlers[request.Method]
	if !ok {
		return func() (interface{}, *btcjson.RPCError) {
			return nil, btcjson.ErrRPCMethodNotFound
		}
	}

	return func() (interface{}, *btcjson.RPCError) {
		cmd, err := btcjson.UnmarshalCmd(request)
		if err != nil {
			return nil, &btcjson.RPCError{
				Code:    btcjson.ErrRPCInvalidParams.Code,
				Message: "Failed to parse request: " + err.Error(),
			}
		}
		resp, err := handlerData.handler(cmd, c)
		if err != nil {
			return nil, jsonError(err)
		}
		return resp, nil
	}
}

// resolveKey turns one createmultisig key argument into a public key.  Hex
// strings of public key length are decoded directly, anything else is
// treated as an address whose key must be held by the key store.
func resolveKey(s string, c *rpcContext) (keyutil.PublicKey, error) {
	if keyutil.IsPubKeyHex(s) {
		return keyutil.HexToPubKey(s)
	}
	return keyutil.AddrToPubKey(c.params, c.keys, s)
}

// createMultiSig handles a createmultisig request by returning the
// pay-to-script-hash address and redeem script of the given keys.
func createMultiSig(icmd interface{}, c *rpcContext) (interface{}, error) {
	cmd := icmd.(*btcjson.CreateMultisigCmd)

	pubKeys := make([]keyutil.PublicKey, len(cmd.Keys))
	for i, k := range cmd.Keys {
		pk, err := resolveKey(k, c)
		if err != nil {
			return nil, err
		}
		pubKeys[i] = pk
	}

	script, err := keyutil.CreateMultisigRedeemScript(cmd.NRequired, pubKeys)
	if err != nil {
		return nil, err
	}

	dest := keyutil.ScriptDestination(keyutil.ScriptIDFromScript(script))
	address, err := keyutil.EncodeDestination(dest, c.params)
	if err != nil {
		// The script hash has a valid length, this cannot happen.
		return nil, err
	}

	return btcjson.CreateMultiSigResult{
		Address:      address,
		RedeemScript: hex.EncodeToString(script),
	}, nil
}

// getAddressPubKey handles a getaddresspubkey request by returning the full
// public key of an address held by the key store.
func getAddressPubKey(icmd interface{}, c *rpcContext) (interface{}, error) {
	cmd := icmd.(*GetAddressPubKeyCmd)

	pk, err := keyutil.AddrToPubKey(c.params, c.keys, cmd.Address)
	if err != nil {
		return nil, err
	}
	return pk.String(), nil
}

// importPubKey handles an importpubkey request by adding the key to the key
// store.  The rescan argument is accepted and ignored.
func importPubKey(icmd interface{}, c *rpcContext) (interface{}, error) {
	cmd := icmd.(*btcjson.ImportPubKeyCmd)

	pk, err := keyutil.HexToPubKey(cmd.PubKey)
	if err != nil {
		return nil, err
	}
	added, err := c.keys.ImportPubKey(pk)
	if err != nil {
		return nil, err
	}
	if !added {
		log.Debugf("Public key %v already imported", pk.ID())
	}
	return nil, nil
}

// validateAddressResult models the data returned from validateaddress.
type validateAddressResult struct {
	IsValid      bool   `json:"isvalid"`
	Address      string `json:"address,omitempty"`
	ScriptPubKey string `json:"scriptPubKey,omitempty"`
	keyutil.AddressDescription
	IsMine *bool  `json:"ismine,omitempty"`
	PubKey string `json:"pubkey,omitempty"`
}

// validateAddress handles the validateaddress command.
func validateAddress(icmd interface{}, c *rpcContext) (interface{}, error) {
	cmd := icmd.(*btcjson.ValidateAddressCmd)

	dest := keyutil.DecodeDestination(cmd.Address, c.params)
	if !dest.IsValid() {
		// Use result zero value (IsValid=false).
		return validateAddressResult{}, nil
	}

	addr, err := dest.Address(c.params)
	if err != nil {
		return nil, err
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	result := validateAddressResult{
		IsValid:            true,
		Address:            addr.EncodeAddress(),
		ScriptPubKey:       hex.EncodeToString(pkScript),
		AddressDescription: keyutil.DescribeAddress(dest),
	}

	isMine := false
	if id, ok := c.keys.KeyIDForDestination(dest); ok {
		if pk, ok := c.keys.PubKey(id); ok && pk.IsFullyValid() {
			isMine = true
			result.PubKey = pk.String()
		}
	}
	result.IsMine = &isMine

	return result, nil
}

// help handles the help request by returning one line usage of all
// available methods, or full help for a specific method.
func help(icmd interface{}, c *rpcContext) (interface{}, error) {
	cmd := icmd.(*btcjson.HelpCmd)

	if cmd.Command == nil || *cmd.Command == "" {
		return requestUsages, nil
	}

	h, ok := rpchelp.Methods[*cmd.Command]
	if !ok {
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCInvalidParameter,
			Message: fmt.Sprintf("No help for method '%s'", *cmd.Command),
		}
	}
	return h.Help(), nil
}
