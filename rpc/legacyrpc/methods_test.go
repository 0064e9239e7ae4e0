// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package legacyrpc

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/keyrpc/keystore"
	"github.com/btcsuite/keyrpc/keyutil"
	"github.com/stretchr/testify/require"
)

func testPubKey(seed byte) keyutil.PublicKey {
	var secret [32]byte
	secret[31] = seed
	_, pub := btcec.PrivKeyFromBytes(btcec.S256(), secret[:])
	return keyutil.PublicKey(pub.SerializeCompressed())
}

func testContext() *rpcContext {
	return &rpcContext{
		keys:   keystore.NewMemStore(),
		params: &chaincfg.MainNetParams,
	}
}

func keyAddress(t *testing.T, pk keyutil.PublicKey, params *chaincfg.Params) string {
	addr, err := keyutil.EncodeDestination(keyutil.KeyDestination(pk.ID()), params)
	require.NoError(t, err)
	return addr
}

func requireRPCError(t *testing.T, err error, code btcjson.RPCErrorCode, msg string) {
	t.Helper()
	require.Error(t, err)
	rpcErr, ok := err.(*btcjson.RPCError)
	require.True(t, ok, "unexpected error type %T", err)
	require.Equal(t, code, rpcErr.Code)
	require.Equal(t, msg, rpcErr.Message)
}

func TestCreateMultiSigHexKeys(t *testing.T) {
	c := testContext()
	pk1, pk2 := testPubKey(1), testPubKey(2)

	res, err := createMultiSig(&btcjson.CreateMultisigCmd{
		NRequired: 2,
		Keys:      []string{pk1.String(), pk2.String()},
	}, c)
	require.NoError(t, err)
	result := res.(btcjson.CreateMultiSigResult)

	script, err := keyutil.CreateMultisigRedeemScript(2, []keyutil.PublicKey{pk1, pk2})
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(script), result.RedeemScript)

	addr, err := btcutil.DecodeAddress(result.Address, c.params)
	require.NoError(t, err)
	p2sh, ok := addr.(*btcutil.AddressScriptHash)
	require.True(t, ok, "unexpected address type %T", addr)
	require.Equal(t, btcutil.Hash160(script), p2sh.ScriptAddress())
}

func TestCreateMultiSigAddressKeys(t *testing.T) {
	c := testContext()
	pk1, pk2 := testPubKey(1), testPubKey(2)
	_, err := c.keys.ImportPubKey(pk1)
	require.NoError(t, err)

	// Addresses and hex keys may be mixed.
	res, err := createMultiSig(&btcjson.CreateMultisigCmd{
		NRequired: 1,
		Keys:      []string{keyAddress(t, pk1, c.params), pk2.String()},
	}, c)
	require.NoError(t, err)
	script, err := keyutil.CreateMultisigRedeemScript(1, []keyutil.PublicKey{pk1, pk2})
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(script), res.(btcjson.CreateMultiSigResult).RedeemScript)

	// A key the store does not hold fails the whole request.
	unknown := keyAddress(t, testPubKey(3), c.params)
	_, err = createMultiSig(&btcjson.CreateMultisigCmd{
		NRequired: 1,
		Keys:      []string{pk2.String(), unknown},
	}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidAddressOrKey,
		"no full public key for address "+unknown)
}

func TestCreateMultiSigErrors(t *testing.T) {
	c := testContext()
	pk := testPubKey(1).String()

	_, err := createMultiSig(&btcjson.CreateMultisigCmd{
		NRequired: 0,
		Keys:      []string{pk},
	}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidParameter,
		"a multisignature address must require at least one key to redeem")

	_, err = createMultiSig(&btcjson.CreateMultisigCmd{
		NRequired: 1,
		Keys:      []string{"nonsense"},
	}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidAddressOrKey,
		"Invalid address: nonsense")

	// Hex of public key length whose x coordinate is out of range.
	bad := "02" + strings.Repeat("ff", 32)
	_, err = createMultiSig(&btcjson.CreateMultisigCmd{
		NRequired: 1,
		Keys:      []string{bad},
	}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidAddressOrKey,
		"Invalid public key: "+bad)
}

func TestGetAddressPubKey(t *testing.T) {
	c := testContext()
	pk := testPubKey(4)
	addr := keyAddress(t, pk, c.params)

	_, err := getAddressPubKey(&GetAddressPubKeyCmd{Address: addr}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidAddressOrKey,
		"no full public key for address "+addr)

	_, err = importPubKey(&btcjson.ImportPubKeyCmd{PubKey: pk.String()}, c)
	require.NoError(t, err)

	res, err := getAddressPubKey(&GetAddressPubKeyCmd{Address: addr}, c)
	require.NoError(t, err)
	require.Equal(t, pk.String(), res)

	// A hex key is not an address, even when the store holds it.
	_, err = getAddressPubKey(&GetAddressPubKeyCmd{Address: pk.String()}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidAddressOrKey,
		"Invalid address: "+pk.String())
}

func TestImportPubKey(t *testing.T) {
	c := testContext()
	pk := testPubKey(5)

	for i := 0; i < 2; i++ {
		res, err := importPubKey(&btcjson.ImportPubKeyCmd{PubKey: pk.String()}, c)
		require.NoError(t, err)
		require.Nil(t, res)
	}
	_, ok := c.keys.PubKey(pk.ID())
	require.True(t, ok)

	_, err := importPubKey(&btcjson.ImportPubKeyCmd{PubKey: "zz"}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidAddressOrKey,
		"Invalid public key: zz")
}

func TestValidateAddress(t *testing.T) {
	c := testContext()
	pk := testPubKey(6)
	addr := keyAddress(t, pk, c.params)

	marshal := func(addr string) string {
		res, err := validateAddress(&btcjson.ValidateAddressCmd{Address: addr}, c)
		require.NoError(t, err)
		b, err := json.Marshal(res)
		require.NoError(t, err)
		return string(b)
	}

	require.Equal(t, `{"isvalid":false}`, marshal("nonsense"))
	require.Equal(t, `{"isvalid":false}`, marshal(pk.String()))

	// Wrong network.
	require.Equal(t, `{"isvalid":false}`,
		marshal(keyAddress(t, pk, &chaincfg.TestNet3Params)))

	id := pk.ID()
	scriptPubKey := "76a914" + hex.EncodeToString(id[:]) + "88ac"
	require.Equal(t, `{"isvalid":true,"address":"`+addr+`","scriptPubKey":"`+
		scriptPubKey+`","isscript":false,"ismine":false}`, marshal(addr))

	_, err := c.keys.ImportPubKey(pk)
	require.NoError(t, err)
	require.Equal(t, `{"isvalid":true,"address":"`+addr+`","scriptPubKey":"`+
		scriptPubKey+`","isscript":false,"ismine":true,"pubkey":"`+
		pk.String()+`"}`, marshal(addr))

	sid := keyutil.ScriptIDFromScript([]byte{0x51})
	p2sh, err := keyutil.EncodeDestination(keyutil.ScriptDestination(sid), c.params)
	require.NoError(t, err)
	require.Equal(t, `{"isvalid":true,"address":"`+p2sh+`","scriptPubKey":"a914`+
		hex.EncodeToString(sid[:])+`87","isscript":true,"ismine":false}`, marshal(p2sh))
}

func TestHelp(t *testing.T) {
	c := testContext()

	cmd := "createmultisig"
	res, err := help(&btcjson.HelpCmd{Command: &cmd}, c)
	require.NoError(t, err)
	require.Contains(t, res, `createmultisig nrequired ["key",...]`)

	cmd = "getbalance"
	_, err = help(&btcjson.HelpCmd{Command: &cmd}, c)
	requireRPCError(t, err, btcjson.ErrRPCInvalidParameter,
		"No help for method 'getbalance'")
}

func TestLazyApplyHandler(t *testing.T) {
	c := testContext()

	req, err := btcjson.NewRequest(1, "getbalance", nil)
	require.NoError(t, err)
	_, jsonErr := lazyApplyHandler(req, c)()
	require.Equal(t, btcjson.ErrRPCMethodNotFound, jsonErr)

	req, err = btcjson.NewRequest(1, "createmultisig", []interface{}{"two"})
	require.NoError(t, err)
	_, jsonErr = lazyApplyHandler(req, c)()
	require.NotNil(t, jsonErr)
	require.Equal(t, btcjson.ErrRPCInvalidParams.Code, jsonErr.Code)

	pk := testPubKey(7)
	req, err = btcjson.NewRequest(1, "createmultisig",
		[]interface{}{1, []string{pk.String()}})
	require.NoError(t, err)
	res, jsonErr := lazyApplyHandler(req, c)()
	require.Nil(t, jsonErr)
	require.IsType(t, btcjson.CreateMultiSigResult{}, res)

	req, err = btcjson.NewRequest(1, "createmultisig",
		[]interface{}{2, []string{pk.String()}})
	require.NoError(t, err)
	_, jsonErr = lazyApplyHandler(req, c)()
	require.NotNil(t, jsonErr)
	require.Equal(t, btcjson.ErrRPCInvalidParameter, jsonErr.Code)
}
