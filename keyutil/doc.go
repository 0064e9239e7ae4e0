// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package keyutil turns caller supplied strings into validated secp256k1 key
material for the RPC server.

Hex encoded public keys are decoded and fully validated with HexToPubKey.
Textual addresses are decoded against a set of chain parameters and the
public key behind them is fetched from a KeyStore with AddrToPubKey.  Sets of
keys are combined into a bare multisig redeem script with
CreateMultisigRedeemScript, which enforces the consensus limits on signer
count and pushed element size.

Every caller facing failure is a *btcjson.RPCError carrying one of the codes
ErrRPCInvalidAddressOrKey, ErrRPCInvalidParameter or, for a key store that
hands back a corrupt key, the internal error code.  Message text is part of
the RPC contract and is matched verbatim by clients.

Nothing in this package holds mutable state.  All functions are safe for
concurrent use as long as the KeyStore they are handed is.
*/
package keyutil
