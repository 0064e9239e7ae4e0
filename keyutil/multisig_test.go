// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyutil

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	"github.com/davecgh/go-spew/spew"
)

const (
	errAtLeastOne = "a multisignature address must require at least one key to redeem"
	errTooMany    = "Number of keys involved in the multisignature address creation > 16\nReduce the number"
)

func TestCreateMultisigRedeemScriptErrors(t *testing.T) {
	tests := []struct {
		name     string
		required int
		keys     []PublicKey
		msg      string
	}{
		{"zero required, no keys", 0, nil, errAtLeastOne},
		{"zero required, too many keys", 0, testPubKeys(17, true), errAtLeastOne},
		{"negative required", -1, testPubKeys(3, true), errAtLeastOne},
		{"one short", 3, testPubKeys(2, true),
			"not enough keys supplied (got 2 keys, but need at least 3 to redeem)"},
		{"no keys", 1, nil,
			"not enough keys supplied (got 0 keys, but need at least 1 to redeem)"},
		// The key count is compared with required before the signer
		// ceiling.
		{"short beats ceiling", 20, testPubKeys(17, true),
			"not enough keys supplied (got 17 keys, but need at least 20 to redeem)"},
		{"seventeen keys", 17, testPubKeys(17, true), errTooMany},
		{"sixteen compressed keys", 2, testPubKeys(16, true),
			"redeemScript exceeds size limit: 547 > 520"},
		{"eight uncompressed keys", 1, testPubKeys(8, false),
			"redeemScript exceeds size limit: 531 > 520"},
	}
	for _, test := range tests {
		_, err := CreateMultisigRedeemScript(test.required, test.keys)
		checkRPCError(t, test.name, err, btcjson.ErrRPCInvalidParameter, test.msg)
	}

	// Seventeen keys trip the ceiling for every satisfiable threshold.
	keys := testPubKeys(17, true)
	for required := 1; required <= len(keys); required++ {
		_, err := CreateMultisigRedeemScript(required, keys)
		checkRPCError(t, fmt.Sprintf("17 keys, %d required", required),
			err, btcjson.ErrRPCInvalidParameter, errTooMany)
	}
}

func TestCreateMultisigRedeemScriptLimits(t *testing.T) {
	tests := []struct {
		name     string
		required int
		keys     []PublicKey
		size     int
	}{
		{"1-of-1", 1, testPubKeys(1, true), 37},
		{"15 compressed keys", 15, testPubKeys(15, true), 513},
		{"7 uncompressed keys", 4, testPubKeys(7, false), 465},
	}
	for _, test := range tests {
		script, err := CreateMultisigRedeemScript(test.required, test.keys)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if len(script) != test.size {
			t.Errorf("%s: want script size %d, got %d", test.name,
				test.size, len(script))
		}
		if len(script) > MaxScriptElementSize {
			t.Errorf("%s: script exceeds element size", test.name)
		}
	}
}

func TestCreateMultisigRedeemScriptRoundTrip(t *testing.T) {
	keys := []PublicKey{
		testPubKey(10, true),
		testPubKey(11, false),
		testPubKey(12, true),
	}
	script, err := CreateMultisigRedeemScript(2, keys)
	if err != nil {
		t.Fatalf("CreateMultisigRedeemScript: %v", err)
	}

	class, addrs, reqSigs, err := txscript.ExtractPkScriptAddrs(script,
		&chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("ExtractPkScriptAddrs: %v", err)
	}
	if class != txscript.MultiSigTy {
		t.Fatalf("want script class %v, got %v", txscript.MultiSigTy, class)
	}
	if reqSigs != 2 {
		t.Errorf("want 2 required signatures, got %d", reqSigs)
	}
	if len(addrs) != len(keys) {
		t.Fatalf("want %d keys, got %d:\n%s", len(keys), len(addrs),
			spew.Sdump(addrs))
	}
	for i, a := range addrs {
		pkAddr, ok := a.(*btcutil.AddressPubKey)
		if !ok {
			t.Fatalf("key %d: unexpected address type %T", i, a)
		}
		if !bytes.Equal(pkAddr.ScriptAddress(), keys[i]) {
			t.Errorf("key %d out of order: want %x, got %x", i,
				[]byte(keys[i]), pkAddr.ScriptAddress())
		}
	}

	// Same inputs, same bytes.  Different order, different bytes.
	again, _ := CreateMultisigRedeemScript(2, keys)
	if !bytes.Equal(script, again) {
		t.Errorf("script construction is not deterministic")
	}
	swapped := []PublicKey{keys[1], keys[0], keys[2]}
	other, _ := CreateMultisigRedeemScript(2, swapped)
	if bytes.Equal(script, other) {
		t.Errorf("key order did not affect the script")
	}
}
