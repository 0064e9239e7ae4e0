// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyutil

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/davecgh/go-spew/spew"
)

// testPubKey derives a deterministic key from a one byte seed.
func testPubKey(seed byte, compressed bool) PublicKey {
	var secret [32]byte
	secret[31] = seed
	_, pub := btcec.PrivKeyFromBytes(btcec.S256(), secret[:])
	if compressed {
		return PublicKey(pub.SerializeCompressed())
	}
	return PublicKey(pub.SerializeUncompressed())
}

func testPubKeys(n int, compressed bool) []PublicKey {
	keys := make([]PublicKey, n)
	for i := range keys {
		keys[i] = testPubKey(byte(i+1), compressed)
	}
	return keys
}

// fakeStore resolves only key destinations, like the node's key store.
type fakeStore struct {
	keys map[KeyID]PublicKey
}

func newFakeStore(keys ...PublicKey) *fakeStore {
	s := &fakeStore{keys: make(map[KeyID]PublicKey)}
	for _, pk := range keys {
		s.keys[pk.ID()] = pk
	}
	return s
}

func (s *fakeStore) KeyIDForDestination(d Destination) (KeyID, bool) {
	return d.KeyID()
}

func (s *fakeStore) PubKey(id KeyID) (PublicKey, bool) {
	pk, ok := s.keys[id]
	return pk, ok
}

// checkRPCError fails the test unless err is an *btcjson.RPCError with the
// wanted code and message.
func checkRPCError(t *testing.T, name string, err error, code btcjson.RPCErrorCode, msg string) {
	t.Helper()
	rpcErr, ok := err.(*btcjson.RPCError)
	if !ok {
		t.Errorf("%s: want *btcjson.RPCError, got %T (%v)", name, err, err)
		return
	}
	if rpcErr.Code != code {
		t.Errorf("%s: wrong code: want %d, got %d", name, code, rpcErr.Code)
	}
	if rpcErr.Message != msg {
		t.Errorf("%s: wrong message:\nwant %q\ngot  %q", name, msg, rpcErr.Message)
	}
}

func TestHexToPubKey(t *testing.T) {
	compressed := testPubKey(1, true)
	uncompressed := testPubKey(1, false)

	valid := []string{
		compressed.String(),
		uncompressed.String(),
		strings.ToUpper(compressed.String()),
	}
	for _, s := range valid {
		pk, err := HexToPubKey(s)
		if err != nil {
			t.Errorf("HexToPubKey(%q): unexpected error: %v", s, err)
			continue
		}
		if !pk.IsFullyValid() {
			t.Errorf("HexToPubKey(%q): returned key is not fully valid", s)
		}
		want, _ := hex.DecodeString(s)
		if !bytes.Equal(pk, want) {
			t.Errorf("HexToPubKey(%q): got %x", s, []byte(pk))
		}
	}

	offCurve := "04" + strings.Repeat("00", 31) + "01" + strings.Repeat("00", 31) + "01"
	invalid := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"odd length", compressed.String()[1:]},
		{"not hex", "zz" + compressed.String()[2:]},
		{"whitespace", " " + compressed.String()},
		{"unknown prefix", "05" + compressed.String()[2:]},
		{"compressed prefix with uncompressed length", "02" + uncompressed.String()[2:]},
		{"truncated", compressed.String()[:64]},
		{"x beyond field prime", "02" + strings.Repeat("ff", 32)},
		{"point not on curve", offCurve},
	}
	for _, test := range invalid {
		_, err := HexToPubKey(test.in)
		checkRPCError(t, test.name, err, btcjson.ErrRPCInvalidAddressOrKey,
			"Invalid public key: "+test.in)
	}
}

func TestPublicKeyPredicates(t *testing.T) {
	compressed := testPubKey(7, true)
	uncompressed := testPubKey(7, false)

	if !compressed.IsCompressed() || uncompressed.IsCompressed() {
		t.Errorf("IsCompressed mismatch")
	}
	if compressed.ID() == uncompressed.ID() {
		t.Errorf("compressed and uncompressed keys share an id")
	}
	if (PublicKey{}).IsValid() {
		t.Errorf("empty key reported valid")
	}
	wrongLen := append(PublicKey{}, compressed...)
	wrongLen = append(wrongLen, 0x00)
	if wrongLen.IsValid() || wrongLen.IsFullyValid() {
		t.Errorf("key with trailing byte reported valid")
	}
}

func TestIsPubKeyHex(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{testPubKey(1, true).String(), true},
		{testPubKey(1, false).String(), true},
		{"1BoatSLRHtKNngkdXEeobR76b53LETtpyT", false},
		{strings.Repeat("0", 64), false},
		{strings.Repeat("g", 66), false},
	}
	for _, test := range tests {
		if got := IsPubKeyHex(test.in); got != test.want {
			t.Errorf("IsPubKeyHex(%q): want %v, got %v", test.in, test.want, got)
		}
	}
}

func TestAddrToPubKey(t *testing.T) {
	params := &chaincfg.MainNetParams

	held := testPubKey(1, true)
	watchOnly := testPubKey(2, true)
	corruptID := testPubKey(3, true).ID()

	store := newFakeStore(held)
	corrupt := append(PublicKey{}, testPubKey(3, true)...)
	corrupt[0] = 0x05
	store.keys[corruptID] = corrupt

	encode := func(d Destination, p *chaincfg.Params) string {
		s, err := EncodeDestination(d, p)
		if err != nil {
			t.Fatalf("EncodeDestination: %v", err)
		}
		return s
	}
	heldAddr := encode(KeyDestination(held.ID()), params)
	watchAddr := encode(KeyDestination(watchOnly.ID()), params)
	corruptAddr := encode(KeyDestination(corruptID), params)
	scriptAddr := encode(ScriptDestination(ScriptIDFromScript([]byte{0x51})), params)
	testnetAddr := encode(KeyDestination(held.ID()), &chaincfg.TestNet3Params)

	pk, err := AddrToPubKey(params, store, heldAddr)
	if err != nil {
		t.Fatalf("AddrToPubKey(%s): %v", heldAddr, err)
	}
	if !bytes.Equal(pk, held) {
		t.Fatalf("AddrToPubKey returned wrong key:\n%s", spew.Sdump(pk))
	}

	tests := []struct {
		name string
		addr string
		code btcjson.RPCErrorCode
		msg  string
	}{
		{"garbage", "notanaddress", btcjson.ErrRPCInvalidAddressOrKey,
			"Invalid address: notanaddress"},
		{"empty", "", btcjson.ErrRPCInvalidAddressOrKey,
			"Invalid address: "},
		{"wrong network", testnetAddr, btcjson.ErrRPCInvalidAddressOrKey,
			"Invalid address: " + testnetAddr},
		{"hex public key", held.String(), btcjson.ErrRPCInvalidAddressOrKey,
			"Invalid address: " + held.String()},
		{"uncompressed hex public key", testPubKey(4, false).String(),
			btcjson.ErrRPCInvalidAddressOrKey,
			"Invalid address: " + testPubKey(4, false).String()},
		{"script address", scriptAddr, btcjson.ErrRPCInvalidAddressOrKey,
			scriptAddr + " does not refer to a key"},
		{"watch-only", watchAddr, btcjson.ErrRPCInvalidAddressOrKey,
			"no full public key for address " + watchAddr},
		{"corrupt store", corruptAddr, ErrCodeInternal,
			"Wallet contains an invalid public key"},
	}
	for _, test := range tests {
		_, err := AddrToPubKey(params, store, test.addr)
		checkRPCError(t, test.name, err, test.code, test.msg)
	}
}

func TestIsErrorCode(t *testing.T) {
	_, err := HexToPubKey("nope")
	if !IsErrorCode(err, btcjson.ErrRPCInvalidAddressOrKey) {
		t.Errorf("IsErrorCode: want match for %v", err)
	}
	if IsErrorCode(err, btcjson.ErrRPCInvalidParameter) {
		t.Errorf("IsErrorCode: unexpected match for %v", err)
	}
	if IsErrorCode(nil, btcjson.ErrRPCInvalidParameter) {
		t.Errorf("IsErrorCode: nil error matched")
	}
	var typedNil *btcjson.RPCError
	if IsErrorCode(typedNil, btcjson.ErrRPCInvalidParameter) {
		t.Errorf("IsErrorCode: typed nil error matched")
	}
}
