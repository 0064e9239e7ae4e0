// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keyutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec"
	"golang.org/x/crypto/ripemd160"
)

// Serialized public key prefixes.
const (
	pubKeyCompressedEven   = 0x02
	pubKeyCompressedOdd    = 0x03
	pubKeyUncompressed     = 0x04
	pubKeyHybridEven       = 0x06
	pubKeyHybridOdd        = 0x07
	pubKeyCompressedSize   = btcec.PubKeyBytesLenCompressed
	pubKeyUncompressedSize = btcec.PubKeyBytesLenUncompressed
)

// KeyID is the hash160 of a serialized public key.
type KeyID [ripemd160.Size]byte

// ScriptID is the hash160 of a serialized redeem script.
type ScriptID [ripemd160.Size]byte

// String returns the hex encoding of the key id.
func (id KeyID) String() string { return hex.EncodeToString(id[:]) }

// String returns the hex encoding of the script id.
func (id ScriptID) String() string { return hex.EncodeToString(id[:]) }

// hash160 returns RIPEMD160(SHA256(b)).
func hash160(b []byte) [ripemd160.Size]byte {
	sum := sha256.Sum256(b)
	h := ripemd160.New()
	h.Write(sum[:])

	var out [ripemd160.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ScriptIDFromScript returns the id a pay-to-script-hash output uses to
// commit to script.
func ScriptIDFromScript(script []byte) ScriptID {
	return ScriptID(hash160(script))
}

// PublicKey is a serialized secp256k1 public key in compressed,
// uncompressed or hybrid form.  A PublicKey may hold arbitrary bytes; use
// IsFullyValid before trusting it.
type PublicKey []byte

// expectedPubKeySize returns the serialized size implied by a public key
// prefix byte, or zero for an unknown prefix.
func expectedPubKeySize(prefix byte) int {
	switch prefix {
	case pubKeyCompressedEven, pubKeyCompressedOdd:
		return pubKeyCompressedSize
	case pubKeyUncompressed, pubKeyHybridEven, pubKeyHybridOdd:
		return pubKeyUncompressedSize
	}
	return 0
}

// IsValid reports whether the key has a known prefix and the length that
// prefix requires.  It does not check that the key is a point on the curve.
func (pk PublicKey) IsValid() bool {
	return len(pk) > 0 && len(pk) == expectedPubKeySize(pk[0])
}

// IsFullyValid reports whether the key is structurally valid and decodes to
// a point on the secp256k1 curve.
func (pk PublicKey) IsFullyValid() bool {
	if !pk.IsValid() {
		return false
	}
	_, err := btcec.ParsePubKey(pk, btcec.S256())
	return err == nil
}

// IsCompressed reports whether the key uses the 33-byte compressed form.
func (pk PublicKey) IsCompressed() bool {
	return len(pk) == pubKeyCompressedSize
}

// ID returns the hash160 of the serialized key.
func (pk PublicKey) ID() KeyID {
	return KeyID(hash160(pk))
}

// String returns the hex encoding of the serialized key.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk)
}

// isHex mirrors the node's hex predicate: the string must be non-empty, of
// even length and contain only hex digits.
func isHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case '0' <= c && c <= '9':
		case 'a' <= c && c <= 'f':
		case 'A' <= c && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// IsPubKeyHex reports whether s looks like a hex encoded public key rather
// than an address: hex of exactly 66 or 130 characters.
func IsPubKeyHex(s string) bool {
	return isHex(s) && (len(s) == 2*pubKeyCompressedSize ||
		len(s) == 2*pubKeyUncompressedSize)
}
