// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"sync"

	"github.com/btcsuite/keyrpc/keyutil"
)

// MemStore is an in-memory key store with the same semantics as Store.
type MemStore struct {
	mu   sync.RWMutex
	keys map[keyutil.KeyID]keyutil.PublicKey
}

var _ keyutil.KeyStore = (*MemStore)(nil)

// NewMemStore returns an empty in-memory key store.
func NewMemStore() *MemStore {
	return &MemStore{keys: make(map[keyutil.KeyID]keyutil.PublicKey)}
}

// KeyIDForDestination returns the key id of a key destination.
func (s *MemStore) KeyIDForDestination(dest keyutil.Destination) (keyutil.KeyID, bool) {
	return dest.KeyID()
}

// PubKey returns the public key stored under id.
func (s *MemStore) PubKey(id keyutil.KeyID) (keyutil.PublicKey, bool) {
	s.mu.RLock()
	pk, ok := s.keys[id]
	s.mu.RUnlock()
	return pk, ok
}

// ImportPubKey adds pk to the store.  It reports whether the key was not
// already present.
func (s *MemStore) ImportPubKey(pk keyutil.PublicKey) (bool, error) {
	if !pk.IsFullyValid() {
		return false, ErrInvalidKey
	}
	id := pk.ID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[id]; ok {
		return false, nil
	}
	s.keys[id] = append(keyutil.PublicKey{}, pk...)
	return true, nil
}

// Close is a no-op that lets MemStore stand in for Store.
func (s *MemStore) Close() error { return nil }
