// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keystore provides key stores for the RPC server: a persistent store
// backed by a bbolt database file and an in-memory store.  Both satisfy
// keyutil.KeyStore.
package keystore

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/btcsuite/keyrpc/keyutil"
	bbolt "github.com/coreos/bbolt"
	"github.com/pkg/errors"
)

const (
	// LatestVersion is the database version written by this package.
	LatestVersion = 1

	openTimeout = time.Second
)

var (
	metaBucketName   = []byte("meta")
	pubKeyBucketName = []byte("pubkeys")
	versionKey       = []byte("version")
)

var (
	// ErrNotExist is returned by Open when the file does not exist and
	// creation was not requested.
	ErrNotExist = errors.New("key store does not exist")

	// ErrInvalidKey is returned when importing a key that is not a valid
	// curve point.
	ErrInvalidKey = errors.New("public key is not valid")
)

// Store is a key store kept in a bbolt database.  Public keys are indexed
// by their key id.  A Store is safe for concurrent use.
type Store struct {
	db *bbolt.DB
}

var _ keyutil.KeyStore = (*Store)(nil)

// Open opens the key store at path, creating it first when create is set.
func Open(path string, create bool) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && !create {
		return nil, ErrNotExist
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "open key store %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucketName)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(pubKeyBucketName); err != nil {
			return err
		}
		return checkVersion(meta)
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize key store")
	}
	log.Debugf("Opened key store %s", path)
	return &Store{db: db}, nil
}

// checkVersion stamps a new database with LatestVersion and refuses
// databases written by a newer version of this package.
func checkVersion(meta *bbolt.Bucket) error {
	v := meta.Get(versionKey)
	if v == nil {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], LatestVersion)
		return meta.Put(versionKey, buf[:])
	}
	if len(v) != 4 {
		return errors.Errorf("malformed version record (%d bytes)", len(v))
	}
	version := binary.LittleEndian.Uint32(v)
	if version > LatestVersion {
		return errors.Errorf("key store version %d is newer than "+
			"supported version %d", version, LatestVersion)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// KeyIDForDestination returns the key id of a key destination.  Script
// destinations do not resolve to a key.
func (s *Store) KeyIDForDestination(dest keyutil.Destination) (keyutil.KeyID, bool) {
	return dest.KeyID()
}

// PubKey returns the public key stored under id.  The stored bytes are
// returned as they are; callers check their validity.
func (s *Store) PubKey(id keyutil.KeyID) (keyutil.PublicKey, bool) {
	var pk keyutil.PublicKey
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(pubKeyBucketName).Get(id[:])
		if v != nil {
			pk = append(keyutil.PublicKey{}, v...)
		}
		return nil
	})
	if err != nil {
		log.Errorf("Unable to read public key %v: %v", id, err)
		return nil, false
	}
	return pk, pk != nil
}

// ImportPubKey adds pk to the store.  It reports whether the key was not
// already present.
func (s *Store) ImportPubKey(pk keyutil.PublicKey) (bool, error) {
	if !pk.IsFullyValid() {
		return false, ErrInvalidKey
	}
	id := pk.ID()
	added := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(pubKeyBucketName)
		if b.Get(id[:]) != nil {
			return nil
		}
		added = true
		return b.Put(id[:], pk)
	})
	if err != nil {
		return false, errors.Wrapf(err, "store public key %v", id)
	}
	if added {
		log.Infof("Imported public key %v", id)
	}
	return added, nil
}

// ForEachPubKey calls fn for every stored key in key id order.  Iteration
// stops at the first error returned by fn.
func (s *Store) ForEachPubKey(fn func(keyutil.KeyID, keyutil.PublicKey) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(pubKeyBucketName).ForEach(func(k, v []byte) error {
			var id keyutil.KeyID
			copy(id[:], k)
			return fn(id, append(keyutil.PublicKey{}, v...))
		})
	})
}
