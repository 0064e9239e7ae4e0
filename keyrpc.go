// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"

	"github.com/btcsuite/keyrpc/keystore"
	"github.com/btcsuite/keyrpc/keyutil"
	"github.com/btcsuite/keyrpc/netparams"
	"github.com/btcsuite/keyrpc/rpc/legacyrpc"
)

var (
	cfg       *config
	activeNet = &netparams.MainNetParams
)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit.
	if err := keyrpcMain(); err != nil {
		os.Exit(1)
	}
}

// openKeyStore opens the key store selected by the config, creating the
// database file when it does not exist yet.
func openKeyStore() (legacyrpc.KeyStore, func() error, error) {
	if cfg.KeyStore == memoryKeyStore {
		log.Warn("Using an in-memory key store, imported keys are " +
			"lost on shutdown")
		s := keystore.NewMemStore()
		return s, s.Close, nil
	}

	s, err := keystore.Open(cfg.KeyStore, true)
	if err != nil {
		return nil, nil, err
	}
	var numKeys int
	err = s.ForEachPubKey(func(keyutil.KeyID, keyutil.PublicKey) error {
		numKeys++
		return nil
	})
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	log.Infof("Opened key store %s (%d public keys)", cfg.KeyStore, numKeys)
	return s, s.Close, nil
}

// keyrpcMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func keyrpcMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Show version at startup.
	log.Infof("Version %s", version())

	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			log.Infof("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			log.Errorf("%v", http.ListenAndServe(listenAddr, nil))
		}()
	}

	keys, closeKeys, err := openKeyStore()
	if err != nil {
		log.Errorf("Unable to open key store: %v", err)
		return err
	}
	addInterruptHandler(func() {
		if err := closeKeys(); err != nil {
			log.Errorf("Failed to close key store: %v", err)
		}
	})

	server, err := startRPCServer(keys)
	if err != nil {
		log.Errorf("Unable to create RPC server: %v", err)
		simulateInterrupt()
		<-interruptHandlersDone
		return err
	}
	addInterruptHandler(func() {
		log.Warn("Stopping RPC server...")
		server.Stop()
		log.Info("RPC server shutdown")
	})
	go func() {
		<-server.RequestProcessShutdown()
		simulateInterrupt()
	}()

	<-interruptHandlersDone
	log.Info("Shutdown complete")
	return nil
}
