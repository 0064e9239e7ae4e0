// Copyright (c) 2013-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netparams

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

// Params is used to group parameters for various networks such as the main
// network and test networks.
type Params struct {
	*chaincfg.Params
	RPCServerPort string
}

// MainNetParams contains parameters specific to running keyrpc on the main
// network (wire.MainNet).
var MainNetParams = Params{
	Params:        &chaincfg.MainNetParams,
	RPCServerPort: "8338",
}

// TestNet3Params contains parameters specific to running keyrpc on the test
// network (version 3) (wire.TestNet3).
var TestNet3Params = Params{
	Params:        &chaincfg.TestNet3Params,
	RPCServerPort: "18338",
}

// RegressionNetParams contains parameters specific to the regression test
// network (wire.TestNet).
var RegressionNetParams = Params{
	Params:        &chaincfg.RegressionNetParams,
	RPCServerPort: "18438",
}

// SimNetParams contains parameters specific to the simulation test network
// (wire.SimNet).
var SimNetParams = Params{
	Params:        &chaincfg.SimNetParams,
	RPCServerPort: "18558",
}

var byName = map[string]*Params{
	MainNetParams.Name:       &MainNetParams,
	TestNet3Params.Name:      &TestNet3Params,
	RegressionNetParams.Name: &RegressionNetParams,
	SimNetParams.Name:        &SimNetParams,
}

// ForName returns the parameters of the network with the given chaincfg
// name, such as "mainnet" or "testnet3".
func ForName(name string) (*Params, error) {
	p, ok := byName[name]
	if !ok {
		return nil, errors.Errorf("unknown network %q", name)
	}
	return p, nil
}
