// Copyright (c) 2015-2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package legacyrpc

import (
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/keyrpc/internal/rpchelp"
)

func serverMethods() map[string]struct{} {
	m := make(map[string]struct{})
	for method, handlerData := range rpcHandlers {
		if !handlerData.noHelp {
			m[method] = struct{}{}
		}
	}
	// stop is answered by the transports rather than a handler.
	m["stop"] = struct{}{}
	return m
}

// TestRPCMethodHelpCoverage ensures every method served has help, and that
// help is only provided for methods that are served.
func TestRPCMethodHelpCoverage(t *testing.T) {
	svrMethods := serverMethods()
	for method, h := range rpchelp.Methods {
		if h.Name != method {
			t.Errorf("Help for method '%s' is registered as '%s'",
				h.Name, method)
		}
		if _, ok := svrMethods[method]; !ok {
			t.Errorf("Help for unserved method '%s'", method)
		}
		delete(svrMethods, method)
	}
	for m := range svrMethods {
		t.Errorf("Missing help for method '%s'", m)
	}
}

// TestRPCMethodUsageGeneration ensures the single line usage answered by the
// help method covers every method.
func TestRPCMethodUsageGeneration(t *testing.T) {
	if requestUsages != rpchelp.Usages() {
		t.Fatal("Request usages differ from the rendered help table")
	}
	res, err := help(&btcjson.HelpCmd{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res != requestUsages {
		t.Fatalf("help returned %q, want %q", res, requestUsages)
	}
}
