// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpchelp

import (
	"fmt"
	"strings"
)

// Help returns the full help text of the method: its usage line, synopsis,
// a numbered argument listing and the shape of its result.
func (h *HelpMan) Help() string {
	var b strings.Builder
	b.WriteString(h.String())
	if h.Synopsis != "" {
		b.WriteString("\n")
		b.WriteString(h.Synopsis)
		b.WriteString("\n")
	}
	if len(h.Args) > 0 {
		b.WriteString("\nArguments:\n")
		for i := range h.Args {
			writeArgDoc(&b, fmt.Sprintf("%d. ", i+1), &h.Args[i], 0)
		}
	}
	if h.Result != nil {
		b.WriteString("\nResult:\n")
		b.WriteString(h.Result.Shape())
		b.WriteString("\n")
		if h.Result.Description != "" {
			b.WriteString(h.Result.Description)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeArgDoc(b *strings.Builder, prefix string, arg *Arg, depth int) {
	req := "required"
	if arg.Optional {
		req = "optional"
	}
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "%s%s (%s, %s)", prefix, arg.Name, arg.Type, req)
	if arg.Description != "" {
		b.WriteString(" ")
		b.WriteString(arg.Description)
	}
	b.WriteString("\n")
	for i := range arg.Inner {
		writeArgDoc(b, "", &arg.Inner[i], depth+1)
	}
}
