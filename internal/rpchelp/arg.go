// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpchelp

import (
	"fmt"
	"strings"
)

// ArgType describes the JSON shape of an RPC argument.
type ArgType int

// Supported argument types.
const (
	ArgStr ArgType = iota
	ArgStrHex
	ArgNum
	ArgAmount
	ArgBool
	ArgObj
	ArgObjUserKeys
	ArgArr
)

var argTypeStrings = map[ArgType]string{
	ArgStr:         "string",
	ArgStrHex:      "hex string",
	ArgNum:         "numeric",
	ArgAmount:      "amount",
	ArgBool:        "boolean",
	ArgObj:         "json object",
	ArgObjUserKeys: "json object",
	ArgArr:         "json array",
}

// String returns the type name used in argument listings.
func (t ArgType) String() string {
	s, ok := argTypeStrings[t]
	if ok {
		return s
	}
	return fmt.Sprintf("Unknown ArgType (%d)", int(t))
}

// Arg describes one RPC argument or one field of an object argument.
// Arrays have exactly one inner arg describing their elements, objects one
// inner arg per field.  Args are built once when a method is registered and
// never modified afterwards.
type Arg struct {
	Name        string
	Type        ArgType
	Optional    bool
	Description string
	Inner       []Arg
}

func (a *Arg) elem() *Arg {
	if len(a.Inner) != 1 {
		panic(fmt.Sprintf("rpchelp: array %q must describe exactly one "+
			"element type, has %d", a.Name, len(a.Inner)))
	}
	return &a.Inner[0]
}

// String renders the argument as it appears in a positional usage line.
// Strings are quoted, other scalars are bare, arrays list their element
// form followed by an ellipsis.  Object arguments cannot be passed
// positionally; asking for one is a schema fault and panics.
func (a *Arg) String() string {
	switch a.Type {
	case ArgStr, ArgStrHex:
		return `"` + a.Name + `"`
	case ArgNum, ArgAmount, ArgBool:
		return a.Name
	case ArgArr:
		return "[" + a.elem().String() + ",...]"
	case ArgObj, ArgObjUserKeys:
		panic(fmt.Sprintf("rpchelp: object argument %q has no "+
			"positional form", a.Name))
	}
	panic(fmt.Sprintf("rpchelp: argument %q has unhandled type %d",
		a.Name, int(a.Type)))
}

// Shape renders the JSON shape of the argument's value, as used for
// object fields and result descriptions.
func (a *Arg) Shape() string {
	switch a.Type {
	case ArgStr:
		return `"str"`
	case ArgStrHex:
		return `"hex"`
	case ArgNum:
		return "n"
	case ArgAmount:
		return "amount"
	case ArgBool:
		return "bool"
	case ArgArr:
		return "[" + a.elem().Shape() + ",...]"
	case ArgObj, ArgObjUserKeys:
		fields := make([]string, len(a.Inner))
		for i := range a.Inner {
			fields[i] = a.Inner[i].StringObj()
		}
		if a.Type == ArgObjUserKeys {
			fields = append(fields, "...")
		}
		return "{" + strings.Join(fields, ",") + "}"
	}
	panic(fmt.Sprintf("rpchelp: argument %q has unhandled type %d",
		a.Name, int(a.Type)))
}

// StringObj renders the argument as a named field of an object:
// "name":shape.
func (a *Arg) StringObj() string {
	return `"` + a.Name + `":` + a.Shape()
}

// HelpMan describes the parameters and result of a single RPC method.
type HelpMan struct {
	Name     string
	Synopsis string
	Args     []Arg

	// Result describes the returned value, if any.
	Result *Arg
}

// NewHelpMan returns the description of a method.  The usage line is
// rendered once so that a malformed argument list aborts at registration
// rather than when help is first requested.
func NewHelpMan(name, synopsis string, result *Arg, args ...Arg) *HelpMan {
	h := &HelpMan{
		Name:     name,
		Synopsis: synopsis,
		Args:     args,
		Result:   result,
	}
	_ = h.String()
	if result != nil {
		_ = result.Shape()
	}
	return h
}

// String returns the single line usage of the method, terminated by a
// newline.  Optional arguments are grouped in one parenthesized run at the
// end.  A required argument after an optional one cannot be passed
// positionally and panics.
func (h *HelpMan) String() string {
	var b strings.Builder
	b.WriteString(h.Name)
	inOptionalRun := false
	for i := range h.Args {
		arg := &h.Args[i]
		b.WriteByte(' ')
		if arg.Optional {
			if !inOptionalRun {
				b.WriteString("( ")
			}
			inOptionalRun = true
		} else if inOptionalRun {
			panic(fmt.Sprintf("rpchelp: %s: required argument %q "+
				"follows an optional argument", h.Name, arg.Name))
		}
		b.WriteString(arg.String())
	}
	if inOptionalRun {
		b.WriteString(" )")
	}
	b.WriteByte('\n')
	return b.String()
}
