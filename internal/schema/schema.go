// Package schema declares the HCL structure of an interface manifest: the
// textual document that describes the methods, signals, and properties of
// the interfaces a service object implements. It contains the raw decoded
// form only; see the catalog package for the validated, typed form.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Document is the top-level structure of an interface manifest file.
type Document struct {
	Interfaces []*Interface `hcl:"interface,block"`
}

// Interface is one `interface "name" { ... }` block: a named group of
// methods, signals, and properties. The name is the addressing unit used to
// disambiguate members that appear in more than one interface.
type Interface struct {
	Name       string      `hcl:"name,label"`
	Methods    []*Method   `hcl:"method,block"`
	Signals    []*Signal   `hcl:"signal,block"`
	Properties []*Property `hcl:"property,block"`
}

// Method declares a callable member with ordered in and out arguments.
type Method struct {
	Name string `hcl:"name,label"`
	In   []*Arg `hcl:"in,block"`
	Out  []*Arg `hcl:"out,block"`
}

// Signal declares a broadcast member with one ordered argument list.
type Signal struct {
	Name string `hcl:"name,label"`
	Args []*Arg `hcl:"arg,block"`
}

// Property declares a readable (and optionally writable) value member.
// Access is "read" or "readwrite"; an empty value means "read".
type Property struct {
	Name   string         `hcl:"name,label"`
	Type   hcl.Expression `hcl:"type"`
	Access string         `hcl:"access,optional"`
}

// Arg is a single named, typed argument of a method or signal. The type
// attribute holds a cty type constraint expression such as `string`,
// `number`, or `list(string)`.
type Arg struct {
	Name string         `hcl:"name,label"`
	Type hcl.Expression `hcl:"type"`
}
