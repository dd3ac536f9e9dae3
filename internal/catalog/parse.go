package catalog

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/objectbus/internal/schema"
)

// Parse builds a Catalog from inline manifest text.
func Parse(src string) (*Catalog, error) {
	return parse([]byte(src), "<inline manifest>")
}

// ParseFile builds a Catalog from a manifest file on disk.
func ParseFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return parse(data, path)
}

func parse(src []byte, filename string) (*Catalog, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}

	var doc schema.Document
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	cat := &Catalog{
		interfaces: make(map[string]*Interface),
		unique: map[Kind]map[string]*Interface{
			KindMethod:   make(map[string]*Interface),
			KindSignal:   make(map[string]*Interface),
			KindProperty: make(map[string]*Interface),
		},
	}

	for _, rawIface := range doc.Interfaces {
		iface, err := buildInterface(rawIface)
		if err != nil {
			return nil, err
		}
		if err := cat.addInterface(iface); err != nil {
			return nil, err
		}
	}

	return cat, nil
}

func buildInterface(raw *schema.Interface) (*Interface, error) {
	iface := &Interface{
		Name:       raw.Name,
		Methods:    make(map[string]*Method, len(raw.Methods)),
		Signals:    make(map[string]*Signal, len(raw.Signals)),
		Properties: make(map[string]*Property, len(raw.Properties)),
	}

	for _, m := range raw.Methods {
		if _, exists := iface.Methods[m.Name]; exists {
			return nil, fmt.Errorf("interface %s declares method %s more than once", raw.Name, m.Name)
		}
		in, err := buildArgs(raw.Name, m.Name, m.In)
		if err != nil {
			return nil, err
		}
		out, err := buildArgs(raw.Name, m.Name, m.Out)
		if err != nil {
			return nil, err
		}
		iface.Methods[m.Name] = &Method{Name: m.Name, Interface: raw.Name, In: in, Out: out}
	}

	for _, s := range raw.Signals {
		if _, exists := iface.Signals[s.Name]; exists {
			return nil, fmt.Errorf("interface %s declares signal %s more than once", raw.Name, s.Name)
		}
		args, err := buildArgs(raw.Name, s.Name, s.Args)
		if err != nil {
			return nil, err
		}
		iface.Signals[s.Name] = &Signal{Name: s.Name, Interface: raw.Name, Args: args}
	}

	for _, p := range raw.Properties {
		if _, exists := iface.Properties[p.Name]; exists {
			return nil, fmt.Errorf("interface %s declares property %s more than once", raw.Name, p.Name)
		}
		ty, diags := typeexpr.TypeConstraint(p.Type)
		if diags.HasErrors() {
			return nil, fmt.Errorf("interface %s, property %s: invalid type: %w", raw.Name, p.Name, diags)
		}
		writable, err := parseAccess(p.Access)
		if err != nil {
			return nil, fmt.Errorf("interface %s, property %s: %w", raw.Name, p.Name, err)
		}
		iface.Properties[p.Name] = &Property{Name: p.Name, Interface: raw.Name, Type: ty, Writable: writable}
	}

	return iface, nil
}

func buildArgs(ifaceName, memberName string, raw []*schema.Arg) ([]Arg, error) {
	args := make([]Arg, 0, len(raw))
	for _, a := range raw {
		ty, diags := typeexpr.TypeConstraint(a.Type)
		if diags.HasErrors() {
			return nil, fmt.Errorf("interface %s, member %s, argument %s: invalid type: %w", ifaceName, memberName, a.Name, diags)
		}
		args = append(args, Arg{Name: a.Name, Type: ty})
	}
	return args, nil
}

func parseAccess(access string) (writable bool, err error) {
	switch access {
	case "", "read":
		return false, nil
	case "readwrite":
		return true, nil
	default:
		return false, fmt.Errorf("invalid access %q: must be 'read' or 'readwrite'", access)
	}
}
