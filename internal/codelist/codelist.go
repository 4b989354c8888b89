// Package codelist implements the Codelist value object: a named set of
// clinical codes, optionally partitioned by code type.
package codelist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Bayer-Group/phenex-go/internal/phenexerr"
	"github.com/Bayer-Group/phenex-go/internal/serialize"
)

// UntypedCode is the mapping key used for codes with no declared code
// type: a resolution step normalises an untyped codelist to
// {null -> codes}.
const UntypedCode = ""

// Code is one resolved (code_type, code) pair a CodelistFilter matches
// against.
type Code struct {
	CodeType string // "" means untyped
	Code     string
}

// Codelist is {name, mapping}: mapping is a code_type -> codes map, with
// UntypedCode used for codes carrying no type.
type Codelist struct {
	Name    string
	Mapping map[string][]string
}

// New builds a Codelist from a single code or a flat list of codes, both
// normalised under UntypedCode. A code_type -> codes mapping goes through
// NewTyped instead.
func New(name string, codes ...string) *Codelist {
	return &Codelist{Name: name, Mapping: map[string][]string{UntypedCode: codes}}
}

// NewTyped builds a Codelist from a code_type -> codes mapping.
func NewTyped(name string, mapping map[string][]string) *Codelist {
	m := make(map[string][]string, len(mapping))
	for k, v := range mapping {
		m[k] = append([]string{}, v...)
	}
	return &Codelist{Name: name, Mapping: m}
}

// FromYAML loads a Codelist from a YAML file. The file must contain either
// a flat list of codes or a mapping of code_type to a list of codes. The
// codelist's name defaults to the file's base name (extension stripped).
func FromYAML(path string) (*Codelist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &phenexerr.CodelistResolutionError{Name: path, Detail: err.Error()}
	}

	var asList []string
	if err := yaml.Unmarshal(data, &asList); err == nil {
		base := filepath.Base(path)
		name := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
		return New(name, asList...), nil
	}

	var asMap map[string][]string
	if err := yaml.Unmarshal(data, &asMap); err != nil {
		return nil, &phenexerr.CodelistResolutionError{
			Name:   path,
			Detail: fmt.Sprintf("not a code list or code_type mapping: %v", err),
		}
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	return NewTyped(name, asMap), nil
}

// ToCodes flattens the mapping into (code_type, code) pairs, sorted for
// deterministic iteration.
func (c *Codelist) ToCodes() []Code {
	var out []Code
	types := make([]string, 0, len(c.Mapping))
	for t := range c.Mapping {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		for _, code := range c.Mapping[t] {
			out = append(out, Code{CodeType: t, Code: code})
		}
	}
	return out
}

// ClassName identifies this type in the to_dict/from_dict wire format.
func (*Codelist) ClassName() string { return "Codelist" }

// ToDict returns the canonical serialisable representation of c.
func (c *Codelist) ToDict() map[string]interface{} {
	return map[string]interface{}{
		"class_name": c.ClassName(),
		"name":       c.Name,
		"codelist":   c.Mapping,
	}
}

// FromDict reconstructs a Codelist from its ToDict representation.
func FromDict(d serialize.Dict) (*Codelist, error) {
	name, _ := d["name"].(string)
	raw, ok := d["codelist"]
	if !ok {
		return nil, fmt.Errorf("codelist: FromDict requires a %q field", "codelist")
	}
	mapping, err := decodeMapping(raw)
	if err != nil {
		return nil, err
	}
	return &Codelist{Name: name, Mapping: mapping}, nil
}

func decodeMapping(raw interface{}) (map[string][]string, error) {
	switch m := raw.(type) {
	case map[string][]string:
		out := make(map[string][]string, len(m))
		for k, v := range m {
			out[k] = append([]string{}, v...)
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string][]string, len(m))
		for k, v := range m {
			codes, err := decodeStringSlice(v)
			if err != nil {
				return nil, err
			}
			out[k] = codes
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codelist: %q field must be a mapping, got %T", "codelist", raw)
	}
}

func decodeStringSlice(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return append([]string{}, v...), nil
	case []interface{}:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("codelist: code entry must be a string, got %T", item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("codelist: codes must be a list, got %T", raw)
	}
}

// CompositeCodelist is a list of codelists unioned at filter time.
type CompositeCodelist struct {
	Name      string
	Codelists []*Codelist
}

// NewComposite builds a CompositeCodelist over the given codelists.
func NewComposite(name string, codelists ...*Codelist) *CompositeCodelist {
	return &CompositeCodelist{Name: name, Codelists: codelists}
}

// ToCodes returns the union of every member codelist's codes, de-duplicated
// and sorted for deterministic iteration.
func (cc *CompositeCodelist) ToCodes() []Code {
	seen := make(map[Code]bool)
	var out []Code
	for _, cl := range cc.Codelists {
		for _, code := range cl.ToCodes() {
			if !seen[code] {
				seen[code] = true
				out = append(out, code)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CodeType != out[j].CodeType {
			return out[i].CodeType < out[j].CodeType
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// ClassName identifies this type in the to_dict/from_dict wire format.
func (*CompositeCodelist) ClassName() string { return "CompositeCodelist" }

// ToDict returns the canonical serialisable representation of cc.
func (cc *CompositeCodelist) ToDict() map[string]interface{} {
	members := make([]map[string]interface{}, len(cc.Codelists))
	for i, cl := range cc.Codelists {
		members[i] = cl.ToDict()
	}
	return map[string]interface{}{
		"class_name": cc.ClassName(),
		"name":       cc.Name,
		"codelists":  members,
	}
}

// CompositeFromDict reconstructs a CompositeCodelist from its ToDict
// representation.
func CompositeFromDict(d serialize.Dict) (*CompositeCodelist, error) {
	name, _ := d["name"].(string)
	raw, ok := d["codelists"]
	if !ok {
		return nil, fmt.Errorf("codelist: CompositeFromDict requires a %q field", "codelists")
	}

	var entries []interface{}
	switch v := raw.(type) {
	case []interface{}:
		entries = v
	case []map[string]interface{}:
		entries = make([]interface{}, len(v))
		for i, m := range v {
			entries[i] = m
		}
	default:
		return nil, fmt.Errorf("codelist: %q field must be a list, got %T", "codelists", raw)
	}

	cls := make([]*Codelist, len(entries))
	for i, item := range entries {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("codelist: codelists entry must be a dict, got %T", item)
		}
		cl, err := FromDict(m)
		if err != nil {
			return nil, err
		}
		cls[i] = cl
	}
	return &CompositeCodelist{Name: name, Codelists: cls}, nil
}
