// Package serialize implements the engine's structural to_dict/from_dict
// wire format: every node and filter serialises to
// {class_name, ...parameters...}, dates wrap as {"__datetime__": iso8601},
// and a class_name-keyed registry reconstructs the tree on the way back
// in. Round-tripping is exact: from_dict(to_dict(node)).to_dict() ==
// node.to_dict().
package serialize

import (
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// Dict is the wire-format representation: a class_name key plus the
// node or filter's constructor parameters.
type Dict = map[string]interface{}

// DatetimeKey is the sentinel key a wrapped date/datetime value carries.
const DatetimeKey = "__datetime__"

// datetimeLayout matches the ISO-8601 form the source system emits.
const datetimeLayout = "2006-01-02T15:04:05"

// WrapDatetime returns the canonical wrapped representation of t.
func WrapDatetime(t time.Time) Dict {
	return Dict{DatetimeKey: t.Format(datetimeLayout)}
}

// UnwrapDatetime reports whether v is a wrapped datetime and, if so,
// returns the parsed time.
func UnwrapDatetime(v interface{}) (time.Time, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		if d, ok := v.(Dict); ok {
			m = d
		} else {
			return time.Time{}, false
		}
	}
	raw, ok := m[DatetimeKey]
	if !ok {
		return time.Time{}, false
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(datetimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Marshal renders d as canonical JSON. Map keys sort lexicographically
// (both encoding/json and goccy/go-json do this for map[string]any),
// giving the deterministic key ordering ComputeNode.to_dict requires and
// that internal/node hashes over.
func Marshal(d Dict) ([]byte, error) {
	return json.Marshal(d)
}

// Serializable is implemented by every node, filter, codelist and value
// type that participates in the wire format.
type Serializable interface {
	ClassName() string
	ToDict() Dict
}

// Constructor rebuilds a Serializable from its Dict; Registry.FromDict
// passes the whole Dict, class_name key included.
type Constructor func(d Dict) (Serializable, error)

// Registry maps class_name to the Constructor that rebuilds it.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register binds className to constructor. Registering the same name
// twice overwrites the previous binding, matching how a plugin-style
// registry is expected to be populated once at package init.
func (r *Registry) Register(className string, constructor Constructor) {
	r.constructors[className] = constructor
}

// FromDict reconstructs a Serializable using the constructor registered
// for d's class_name.
func (r *Registry) FromDict(d Dict) (Serializable, error) {
	name, ok := d["class_name"].(string)
	if !ok {
		return nil, fmt.Errorf("serialize: dict has no class_name key: %+v", d)
	}
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("serialize: no constructor registered for class_name %q", name)
	}
	return ctor(d)
}

// SortedKeys returns d's keys in sorted order, useful when a caller needs
// to walk a Dict deterministically outside of JSON marshalling.
func SortedKeys(d Dict) []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
