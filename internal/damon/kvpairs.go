package damon

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/damonctl/internal/errors"
)

// Pairs is an ordered key/value mapping. The canonical serialization
// of every configuration tree entity is a Pairs whose key order is
// fixed per type; backend collaborators and persisted-file readers
// rely on that order, so a plain map cannot serve here.
//
// Values are strings (formatted leaf values), bools, nil, nested
// *Pairs, or []*Pairs for list-valued keys.
type Pairs struct {
	keys []string
	vals map[string]any
}

// NewPairs returns an empty ordered mapping.
func NewPairs() *Pairs {
	return &Pairs{vals: make(map[string]any)}
}

// Set appends or replaces a key. Insertion order is preserved;
// re-setting an existing key keeps its original position.
func (p *Pairs) Set(key string, v any) *Pairs {
	if _, ok := p.vals[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = v
	return p
}

// Get returns the value for key.
func (p *Pairs) Get(key string) (any, bool) {
	v, ok := p.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p *Pairs) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len returns the number of keys.
func (p *Pairs) Len() int {
	return len(p.keys)
}

// require returns the value for key or ErrMissingField.
func (p *Pairs) require(key string) (any, error) {
	v, ok := p.vals[key]
	if !ok {
		return nil, errors.MissingFieldf(key)
	}
	return v, nil
}

// requireString returns the value for key as a string.
func (p *Pairs) requireString(key string) (string, error) {
	v, err := p.require(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a string", errors.ErrInvalidArgument, key)
	}
	return s, nil
}

// requirePairs returns the value for key as a nested mapping.
func (p *Pairs) requirePairs(key string) (*Pairs, error) {
	v, err := p.require(key)
	if err != nil {
		return nil, err
	}
	nested, ok := v.(*Pairs)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a mapping", errors.ErrInvalidArgument, key)
	}
	return nested, nil
}

// requireList returns the value for key as a list of mappings.
func (p *Pairs) requireList(key string) ([]*Pairs, error) {
	v, err := p.require(key)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]*Pairs)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a list", errors.ErrInvalidArgument, key)
	}
	return list, nil
}

// optionalPairs returns the nested mapping for key, or nil if absent.
func (p *Pairs) optionalPairs(key string) (*Pairs, error) {
	v, ok := p.vals[key]
	if !ok || v == nil {
		return nil, nil
	}
	nested, ok := v.(*Pairs)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a mapping", errors.ErrInvalidArgument, key)
	}
	return nested, nil
}

// optionalList returns the list for key, or nil if absent.
func (p *Pairs) optionalList(key string) ([]*Pairs, error) {
	v, ok := p.vals[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]*Pairs)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a list", errors.ErrInvalidArgument, key)
	}
	return list, nil
}

// =============================================================================
// YAML round trip
// =============================================================================

// MarshalYAML implements yaml.Marshaler, emitting the mapping in
// insertion order. The stock map marshalling would sort keys and break
// the canonical orders.
func (p *Pairs) MarshalYAML() (any, error) {
	return p.yamlNode()
}

func (p *Pairs) yamlNode() (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, key := range p.keys {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
		valNode, err := yamlValueNode(p.vals[key])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

func yamlValueNode(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: val}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(val)}, nil
	case uint64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(val, 10)}, nil
	case *Pairs:
		return val.yamlNode()
	case []*Pairs:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, elem := range val {
			elemNode, err := elem.yamlNode()
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, elemNode)
		}
		return seq, nil
	}
	return nil, fmt.Errorf("%w: unsupported kvpairs value %T", errors.ErrInvalidArgument, v)
}

// UnmarshalYAML implements yaml.Unmarshaler, preserving document key
// order. Scalar values keep their textual form so the leaf parsers see
// the same text a control file would carry; integers and booleans stay
// typed.
func (p *Pairs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: expected a mapping, got %v", errors.ErrInvalidArgument, node.Kind)
	}
	p.keys = nil
	p.vals = make(map[string]any)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val, err := yamlNodeValue(node.Content[i+1])
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		p.Set(key, val)
	}
	return nil
}

func yamlNodeValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			return nil, nil
		case "!!bool":
			return node.Value == "true", nil
		case "!!int":
			n, err := strconv.ParseUint(node.Value, 10, 64)
			if err != nil {
				return node.Value, nil
			}
			return n, nil
		default:
			return node.Value, nil
		}
	case yaml.MappingNode:
		nested := NewPairs()
		if err := nested.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return nested, nil
	case yaml.SequenceNode:
		var list []*Pairs
		for _, elem := range node.Content {
			v, err := yamlNodeValue(elem)
			if err != nil {
				return nil, err
			}
			nested, ok := v.(*Pairs)
			if !ok {
				return nil, fmt.Errorf("%w: list elements must be mappings", errors.ErrInvalidArgument)
			}
			list = append(list, nested)
		}
		if list == nil {
			list = []*Pairs{}
		}
		return list, nil
	case yaml.AliasNode:
		return yamlNodeValue(node.Alias)
	}
	return nil, fmt.Errorf("%w: unsupported node kind %v", errors.ErrInvalidArgument, node.Kind)
}
