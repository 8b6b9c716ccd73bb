package damon

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/damonctl/internal/logging"
)

var log = logging.Component("damon")

// specFile is the on-disk shape of a kdamond spec: a single top-level
// kdamonds list.
type specFile struct {
	Kdamonds []*Pairs `yaml:"kdamonds"`
}

// LoadKdamonds reads a YAML kdamond spec file.
func LoadKdamonds(path string) ([]*Kdamond, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}
	kdamonds, err := ParseKdamonds(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	log.Debug("loaded kdamond spec", "path", path, "kdamonds", len(kdamonds))
	return kdamonds, nil
}

// ParseKdamonds decodes a YAML kdamond spec from memory.
func ParseKdamonds(data []byte) ([]*Kdamond, error) {
	var file specFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	kdamonds := make([]*Kdamond, 0, len(file.Kdamonds))
	for i, kp := range file.Kdamonds {
		k, err := KdamondFromKvpairs(kp)
		if err != nil {
			return nil, fmt.Errorf("kdamond %d: %w", i, err)
		}
		kdamonds = append(kdamonds, k)
	}
	return kdamonds, nil
}

// SaveKdamonds writes a YAML kdamond spec file, overwriting any
// existing content.
func SaveKdamonds(path string, kdamonds []*Kdamond, raw bool) error {
	data, err := MarshalKdamonds(kdamonds, raw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing spec file: %w", err)
	}
	log.Debug("saved kdamond spec", "path", path, "kdamonds", len(kdamonds))
	return nil
}

// MarshalKdamonds encodes kdamonds as a YAML spec document. Key order
// within each mapping follows the canonical serialization order.
func MarshalKdamonds(kdamonds []*Kdamond, raw bool) ([]byte, error) {
	file := specFile{Kdamonds: make([]*Pairs, 0, len(kdamonds))}
	for _, k := range kdamonds {
		file.Kdamonds = append(file.Kdamonds, k.ToKvpairs(raw))
	}
	data, err := yaml.Marshal(&file)
	if err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return data, nil
}
