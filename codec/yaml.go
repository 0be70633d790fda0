package codec

import "gopkg.in/yaml.v3"

// YAML stores snapshots as YAML documents.
//
// Integers decode as int and floats as float64; the query package compares
// numbers by value so both shapes match the same predicates.
type YAML struct{}

// Marshal encodes the value to YAML.
func (YAML) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

// Unmarshal decodes the YAML data into v.
func (YAML) Unmarshal(data []byte, v any) error { return yaml.Unmarshal(data, v) }

// Name returns "yaml".
func (YAML) Name() string { return "yaml" }
