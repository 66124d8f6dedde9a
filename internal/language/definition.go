package language

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog sections.
const (
	SectionMessages   = "messages"
	SectionErrors     = "errors"
	SectionCooldowns  = "cooldowns"
	SectionExceptions = "exceptions"
)

// Value is one catalog entry: a single line or an ordered list of lines.
type Value struct {
	Lines  []string
	IsList bool
}

// Line returns a scalar value.
func Line(s string) Value {
	return Value{Lines: []string{s}}
}

// List returns an array value.
func List(lines ...string) Value {
	return Value{Lines: lines, IsList: true}
}

// UnmarshalYAML implements yaml.Unmarshaler. Scalars become single lines,
// sequences become lists.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*v = Line(s)
	case yaml.SequenceNode:
		var lines []string
		if err := node.Decode(&lines); err != nil {
			return err
		}
		*v = List(lines...)
	default:
		return fmt.Errorf("line %d: catalog value must be a string or a list of strings", node.Line)
	}
	return nil
}

// Definition is the source form of a catalog: section -> key -> value.
type Definition map[string]map[string]Value

// ParseDefinition decodes a JSON or YAML catalog definition.
func ParseDefinition(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse language definition: %w", err)
	}
	if def == nil {
		def = Definition{}
	}
	return def, nil
}

// ReadDefinition reads and parses a definition file.
func ReadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read language file: %w", err)
	}
	return ParseDefinition(data)
}
