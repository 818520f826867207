package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModifierEntry is one configured modifier. Value is decoded by the
// modifier's constructor.
type ModifierEntry struct {
	Kind  string
	Value yaml.Node
	Line  int
}

// ModifierList keeps modifiers in configuration order. Each list item maps
// one or more kinds to their parameters:
//
//	modifiers:
//	  - filter_time_before: now
//	  - replace_location:
//	      Foyer: Resource A
//
// An item with several keys contributes one entry per key, in key order.
type ModifierList []ModifierEntry

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ModifierList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: modifiers must be a list", node.Line)
	}

	var entries ModifierList
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: modifier must map a kind to its parameter", item.Line)
		}
		for i := 0; i+1 < len(item.Content); i += 2 {
			key, value := item.Content[i], item.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: modifier kind must be a string", key.Line)
			}
			entries = append(entries, ModifierEntry{
				Kind:  key.Value,
				Value: *value,
				Line:  key.Line,
			})
		}
	}

	*l = entries
	return nil
}

// Validate checks that every entry names a kind.
func (l ModifierList) Validate() error {
	for i, e := range l {
		if e.Kind == "" {
			return fmt.Errorf("entry %d (line %d): empty modifier kind", i+1, e.Line)
		}
	}
	return nil
}
