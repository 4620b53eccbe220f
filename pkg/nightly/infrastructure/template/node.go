package template

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

func NewMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// Clone returns a deep copy of node. Alias targets are shared, not copied.
func Clone(node *yaml.Node) *yaml.Node {
	if node == nil {
		return nil
	}
	n := *node
	if len(node.Content) > 0 {
		n.Content = make([]*yaml.Node, 0, len(node.Content))
		for _, child := range node.Content {
			n.Content = append(n.Content, Clone(child))
		}
	}
	return &n
}

// MergeMapping copies every entry of src into dst. An existing key keeps its
// position and gets the new value; new keys are appended in src order.
func MergeMapping(dst, src *yaml.Node) error {
	if dst.Kind != yaml.MappingNode {
		return errors.Errorf("merge target is not a mapping (line %v)", dst.Line)
	}
	if src.Kind != yaml.MappingNode {
		return errors.Errorf("merge source is not a mapping (line %v)", src.Line)
	}
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := Clone(src.Content[i]), Clone(src.Content[i+1])
		if j := keyIndex(dst, key.Value); j >= 0 {
			dst.Content[j+1] = value
			continue
		}
		dst.Content = append(dst.Content, key, value)
	}
	return nil
}

// Keys returns the scalar keys of a mapping in document order.
func Keys(mapping *yaml.Node) []string {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}
	return keys
}

// Lookup returns the value stored under key, or nil.
func Lookup(mapping *yaml.Node, key string) *yaml.Node {
	if j := keyIndex(mapping, key); j >= 0 {
		return mapping.Content[j+1]
	}
	return nil
}

func keyIndex(mapping *yaml.Node, key string) int {
	if mapping.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		k := mapping.Content[i]
		if k.Kind == yaml.ScalarNode && k.Value == key {
			return i
		}
	}
	return -1
}
