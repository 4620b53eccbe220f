// Package yamldialect implements the scalar resolution rules of GitHub Actions
// workflow files on top of yaml.v3 node trees.
//
// Plain yes/no/true/false tokens resolve to booleans, while on, off, y and n
// stay strings so that the `on:` trigger key survives a load/dump cycle.
package yamldialect

import (
	"regexp"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	StrTag  = "!!str"
	BoolTag = "!!bool"
)

var boolPattern = regexp.MustCompile(`^(?:yes|Yes|YES|no|No|NO|true|True|TRUE|false|False|FALSE)$`)

const quotedStyles = yaml.SingleQuotedStyle | yaml.DoubleQuotedStyle | yaml.LiteralStyle | yaml.FoldedStyle

// Resolve returns the short tag of node under the GitHub Actions dialect.
func Resolve(node *yaml.Node) string {
	if node.Kind != yaml.ScalarNode {
		return node.ShortTag()
	}
	if node.Style&yaml.TaggedStyle != 0 {
		return node.ShortTag()
	}
	if node.Style&quotedStyles != 0 {
		return StrTag
	}
	if boolPattern.MatchString(node.Value) {
		return BoolTag
	}
	return node.ShortTag()
}

func IsString(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && Resolve(node) == StrTag
}

// QuoteString double quotes a plain scalar whose value would resolve to a boolean.
// It must only be called on scalars known to hold strings.
func QuoteString(node *yaml.Node) {
	if node.Kind == yaml.ScalarNode &&
		node.Style&(quotedStyles|yaml.TaggedStyle) == 0 &&
		boolPattern.MatchString(node.Value) {
		node.Style |= yaml.DoubleQuotedStyle
	}
}

// QuoteStrings applies QuoteString to every !!str scalar of a tree built from Go
// values. Parsed trees tag plain yes/no as !!str too, so they must not be passed here.
func QuoteStrings(node *yaml.Node) {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == StrTag {
		QuoteString(node)
	}
	for _, child := range node.Content {
		QuoteStrings(child)
	}
}

// Parse reads a single YAML document and returns its document node.
func Parse(data []byte) (*yaml.Node, error) {
	var document yaml.Node
	err := yaml.Unmarshal(data, &document)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse yaml")
	}
	if document.Kind != yaml.DocumentNode || len(document.Content) == 0 {
		return nil, errors.New("yaml document is empty")
	}
	return &document, nil
}

// Decode decodes node into out, applying the dialect's boolean rule first.
func Decode(node *yaml.Node, out any) error {
	return errors.Wrap(normalize(node).Decode(out), "failed to decode yaml node")
}

func normalize(node *yaml.Node) *yaml.Node {
	if node == nil {
		return nil
	}
	n := *node
	if n.Kind == yaml.ScalarNode && Resolve(node) == BoolTag && n.Style&yaml.TaggedStyle == 0 {
		n.Tag = BoolTag
		switch n.Value[0] {
		case 'y', 'Y', 't', 'T':
			n.Value = "true"
		default:
			n.Value = "false"
		}
	}
	if len(node.Content) > 0 {
		n.Content = make([]*yaml.Node, 0, len(node.Content))
		for _, child := range node.Content {
			n.Content = append(n.Content, normalize(child))
		}
	}
	return &n
}
