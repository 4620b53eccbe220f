// Package template opens, substitutes and dumps YAML templates for GitHub Actions.
//
// Variables are written as ${{ name }}. A variable that is not provided is left
// untouched, so GitHub's own expressions such as ${{ github.sha }} survive.
package template

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/yamldialect"
)

type Variables = map[string]any

var markerPattern = regexp.MustCompile(`\$\{\{\s*(\S+)\s*\}\}`)

type Template struct {
	path     string
	document *yaml.Node
}

func New(path string) *Template {
	return &Template{path: path}
}

func (t *Template) Path() string {
	return t.path
}

// LoadRaw returns the template's root node without substitution.
// The file is read once; every call returns a fresh copy.
func (t *Template) LoadRaw() (*yaml.Node, error) {
	document, err := t.load()
	if err != nil {
		return nil, err
	}
	return Clone(document.Content[0]), nil
}

func (t *Template) Load(variables Variables) (*yaml.Node, error) {
	document, err := t.load()
	if err != nil {
		return nil, err
	}
	root, err := Substitute(document.Content[0], variables)
	return root, errors.Wrapf(err, "failed to substitute template %v", t.path)
}

// Dump writes the substituted template to path.
func (t *Template) Dump(variables Variables, path string) error {
	document, err := t.load()
	if err != nil {
		return err
	}
	substituted, err := Substitute(document, variables)
	if err != nil {
		return errors.Wrapf(err, "failed to substitute template %v", t.path)
	}
	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return errors.Wrapf(err, "failed to create directory for %v", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %v", path)
	}
	defer file.Close()
	err = Encode(file, substituted)
	if err != nil {
		return errors.Wrapf(err, "failed to write %v", path)
	}
	return errors.Wrapf(file.Close(), "failed to close %v", path)
}

func (t *Template) load() (*yaml.Node, error) {
	if t.document != nil {
		return t.document, nil
	}
	data, err := os.ReadFile(t.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read template %v", t.path)
	}
	document, err := yamldialect.Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load template %v", t.path)
	}
	t.document = document
	return document, nil
}

// Substitute returns a substituted copy of node; node itself is not modified.
func Substitute(node *yaml.Node, variables Variables) (*yaml.Node, error) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode, yaml.MappingNode:
		n := *node
		n.Content = make([]*yaml.Node, 0, len(node.Content))
		for _, child := range node.Content {
			c, err := Substitute(child, variables)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return &n, nil
	case yaml.ScalarNode:
		if yamldialect.IsString(node) {
			return substituteString(node, variables)
		}
	}
	n := *node
	return &n, nil
}

// substituteString replaces every known marker with its string value. The first
// marker bound to a non-string value replaces the whole scalar instead.
func substituteString(node *yaml.Node, variables Variables) (*yaml.Node, error) {
	value := node.Value
	for _, match := range markerPattern.FindAllStringSubmatch(node.Value, -1) {
		v, ok := variables[match[1]]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return valueNode(v)
		}
		value = replaceMarker(value, match[1], s)
	}
	n := *node
	n.Value = value
	if value != node.Value {
		yamldialect.QuoteString(&n)
	}
	return &n, nil
}

func replaceMarker(value, name, replacement string) string {
	pattern := regexp.MustCompile(`\$\{\{\s*` + regexp.QuoteMeta(name) + `\s*\}\}`)
	return pattern.ReplaceAllLiteralString(value, replacement)
}

func valueNode(v any) (*yaml.Node, error) {
	switch value := v.(type) {
	case *yaml.Node:
		if value.Kind == yaml.DocumentNode && len(value.Content) > 0 {
			return Clone(value.Content[0]), nil
		}
		return Clone(value), nil
	case yaml.Node:
		return valueNode(&value)
	}
	var n yaml.Node
	err := n.Encode(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode variable of type %T", v)
	}
	yamldialect.QuoteStrings(&n)
	return &n, nil
}

// Encode writes node as block-style YAML with two-space indentation, keeping
// key order. Multi-line strings are written as literal block scalars.
func Encode(w io.Writer, node *yaml.Node) error {
	literalMultiline(node)
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	err := encoder.Encode(node)
	if err != nil {
		return err
	}
	return encoder.Close()
}

func literalMultiline(node *yaml.Node) {
	if node.Kind == yaml.ScalarNode &&
		yamldialect.IsString(node) &&
		strings.Contains(node.Value, "\n") &&
		node.Style&(yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
		node.Style = yaml.LiteralStyle
	}
	for _, child := range node.Content {
		literalMultiline(child)
	}
}
