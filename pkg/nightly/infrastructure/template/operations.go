package template

import (
	"gopkg.in/yaml.v3"

	"github.com/tss-calculator/ci-tools/pkg/nightly/application/service"
	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/yamldialect"
)

func NewNodeOperations() service.NodeOperations {
	return nodeOperations{}
}

type nodeOperations struct{}

func (nodeOperations) NewMapping() *yaml.Node {
	return NewMapping()
}

func (nodeOperations) MergeMapping(dst, src *yaml.Node) error {
	return MergeMapping(dst, src)
}

func (nodeOperations) Keys(mapping *yaml.Node) []string {
	return Keys(mapping)
}

func (nodeOperations) Lookup(mapping *yaml.Node, key string) *yaml.Node {
	return Lookup(mapping, key)
}

func (nodeOperations) Decode(node *yaml.Node, out any) error {
	return yamldialect.Decode(node, out)
}
