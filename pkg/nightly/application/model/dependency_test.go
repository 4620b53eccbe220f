package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDependencyMap_SortedRepositories(t *testing.T) {
	m := DependencyMap{
		"tss-calculator/web": {"tss-calculator/lib"},
		"tss-calculator/api": nil,
		"other/lib":          {},
		"tss-calculator/lib": {},
	}

	assert.Equal(t, []RepositoryID{"other/lib", "tss-calculator/api", "tss-calculator/lib", "tss-calculator/web"}, m.SortedRepositories())
}

func TestDependencyMap_Clone(t *testing.T) {
	m := DependencyMap{"a/b": {"c/d", "a/e"}}

	clone := m.Clone()
	clone["a/b"][0] = "x/y"
	clone["n/m"] = nil

	assert.Equal(t, DependencyMap{"a/b": {"c/d", "a/e"}}, m)
}

func TestShortNames(t *testing.T) {
	names, err := ShortNames([]RepositoryID{"tss-calculator/lib", "other/api"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"lib", "api"}, names)

	_, err = ShortNames([]RepositoryID{"lib"})
	assert.Error(t, err)
}
