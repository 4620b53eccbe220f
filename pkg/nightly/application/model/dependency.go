package model

import (
	"fmt"
	"sort"
	"strings"
)

// RepositoryID is an owner/name pair, e.g. tss-calculator/tools.
type RepositoryID = string

// DependencyMap maps a repository to the repositories it depends on.
type DependencyMap map[RepositoryID][]RepositoryID

func (m DependencyMap) SortedRepositories() []RepositoryID {
	ids := make([]RepositoryID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m DependencyMap) Clone() DependencyMap {
	result := make(DependencyMap, len(m))
	for id, dependencies := range m {
		result[id] = append([]RepositoryID(nil), dependencies...)
	}
	return result
}

func SplitRepositoryID(id RepositoryID) (owner, name string, err error) {
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository %q is not in owner/name form", id)
	}
	return owner, name, nil
}

func ShortNames(ids []RepositoryID) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		_, name, err := SplitRepositoryID(id)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
