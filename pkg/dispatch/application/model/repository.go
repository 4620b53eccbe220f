package model

import (
	"fmt"
	"strings"
	"time"
)

type Repository struct {
	Owner string
	Name  string
}

func ParseRepository(id string) (Repository, error) {
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("repository %q is not in owner/name form", id)
	}
	return Repository{Owner: owner, Name: name}, nil
}

func (repository Repository) String() string {
	return repository.Owner + "/" + repository.Name
}

type Branch struct {
	Name           string
	LastCommitDate time.Time
}
