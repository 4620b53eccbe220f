package config

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/model"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/service"
)

type Config struct {
	APIURL       string
	Token        string
	Timing       service.Timing
	Dependencies []model.Repository
}

// LoadDependencies parses a JSON array of owner/name repository ids.
// An empty value means no dependencies.
func LoadDependencies(raw string) ([]model.Repository, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []string
	err := json.Unmarshal([]byte(raw), &ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal dependencies")
	}
	dependencies := make([]model.Repository, 0, len(ids))
	for _, id := range ids {
		repository, err := model.ParseRepository(id)
		if err != nil {
			return nil, errors.Wrap(err, "invalid dependency")
		}
		dependencies = append(dependencies, repository)
	}
	return dependencies, nil
}
