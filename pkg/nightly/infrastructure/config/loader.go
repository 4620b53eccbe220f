package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/tss-calculator/ci-tools/pkg/nightly/application/model"
)

const (
	DefaultTemplateDir = "template"
	DefaultOutput      = ".github/workflows/nightly.yml"

	jobTemplate           = "job_template.yml"
	nightlyTemplate       = "nightly_template.yml"
	customJobsTemplate    = "custom_jobs_template.yml"
	forceBuildJobTemplate = "force_rebuild_job_template.yaml"
)

// TemplatePaths lists the generator templates. Optional templates that do not
// exist are left empty.
type TemplatePaths struct {
	Job           string
	Nightly       string
	CustomJobs    string
	ForceBuildJob string
}

func LoadTemplatePaths(dir string) (TemplatePaths, error) {
	paths := TemplatePaths{
		Job:     filepath.Join(dir, jobTemplate),
		Nightly: filepath.Join(dir, nightlyTemplate),
	}
	for _, required := range []string{paths.Job, paths.Nightly} {
		_, err := os.Stat(required)
		if err != nil {
			return TemplatePaths{}, errors.Wrapf(err, "template %v not found", required)
		}
	}
	var err error
	paths.CustomJobs, err = optionalPath(filepath.Join(dir, customJobsTemplate))
	if err != nil {
		return TemplatePaths{}, err
	}
	paths.ForceBuildJob, err = optionalPath(filepath.Join(dir, forceBuildJobTemplate))
	if err != nil {
		return TemplatePaths{}, err
	}
	return paths, nil
}

// LoadDependencyMap parses a JSON object mapping owner/name ids to lists of ids.
func LoadDependencyMap(raw string) (model.DependencyMap, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("dependencies not provided")
	}
	var dependencies map[string][]string
	err := json.Unmarshal([]byte(raw), &dependencies)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal dependencies")
	}
	for id, deps := range dependencies {
		if _, _, err = model.SplitRepositoryID(id); err != nil {
			return nil, err
		}
		if _, err = model.ShortNames(deps); err != nil {
			return nil, errors.Wrapf(err, "invalid dependency of %v", id)
		}
	}
	return dependencies, nil
}

func optionalPath(path string) (string, error) {
	_, err := os.Stat(path)
	if err == nil {
		return path, nil
	}
	if os.IsNotExist(err) {
		return "", nil
	}
	return "", err
}
