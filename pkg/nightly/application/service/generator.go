package service

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"
	"gopkg.in/yaml.v3"

	"github.com/tss-calculator/ci-tools/pkg/nightly/application/model"
)

type Template interface {
	LoadRaw() (*yaml.Node, error)
	Load(variables map[string]any) (*yaml.Node, error)
	Dump(variables map[string]any, path string) error
}

// NodeOperations are the yaml tree helpers the generator relies on.
type NodeOperations interface {
	NewMapping() *yaml.Node
	MergeMapping(dst, src *yaml.Node) error
	Keys(mapping *yaml.Node) []string
	Lookup(mapping *yaml.Node, key string) *yaml.Node
	Decode(node *yaml.Node, out any) error
}

type Templates struct {
	Job     Template
	Nightly Template
	// CustomJobs and ForceBuildJob are optional.
	CustomJobs    Template
	ForceBuildJob Template
}

type Generator interface {
	Generate(dependencies model.DependencyMap, output string) error
}

func NewGeneratorService(
	templates Templates,
	nodes NodeOperations,
	logger applogger.Logger,
) Generator {
	return &generator{
		templates: templates,
		nodes:     nodes,
		logger:    logger,
	}
}

type generator struct {
	templates Templates

	nodes  NodeOperations
	logger applogger.Logger
}

type customJobs struct {
	Templated model.DependencyMap
	Custom    *yaml.Node
}

func (service generator) Generate(dependencies model.DependencyMap, output string) error {
	jobs := service.nodes.NewMapping()
	dependencies = dependencies.Clone()

	forceBuildJobs, err := service.mergeForceBuildJob(jobs)
	if err != nil {
		return err
	}

	custom, err := service.loadCustomJobs(dependencies)
	if err != nil {
		return err
	}
	for id, deps := range custom.Templated {
		dependencies[id] = deps
	}
	if custom.Custom != nil {
		service.logger.Info(fmt.Sprintf("add custom jobs %v", service.nodes.Keys(custom.Custom)))
		err = service.nodes.MergeMapping(jobs, custom.Custom)
		if err != nil {
			return errors.Wrap(err, "failed to merge custom jobs")
		}
	}

	for _, id := range dependencies.SortedRepositories() {
		job, err := service.renderJob(id, dependencies[id], forceBuildJobs)
		if err != nil {
			return err
		}
		err = service.nodes.MergeMapping(jobs, job)
		if err != nil {
			return errors.Wrapf(err, "failed to merge job of %v", id)
		}
	}

	service.logger.Info(fmt.Sprintf("write nightly workflow with %v jobs to %v", len(service.nodes.Keys(jobs)), output))
	return service.templates.Nightly.Dump(map[string]any{"jobs": jobs}, output)
}

func (service generator) mergeForceBuildJob(jobs *yaml.Node) ([]string, error) {
	if service.templates.ForceBuildJob == nil {
		return nil, nil
	}
	forceBuild, err := service.templates.ForceBuildJob.LoadRaw()
	if err != nil {
		return nil, err
	}
	err = service.nodes.MergeMapping(jobs, forceBuild)
	if err != nil {
		return nil, errors.Wrap(err, "failed to merge force build job")
	}
	return service.nodes.Keys(forceBuild), nil
}

func (service generator) loadCustomJobs(dependencies model.DependencyMap) (customJobs, error) {
	if service.templates.CustomJobs == nil {
		return customJobs{}, nil
	}
	repoNames := dependencies.SortedRepositories()
	repoNamesShort, err := model.ShortNames(repoNames)
	if err != nil {
		return customJobs{}, err
	}
	root, err := service.templates.CustomJobs.Load(map[string]any{
		"repo_names":       repoNames,
		"repo_names_short": repoNamesShort,
	})
	if err != nil {
		return customJobs{}, err
	}

	var result customJobs
	if templated := service.nodes.Lookup(root, "templated"); templated != nil {
		err = service.nodes.Decode(templated, &result.Templated)
		if err != nil {
			return customJobs{}, errors.Wrap(err, "invalid templated section of custom jobs")
		}
	}
	if custom := service.nodes.Lookup(root, "custom"); custom != nil && custom.ShortTag() != "!!null" {
		if custom.Kind != yaml.MappingNode {
			return customJobs{}, errors.Errorf("custom section of custom jobs is not a mapping (line %v)", custom.Line)
		}
		result.Custom = custom
	}
	return result, nil
}

func (service generator) renderJob(id model.RepositoryID, dependencies []model.RepositoryID, forceBuildJobs []string) (*yaml.Node, error) {
	owner, name, err := model.SplitRepositoryID(id)
	if err != nil {
		return nil, err
	}
	deps := append(make([]model.RepositoryID, 0, len(dependencies)), dependencies...)
	sort.Strings(deps)
	needs, err := model.ShortNames(deps)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid dependency of %v", id)
	}
	needs = append(needs, forceBuildJobs...)
	depsJSON, err := json.Marshal(deps)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal dependencies of %v", id)
	}

	service.logger.Debug(fmt.Sprintf("render job for %v (needs %v)", id, needs))
	return service.templates.Job.Load(map[string]any{
		"repo_name":       id,
		"repo_name_short": name,
		"repo_owner":      owner,
		"needs":           needs,
		"deps_json":       string(depsJSON),
	})
}
