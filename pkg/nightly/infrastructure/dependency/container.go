package dependency

import (
	"context"
	"errors"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/ci-tools/pkg/nightly/application/service"
	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/config"
	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/template"
)

type containerKey struct{}

type Container interface {
	Generator() service.Generator
}

func NewDependencyContainer(logger applogger.Logger, paths config.TemplatePaths) Container {
	templates := service.Templates{
		Job:     template.New(paths.Job),
		Nightly: template.New(paths.Nightly),
	}
	if paths.CustomJobs != "" {
		templates.CustomJobs = template.New(paths.CustomJobs)
	}
	if paths.ForceBuildJob != "" {
		templates.ForceBuildJob = template.New(paths.ForceBuildJob)
	}
	generator := service.NewGeneratorService(templates, template.NewNodeOperations(), logger)

	return &container{
		generator: generator,
	}
}

type container struct {
	generator service.Generator
}

func (c *container) Generator() service.Generator {
	return c.generator
}

func ContainerFromContext(ctx context.Context) (Container, error) {
	v := ctx.Value(containerKey{})
	if c, ok := v.(Container); ok {
		return c, nil
	}
	return nil, errors.New("dependency container not found")
}

func ContainerToContext(ctx context.Context, c Container) context.Context {
	return context.WithValue(ctx, containerKey{}, c)
}
