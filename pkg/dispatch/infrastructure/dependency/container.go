package dependency

import (
	"context"
	"errors"

	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/service"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/infrastructure/clock"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/infrastructure/config"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/infrastructure/github"
)

type containerKey struct{}

type Container interface {
	Dispatcher() service.Dispatcher
	// Close releases the GitHub client.
	Close() error
}

func NewDependencyContainer(logger applogger.Logger, cfg config.Config) Container {
	githubClient := github.NewClient(cfg.APIURL, cfg.Token)
	dispatcher := service.NewDispatcherService(cfg.Timing, cfg.Dependencies, logger, githubClient, clock.NewSystemClock())

	return &container{
		dispatcher:   dispatcher,
		githubClient: githubClient,
	}
}

type container struct {
	dispatcher   service.Dispatcher
	githubClient github.Client
}

func (c *container) Close() error {
	return c.githubClient.Close()
}

func (c *container) Dispatcher() service.Dispatcher {
	return c.dispatcher
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
