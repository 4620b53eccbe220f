package main

import (
	"context"

	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/model"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/infrastructure/dependency"
)

func dispatchWorkflow(ctx context.Context, repository model.Repository, workflow string, force bool) error {
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	_, err = dependencyContainer.Dispatcher().Run(ctx, repository, workflow, force)
	return err
}
