package main

import (
	"context"

	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/config"
	"github.com/tss-calculator/ci-tools/pkg/nightly/infrastructure/dependency"
)

func generateNightly(ctx context.Context, rawDependencies, output string) error {
	dependencies, err := config.LoadDependencyMap(rawDependencies)
	if err != nil {
		return err
	}
	dependencyContainer, err := dependency.ContainerFromContext(ctx)
	if err != nil {
		return err
	}
	return dependencyContainer.Generator().Generate(dependencies, output)
}
