package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	applogger "github.com/tss-calculator/go-lib/pkg/application/logger"

	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/model"
)

var (
	// ErrRunNotFound is returned when a dispatched run never shows up or there is no run to report.
	ErrRunNotFound = errors.New("workflow run not found")
	// ErrRunNotSuccessful is returned when the observed run did not conclude with success.
	ErrRunNotSuccessful = errors.New("workflow run did not succeed")
)

type GithubClient interface {
	DefaultBranch(ctx context.Context, repository model.Repository) (string, error)
	// LatestWorkflowRun returns nil when no run on the first page of the listing matches the filter.
	LatestWorkflowRun(ctx context.Context, repository model.Repository, filter model.RunFilter) (*model.WorkflowRun, error)
	DispatchWorkflow(ctx context.Context, repository model.Repository, ref, workflow string) error
	WorkflowRun(ctx context.Context, repository model.Repository, runID model.RunID) (model.WorkflowRun, error)
	Branch(ctx context.Context, repository model.Repository, branch string) (model.Branch, error)
}

type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type Timing struct {
	RefreshInterval      time.Duration
	RunAppearanceTimeout time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		RefreshInterval:      5 * time.Second,
		RunAppearanceTimeout: 60 * time.Second,
	}
}

type Dispatcher interface {
	// Run makes sure the workflow has an up-to-date run and returns it.
	// A run that did not conclude with success is reported as ErrRunNotSuccessful.
	Run(ctx context.Context, repository model.Repository, workflow string, force bool) (model.WorkflowRun, error)
	NeedsExecution(ctx context.Context, repository model.Repository, branch, workflow string) (bool, error)
	DispatchAndGetRunID(ctx context.Context, repository model.Repository, branch, workflow string) (model.RunID, error)
	WaitForCompletion(ctx context.Context, repository model.Repository, runID model.RunID) (model.WorkflowRun, error)
}

func NewDispatcherService(
	timing Timing,
	dependencies []model.Repository,
	logger applogger.Logger,
	client GithubClient,
	clock Clock,
) Dispatcher {
	return &dispatcher{
		timing:       timing,
		dependencies: dependencies,
		logger:       logger,
		client:       client,
		clock:        clock,
	}
}

type dispatcher struct {
	timing       Timing
	dependencies []model.Repository

	logger applogger.Logger
	client GithubClient
	clock  Clock
}

func (service dispatcher) Run(
	ctx context.Context,
	repository model.Repository,
	workflow string,
	force bool,
) (model.WorkflowRun, error) {
	branch, err := service.client.DefaultBranch(ctx, repository)
	if err != nil {
		return model.WorkflowRun{}, err
	}
	service.logger.Info(fmt.Sprintf("detected default branch \"%v\"", branch))

	needsExecution := force
	if !needsExecution {
		needsExecution, err = service.NeedsExecution(ctx, repository, branch, workflow)
		if err != nil {
			return model.WorkflowRun{}, err
		}
	}

	var run model.WorkflowRun
	if needsExecution {
		service.logger.Info(fmt.Sprintf("dispatch workflow \"%v\"", workflow))
		runID, err := service.DispatchAndGetRunID(ctx, repository, branch, workflow)
		if err != nil {
			return model.WorkflowRun{}, err
		}
		service.logger.Info(fmt.Sprintf("waiting for run %v to complete", runID))
		run, err = service.WaitForCompletion(ctx, repository, runID)
		if err != nil {
			return model.WorkflowRun{}, err
		}
		service.logger.Info(fmt.Sprintf("run completed with conclusion \"%v\"", run.Conclusion))
	} else {
		latest, err := service.client.LatestWorkflowRun(ctx, repository, model.RunFilter{Workflow: workflow})
		if err != nil {
			return model.WorkflowRun{}, err
		}
		if latest == nil {
			return model.WorkflowRun{}, errors.Wrapf(ErrRunNotFound, "latest run of %v in %v could not be fetched", workflow, repository)
		}
		run = *latest
		service.logger.Info(fmt.Sprintf("already up-to-date (conclusion \"%v\")", run.Conclusion))
	}

	if !run.Succeeded() {
		return run, errors.Wrapf(ErrRunNotSuccessful, "run %v concluded with \"%v\"", run.ID, run.Conclusion)
	}
	return run, nil
}

func (service dispatcher) NeedsExecution(
	ctx context.Context,
	repository model.Repository,
	branch string,
	workflow string,
) (bool, error) {
	lastRun, err := service.client.LatestWorkflowRun(ctx, repository, model.RunFilter{Workflow: workflow})
	if err != nil {
		return false, err
	}
	if lastRun == nil {
		service.logger.Debug("needs build, reason: workflow never run")
		return true, nil
	}
	service.logger.Debug(fmt.Sprintf("last workflow run at %v", lastRun.CreatedAt))

	b, err := service.client.Branch(ctx, repository, branch)
	if err != nil {
		return false, err
	}
	service.logger.Debug(fmt.Sprintf("last commit at %v", b.LastCommitDate))
	if lastRun.CreatedAt.Before(b.LastCommitDate) {
		service.logger.Debug("needs build, reason: newer commit found")
		return true, nil
	}

	for _, dependency := range service.dependencies {
		depRun, err := service.client.LatestWorkflowRun(ctx, dependency, model.RunFilter{Conclusion: model.RunConclusionSuccess})
		if err != nil {
			return false, err
		}
		if depRun == nil {
			service.logger.Debug(fmt.Sprintf("dependency %v never had a successful workflow run, skipping", dependency))
			continue
		}
		service.logger.Debug(fmt.Sprintf(
			"dependency %v had a successful run of %v at %v", dependency, depRun.Path, depRun.CreatedAt,
		))
		if lastRun.CreatedAt.Before(depRun.CreatedAt) {
			service.logger.Debug(fmt.Sprintf("needs build, reason: newer dependency run found (%v)", depRun.CreatedAt))
			return true, nil
		}
	}
	return false, nil
}

func (service dispatcher) DispatchAndGetRunID(
	ctx context.Context,
	repository model.Repository,
	branch string,
	workflow string,
) (model.RunID, error) {
	filter := model.RunFilter{Workflow: workflow}
	baseline, err := service.client.LatestWorkflowRun(ctx, repository, filter)
	if err != nil {
		return 0, err
	}
	err = service.client.DispatchWorkflow(ctx, repository, branch, workflow)
	if err != nil {
		return 0, err
	}

	start := service.clock.Now()
	for {
		service.logger.Debug("checking for new workflow run")
		run, err := service.client.LatestWorkflowRun(ctx, repository, filter)
		if err != nil {
			return 0, err
		}
		if run != nil && (baseline == nil || run.ID != baseline.ID) {
			return run.ID, nil
		}
		if service.clock.Now().Sub(start) > service.timing.RunAppearanceTimeout {
			return 0, errors.Wrapf(ErrRunNotFound, "new run did not show up after %v", service.timing.RunAppearanceTimeout)
		}
		err = service.clock.Sleep(ctx, service.timing.RefreshInterval)
		if err != nil {
			return 0, err
		}
	}
}

func (service dispatcher) WaitForCompletion(
	ctx context.Context,
	repository model.Repository,
	runID model.RunID,
) (model.WorkflowRun, error) {
	for {
		service.logger.Debug("checking workflow status...")
		run, err := service.client.WorkflowRun(ctx, repository, runID)
		if err != nil {
			return model.WorkflowRun{}, err
		}
		service.logger.Debug(fmt.Sprintf("...%v", run.Status))
		if run.Completed() {
			return run, nil
		}
		err = service.clock.Sleep(ctx, service.timing.RefreshInterval)
		if err != nil {
			return model.WorkflowRun{}, err
		}
	}
}
