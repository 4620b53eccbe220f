package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tss-calculator/go-lib/pkg/infrastructure/logger"

	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/model"
)

var (
	target = model.Repository{Owner: "tss-calculator", Name: "tools"}
	libA   = model.Repository{Owner: "tss-calculator", Name: "lib-a"}
	libB   = model.Repository{Owner: "tss-calculator", Name: "lib-b"}
	t0     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	c.now = c.now.Add(d)
	return ctx.Err()
}

// fakeClient answers LatestWorkflowRun for the target repository from a queue;
// the last queued answer repeats forever.
type fakeClient struct {
	targetRuns  []*model.WorkflowRun
	depRuns     map[model.Repository]*model.WorkflowRun
	lastCommit  time.Time
	runStatuses []model.WorkflowRun
	dispatched  []string
	filters     []model.RunFilter
}

func (c *fakeClient) DefaultBranch(_ context.Context, _ model.Repository) (string, error) {
	return "main", nil
}

func (c *fakeClient) LatestWorkflowRun(_ context.Context, repository model.Repository, filter model.RunFilter) (*model.WorkflowRun, error) {
	c.filters = append(c.filters, filter)
	if repository != target {
		return c.depRuns[repository], nil
	}
	if len(c.targetRuns) == 0 {
		return nil, nil
	}
	run := c.targetRuns[0]
	if len(c.targetRuns) > 1 {
		c.targetRuns = c.targetRuns[1:]
	}
	return run, nil
}

func (c *fakeClient) DispatchWorkflow(_ context.Context, repository model.Repository, ref, workflow string) error {
	c.dispatched = append(c.dispatched, repository.String()+"@"+ref+":"+workflow)
	return nil
}

func (c *fakeClient) WorkflowRun(_ context.Context, _ model.Repository, runID model.RunID) (model.WorkflowRun, error) {
	run := c.runStatuses[0]
	if len(c.runStatuses) > 1 {
		c.runStatuses = c.runStatuses[1:]
	}
	run.ID = runID
	return run, nil
}

func (c *fakeClient) Branch(_ context.Context, _ model.Repository, branch string) (model.Branch, error) {
	return model.Branch{Name: branch, LastCommitDate: c.lastCommit}, nil
}

func newTestDispatcher(client *fakeClient, clock *fakeClock, dependencies ...model.Repository) Dispatcher {
	return NewDispatcherService(DefaultTiming(), dependencies, logger.NewTextLogger(), client, clock)
}

func runAt(id model.RunID, createdAt time.Time) *model.WorkflowRun {
	return &model.WorkflowRun{
		ID:         id,
		Path:       ".github/workflows/build.yml",
		Status:     model.RunStatusCompleted,
		Conclusion: model.RunConclusionSuccess,
		CreatedAt:  createdAt,
	}
}

func TestDispatcher_DispatchAndGetRunID_WaitsForNewRun(t *testing.T) {
	client := &fakeClient{targetRuns: []*model.WorkflowRun{runAt(42, t0), runAt(42, t0), runAt(42, t0), runAt(43, t0)}}
	clock := &fakeClock{now: t0}
	start := clock.now

	runID, err := newTestDispatcher(client, clock).DispatchAndGetRunID(context.Background(), target, "main", "build.yml")

	require.NoError(t, err)
	require.Equal(t, model.RunID(43), runID)
	require.Equal(t, 10*time.Second, clock.now.Sub(start))
	require.Equal(t, []string{"tss-calculator/tools@main:build.yml"}, client.dispatched)
	for _, filter := range client.filters {
		require.Equal(t, model.RunFilter{Workflow: "build.yml"}, filter)
	}
}

func TestDispatcher_DispatchAndGetRunID_FirstRunEver(t *testing.T) {
	client := &fakeClient{targetRuns: []*model.WorkflowRun{nil, nil, runAt(1, t0)}}
	clock := &fakeClock{now: t0}

	runID, err := newTestDispatcher(client, clock).DispatchAndGetRunID(context.Background(), target, "main", "build.yml")

	require.NoError(t, err)
	require.Equal(t, model.RunID(1), runID)
	require.Equal(t, 1, clock.sleeps)
}

func TestDispatcher_DispatchAndGetRunID_Timeout(t *testing.T) {
	client := &fakeClient{targetRuns: []*model.WorkflowRun{runAt(42, t0)}}
	clock := &fakeClock{now: t0}
	start := clock.now

	_, err := newTestDispatcher(client, clock).DispatchAndGetRunID(context.Background(), target, "main", "build.yml")

	require.ErrorIs(t, err, ErrRunNotFound)
	elapsed := clock.now.Sub(start)
	require.True(t, elapsed > 60*time.Second && elapsed <= 65*time.Second, "elapsed %v", elapsed)
}

func TestDispatcher_DispatchAndGetRunID_Cancelled(t *testing.T) {
	client := &fakeClient{targetRuns: []*model.WorkflowRun{runAt(42, t0)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDispatcher(client, &fakeClock{now: t0}).DispatchAndGetRunID(ctx, target, "main", "build.yml")

	require.ErrorIs(t, err, context.Canceled)
}

func TestDispatcher_WaitForCompletion(t *testing.T) {
	client := &fakeClient{runStatuses: []model.WorkflowRun{
		{Status: model.RunStatusQueued},
		{Status: model.RunStatusInProgress},
		{Status: model.RunStatusCompleted, Conclusion: model.RunConclusionFailure},
	}}
	clock := &fakeClock{now: t0}

	run, err := newTestDispatcher(client, clock).WaitForCompletion(context.Background(), target, 43)

	require.NoError(t, err)
	require.Equal(t, model.RunID(43), run.ID)
	require.Equal(t, model.RunConclusionFailure, run.Conclusion)
	require.Equal(t, 2, clock.sleeps)
}

func TestDispatcher_NeedsExecution(t *testing.T) {
	testCases := []struct {
		name         string
		lastRun      *model.WorkflowRun
		lastCommit   time.Time
		depRuns      map[model.Repository]*model.WorkflowRun
		dependencies []model.Repository
		expected     bool
	}{
		{
			name:       "never run",
			lastCommit: t0,
			expected:   true,
		},
		{
			name:       "run older than latest commit",
			lastRun:    runAt(1, t0),
			lastCommit: t0.Add(time.Second),
			expected:   true,
		},
		{
			name:       "run at latest commit",
			lastRun:    runAt(1, t0),
			lastCommit: t0,
			expected:   false,
		},
		{
			name:         "dependency succeeded after last run",
			lastRun:      runAt(1, t0.Add(time.Hour)),
			lastCommit:   t0,
			dependencies: []model.Repository{libA, libB},
			depRuns: map[model.Repository]*model.WorkflowRun{
				libA: runAt(7, t0),
				libB: runAt(8, t0.Add(2*time.Hour)),
			},
			expected: true,
		},
		{
			name:         "run newer than commit and dependencies",
			lastRun:      runAt(1, t0.Add(3*time.Hour)),
			lastCommit:   t0,
			dependencies: []model.Repository{libA, libB},
			depRuns: map[model.Repository]*model.WorkflowRun{
				libA: runAt(7, t0),
				libB: runAt(8, t0.Add(2*time.Hour)),
			},
			expected: false,
		},
		{
			name:         "dependency without successful run is skipped",
			lastRun:      runAt(1, t0.Add(time.Hour)),
			lastCommit:   t0,
			dependencies: []model.Repository{libA},
			expected:     false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{lastCommit: tc.lastCommit, depRuns: tc.depRuns}
			if tc.lastRun != nil {
				client.targetRuns = []*model.WorkflowRun{tc.lastRun}
			}

			needs, err := newTestDispatcher(client, &fakeClock{now: t0}, tc.dependencies...).
				NeedsExecution(context.Background(), target, "main", "build.yml")

			require.NoError(t, err)
			require.Equal(t, tc.expected, needs)
		})
	}
}

func TestDispatcher_NeedsExecution_DependencyFilter(t *testing.T) {
	client := &fakeClient{targetRuns: []*model.WorkflowRun{runAt(1, t0)}, lastCommit: t0}

	_, err := newTestDispatcher(client, &fakeClock{now: t0}, libA).
		NeedsExecution(context.Background(), target, "main", "build.yml")

	require.NoError(t, err)
	require.Equal(t, []model.RunFilter{
		{Workflow: "build.yml"},
		{Conclusion: model.RunConclusionSuccess},
	}, client.filters)
}

func TestDispatcher_Run_Dispatches(t *testing.T) {
	testCases := []struct {
		name       string
		conclusion model.RunConclusion
		force      bool
		expectErr  error
	}{
		{name: "stale success", conclusion: model.RunConclusionSuccess},
		{name: "stale failure", conclusion: model.RunConclusionFailure, expectErr: ErrRunNotSuccessful},
		{name: "forced success", conclusion: model.RunConclusionSuccess, force: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lastRun := runAt(42, t0)
			client := &fakeClient{
				targetRuns: []*model.WorkflowRun{lastRun, lastRun, runAt(43, t0.Add(time.Hour))},
				lastCommit: t0.Add(time.Minute),
				runStatuses: []model.WorkflowRun{
					{Status: model.RunStatusInProgress},
					{Status: model.RunStatusCompleted, Conclusion: tc.conclusion},
				},
			}
			if tc.force {
				client.targetRuns = client.targetRuns[1:]
				client.lastCommit = t0
			}

			run, err := newTestDispatcher(client, &fakeClock{now: t0}).Run(context.Background(), target, "build.yml", tc.force)

			require.Len(t, client.dispatched, 1)
			require.Equal(t, model.RunID(43), run.ID)
			require.Equal(t, tc.conclusion, run.Conclusion)
			if tc.expectErr != nil {
				require.ErrorIs(t, err, tc.expectErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDispatcher_Run_UpToDate(t *testing.T) {
	lastRun := runAt(42, t0.Add(time.Hour))
	lastRun.Conclusion = model.RunConclusionCancelled
	client := &fakeClient{targetRuns: []*model.WorkflowRun{lastRun}, lastCommit: t0}

	run, err := newTestDispatcher(client, &fakeClock{now: t0}).Run(context.Background(), target, "build.yml", false)

	require.ErrorIs(t, err, ErrRunNotSuccessful)
	require.Equal(t, model.RunID(42), run.ID)
	require.Empty(t, client.dispatched)
}

func TestDispatcher_Run_UpToDateRunVanished(t *testing.T) {
	client := &fakeClient{targetRuns: []*model.WorkflowRun{runAt(42, t0.Add(time.Hour)), nil}, lastCommit: t0}

	_, err := newTestDispatcher(client, &fakeClock{now: t0}).Run(context.Background(), target, "build.yml", false)

	require.ErrorIs(t, err, ErrRunNotFound)
	require.Empty(t, client.dispatched)
}
