package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"resty.dev/v3"

	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/model"
	"github.com/tss-calculator/ci-tools/pkg/dispatch/application/service"
)

const (
	DefaultAPIURL = "https://api.github.com"
	apiVersion    = "2022-11-28"
)

// ErrDispatchRejected is returned when GitHub answers a dispatch request with a 2xx status other than 204.
var ErrDispatchRejected = errors.New("dispatch event was not accepted")

// StatusError is returned for every non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v %v: unexpected status %v: %v", e.Method, e.Path, e.StatusCode, e.Body)
}

type repositoryResponse struct {
	DefaultBranch string `json:"default_branch"`
}

type workflowRunResponse struct {
	ID         int64     `json:"id"`
	Path       string    `json:"path"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	CreatedAt  time.Time `json:"created_at"`
}

type workflowRunsResponse struct {
	TotalCount   int                   `json:"total_count"`
	WorkflowRuns []workflowRunResponse `json:"workflow_runs"`
}

type branchResponse struct {
	Name   string `json:"name"`
	Commit struct {
		Commit struct {
			Committer struct {
				Date time.Time `json:"date"`
			} `json:"committer"`
		} `json:"commit"`
	} `json:"commit"`
}

// Client is a GitHub REST client holding an HTTP connection pool until closed.
type Client interface {
	service.GithubClient
	io.Closer
}

func NewClient(apiURL, token string) Client {
	rest := resty.New().
		SetBaseURL(apiURL).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("Authorization", "token "+token).
		SetHeader("X-GitHub-Api-Version", apiVersion)
	return &client{rest: rest}
}

type client struct {
	rest *resty.Client
}

func (c *client) Close() error {
	return c.rest.Close()
}

func (c *client) DefaultBranch(ctx context.Context, repository model.Repository) (string, error) {
	var resp repositoryResponse
	err := c.get(ctx, "/repos/{owner}/{repo}", repositoryParams(repository), &resp)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get repository %v", repository)
	}
	return resp.DefaultBranch, nil
}

func (c *client) LatestWorkflowRun(
	ctx context.Context,
	repository model.Repository,
	filter model.RunFilter,
) (*model.WorkflowRun, error) {
	// Only the first page (30 most recent runs) is inspected.
	var resp workflowRunsResponse
	err := c.get(ctx, "/repos/{owner}/{repo}/actions/runs", repositoryParams(repository), &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list workflow runs of %v", repository)
	}
	if resp.TotalCount == 0 {
		return nil, nil
	}
	for _, r := range resp.WorkflowRuns {
		run := mapWorkflowRun(r)
		if filter.Match(run) {
			return &run, nil
		}
	}
	return nil, nil
}

func (c *client) DispatchWorkflow(ctx context.Context, repository model.Repository, ref, workflow string) error {
	const path = "/repos/{owner}/{repo}/actions/workflows/{workflow}/dispatches"
	params := repositoryParams(repository)
	params["workflow"] = workflow
	res, err := c.rest.R().
		SetContext(ctx).
		SetPathParams(params).
		SetBody(map[string]string{"ref": ref}).
		Post(path)
	if err != nil {
		return errors.Wrapf(err, "failed to dispatch workflow %v of %v", workflow, repository)
	}
	if !res.IsSuccess() {
		return errors.Wrapf(newStatusError(http.MethodPost, path, res), "failed to dispatch workflow %v of %v", workflow, repository)
	}
	if res.StatusCode() != http.StatusNoContent {
		return errors.Wrapf(ErrDispatchRejected, "failed to create the dispatch event: %v", res.Status())
	}
	return nil
}

func (c *client) WorkflowRun(ctx context.Context, repository model.Repository, runID model.RunID) (model.WorkflowRun, error) {
	params := repositoryParams(repository)
	params["run_id"] = strconv.FormatInt(runID, 10)
	var resp workflowRunResponse
	err := c.get(ctx, "/repos/{owner}/{repo}/actions/runs/{run_id}", params, &resp)
	if err != nil {
		return model.WorkflowRun{}, errors.Wrapf(err, "failed to get workflow run %v of %v", runID, repository)
	}
	return mapWorkflowRun(resp), nil
}

func (c *client) Branch(ctx context.Context, repository model.Repository, branch string) (model.Branch, error) {
	params := repositoryParams(repository)
	params["branch"] = branch
	var resp branchResponse
	err := c.get(ctx, "/repos/{owner}/{repo}/branches/{branch}", params, &resp)
	if err != nil {
		return model.Branch{}, errors.Wrapf(err, "failed to get branch %v of %v", branch, repository)
	}
	return model.Branch{
		Name:           resp.Name,
		LastCommitDate: resp.Commit.Commit.Committer.Date,
	}, nil
}

func (c *client) get(ctx context.Context, path string, params map[string]string, result any) error {
	res, err := c.rest.R().
		SetContext(ctx).
		SetPathParams(params).
		SetResult(result).
		Get(path)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return newStatusError(http.MethodGet, path, res)
	}
	return nil
}

func newStatusError(method, path string, res *resty.Response) *StatusError {
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: res.StatusCode(),
		Body:       res.String(),
	}
}

func repositoryParams(repository model.Repository) map[string]string {
	return map[string]string{
		"owner": repository.Owner,
		"repo":  repository.Name,
	}
}

func mapWorkflowRun(run workflowRunResponse) model.WorkflowRun {
	return model.WorkflowRun{
		ID:         run.ID,
		Path:       run.Path,
		Status:     run.Status,
		Conclusion: run.Conclusion,
		CreatedAt:  run.CreatedAt,
	}
}
