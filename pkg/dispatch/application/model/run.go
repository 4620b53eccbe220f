package model

import (
	"strings"
	"time"
)

type RunID = int64

type RunStatus = string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
)

type RunConclusion = string

const (
	RunConclusionSuccess   RunConclusion = "success"
	RunConclusionFailure   RunConclusion = "failure"
	RunConclusionCancelled RunConclusion = "cancelled"
)

// WorkflowRun is a single execution of a workflow as reported by GitHub.
// Conclusion is only meaningful once Status is RunStatusCompleted.
type WorkflowRun struct {
	ID         RunID
	Path       string
	Status     RunStatus
	Conclusion RunConclusion
	CreatedAt  time.Time
}

func (run WorkflowRun) Completed() bool {
	return run.Status == RunStatusCompleted
}

func (run WorkflowRun) Succeeded() bool {
	return run.Completed() && run.Conclusion == RunConclusionSuccess
}

// RunFilter selects runs from the run listing. Empty fields match everything.
type RunFilter struct {
	// Workflow matches when it is contained in the run's workflow path.
	Workflow   string
	Conclusion RunConclusion
}

func (filter RunFilter) Match(run WorkflowRun) bool {
	if filter.Workflow != "" && !strings.Contains(run.Path, filter.Workflow) {
		return false
	}
	if filter.Conclusion != "" && filter.Conclusion != run.Conclusion {
		return false
	}
	return true
}
