package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunFilter_Match(t *testing.T) {
	run := WorkflowRun{
		ID:         7,
		Path:       ".github/workflows/build.yml",
		Status:     RunStatusCompleted,
		Conclusion: RunConclusionFailure,
	}

	assert.True(t, RunFilter{}.Match(run))
	assert.True(t, RunFilter{Workflow: "build.yml"}.Match(run))
	assert.False(t, RunFilter{Workflow: "nightly.yml"}.Match(run))
	assert.True(t, RunFilter{Conclusion: RunConclusionFailure}.Match(run))
	assert.False(t, RunFilter{Workflow: "build.yml", Conclusion: RunConclusionSuccess}.Match(run))
}

func TestWorkflowRun_Succeeded(t *testing.T) {
	assert.True(t, WorkflowRun{Status: RunStatusCompleted, Conclusion: RunConclusionSuccess}.Succeeded())
	assert.False(t, WorkflowRun{Status: RunStatusInProgress, Conclusion: RunConclusionSuccess}.Succeeded())
	assert.False(t, WorkflowRun{Status: RunStatusCompleted, Conclusion: RunConclusionCancelled}.Succeeded())
}

func TestParseRepository(t *testing.T) {
	repository, err := ParseRepository("tss-calculator/tools")
	assert.NoError(t, err)
	assert.Equal(t, Repository{Owner: "tss-calculator", Name: "tools"}, repository)
	assert.Equal(t, "tss-calculator/tools", repository.String())

	for _, id := range []string{"", "tools", "/tools", "owner/", "a/b/c"} {
		_, err = ParseRepository(id)
		assert.Error(t, err, id)
	}
}
