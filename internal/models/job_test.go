package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueryJob(t *testing.T) {
	now := time.Unix(1760884862, 0)
	job := NewQueryJob("CC", "1006881471", now)

	assert.True(t, strings.HasPrefix(job.ID, "CC_1006881471_1760884862_"))
	assert.Equal(t, StateInitializing, job.State)
	assert.Equal(t, 10, job.Progress)
	assert.Equal(t, now, job.CreatedAt)
}

func TestAdvanceFollowsCheckpoints(t *testing.T) {
	now := time.Now()
	job := NewQueryJob("TI", "99", now)

	steps := []struct {
		state    JobState
		progress int
	}{
		{StateSelectingDocumentType, 20},
		{StateEnteringDocumentNumber, 30},
		{StateResolvingCaptcha, 45},
		{StateEnteringCaptcha, 60},
		{StateSubmitting, 75},
		{StateCapturingResults, 90},
		{StateCompleted, 100},
	}

	last := job.Progress
	for _, step := range steps {
		require.NoError(t, job.Advance(step.state, string(step.state), now))
		assert.Equal(t, step.progress, job.Progress)
		assert.GreaterOrEqual(t, job.Progress, last)
		last = job.Progress
	}
	assert.True(t, job.State.Terminal())
}

func TestAdvanceRejectsBackwardAndTerminal(t *testing.T) {
	now := time.Now()
	job := NewQueryJob("CC", "1", now)

	require.NoError(t, job.Advance(StateSubmitting, "", now))
	err := job.Advance(StateEnteringCaptcha, "", now)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	require.NoError(t, job.Advance(StateCompleted, "", now))
	err = job.Advance(StateCapturingResults, "", now)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = job.Advance(JobState("bogus"), "", now)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestFail(t *testing.T) {
	now := time.Now()
	job := NewQueryJob("CC", "1", now)
	require.NoError(t, job.Advance(StateResolvingCaptcha, "", now))

	job.Fail(errors.New("boom"), "Error: boom", now)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "boom", job.Error)

	job.Fail(errors.New("again"), "again", now)
	assert.Equal(t, "boom", job.Error, "terminal jobs keep their first failure")
}

func TestCloneIsDeep(t *testing.T) {
	job := NewQueryJob("CC", "1", time.Now())
	job.Artifacts = map[string]string{"html": "a.html"}
	job.Result = &ResultRecord{Affiliations: []Affiliation{{Status: "ACTIVO"}}}

	clone := job.Clone()
	clone.Artifacts["html"] = "changed"
	clone.Result.Affiliations[0].Status = "RETIRADO"

	assert.Equal(t, "a.html", job.Artifacts["html"])
	assert.Equal(t, "ACTIVO", job.Result.Affiliations[0].Status)
}

func TestNewBatchJobID(t *testing.T) {
	now := time.Unix(1760884862, 0)
	a := NewBatchJob(3, now)
	b := NewBatchJob(3, now)

	assert.Regexp(t, `^1760884862_[0-9a-f]{8}$`, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, BatchPending, a.State)
}

func TestBatchRecordKeepsCounters(t *testing.T) {
	now := time.Now()
	batch := NewBatchJob(3, now)

	batch.Record(RowOutcome{State: StateCompleted}, now)
	batch.Record(RowOutcome{State: StateFailed}, now)
	batch.Record(RowOutcome{State: StateCompleted}, now)

	assert.Equal(t, 3, batch.Processed)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, batch.Processed, batch.Succeeded+batch.Failed)
	assert.Len(t, batch.Outcomes, 3)
}
