package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActivityStartsPending(t *testing.T) {
	a := NewActivity(ActivityTypeAdd, "Adding movie", func() error { return nil })

	assert.NotEmpty(t, a.ID())
	assert.Equal(t, ActivityTypeAdd, a.Type())
	assert.Equal(t, "Adding movie", a.Title())
	assert.Equal(t, StatusPending, a.Status())
	assert.False(t, a.IsDone())
	assert.NoError(t, a.Err())
}

func TestActivityLifecycleSuccess(t *testing.T) {
	a := NewActivity(ActivityTypeUpdate, "Updating", func() error { return nil })

	a.begin()
	assert.Equal(t, StatusRunning, a.Status())

	err := a.complete(a.invoke())
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, a.Status())
	assert.True(t, a.IsDone())

	snap := a.Snapshot()
	assert.NotNil(t, snap.StartedAt)
	assert.NotNil(t, snap.EndedAt)
	assert.Empty(t, snap.Error)
}

func TestActivityLifecycleFailure(t *testing.T) {
	boom := errors.New("provider unreachable")
	a := NewActivity(ActivityTypeUpdate, "Updating", func() error { return boom })

	a.begin()
	err := a.complete(a.invoke())

	require.Error(t, err)
	assert.ErrorIs(t, a.Err(), boom)
	assert.Equal(t, StatusFailed, a.Status())
	assert.Equal(t, boom.Error(), a.Snapshot().Error)
}

func TestStatusNeverRegresses(t *testing.T) {
	a := NewActivity(ActivityTypeRemove, "Removing", func() error { return nil })

	a.begin()
	a.complete(nil)
	require.Equal(t, StatusSucceeded, a.Status())

	// Terminal is final: neither a new begin nor another completion moves it.
	a.begin()
	assert.Equal(t, StatusSucceeded, a.Status())

	a.mu.Lock()
	assert.False(t, a.setStatusLocked(StatusPending))
	assert.False(t, a.setStatusLocked(StatusRunning))
	assert.False(t, a.setStatusLocked(StatusFailed))
	a.mu.Unlock()
	assert.Equal(t, StatusSucceeded, a.Status())
}

func TestMarkErrorTurnsSuccessIntoFailure(t *testing.T) {
	var a *Activity
	a = NewActivity(ActivityTypeUpdate, "Updating library", func() error {
		a.MarkError()
		return nil
	})

	a.begin()
	err := a.complete(a.invoke())

	assert.ErrorIs(t, err, ErrPartialFailure)
	assert.Equal(t, StatusFailed, a.Status())
}

func TestInvokeRecoversPanic(t *testing.T) {
	a := NewActivity(ActivityTypeAdd, "Adding", func() error {
		panic("boom")
	})

	a.begin()
	err := a.complete(a.invoke())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "work panicked")
	assert.Equal(t, StatusFailed, a.Status())
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   ActivityStatus
		terminal bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusSucceeded, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.status.IsTerminal(), "status %s", tt.status)
	}
}

func TestMarkEnqueuedClaimsOnce(t *testing.T) {
	a := NewActivity(ActivityTypeAdd, "Adding", func() error { return nil })

	assert.True(t, a.markEnqueued(1))
	assert.False(t, a.markEnqueued(2))

	a.unmarkEnqueued()
	assert.True(t, a.markEnqueued(3))
	assert.Equal(t, uint64(3), a.sequence())
}
