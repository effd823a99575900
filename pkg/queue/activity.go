package queue

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivityType tags an activity for presentation purposes only;
// it has no effect on scheduling
type ActivityType string

const (
	ActivityTypeAdd    ActivityType = "add"
	ActivityTypeUpdate ActivityType = "update"
	ActivityTypeRemove ActivityType = "remove"
)

// ActivityStatus represents the lifecycle state of an activity
type ActivityStatus string

const (
	StatusPending   ActivityStatus = "pending"
	StatusRunning   ActivityStatus = "running"
	StatusSucceeded ActivityStatus = "succeeded"
	StatusFailed    ActivityStatus = "failed"
)

// statusRank orders statuses so transitions can only move forward.
// Both terminal statuses share a rank: once terminal, always terminal.
var statusRank = map[ActivityStatus]int{
	StatusPending:   0,
	StatusRunning:   1,
	StatusSucceeded: 2,
	StatusFailed:    2,
}

// IsTerminal returns true once the status can no longer change
func (s ActivityStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrPartialFailure is the error carried by an activity whose work
// returned successfully but flagged a problem via MarkError
var ErrPartialFailure = errors.New("work reported a partial failure")

// WorkFunc is the unit of work an activity executes. It performs the real
// side effects (provider calls, store writes) and reports success or failure.
type WorkFunc func() error

// Activity describes one unit of background work. It is constructed by the
// caller, admitted to a Queue exactly once, and dropped after its completion
// has been delivered.
type Activity struct {
	id    string
	atype ActivityType
	title string
	work  WorkFunc

	mu        sync.Mutex
	status    ActivityStatus
	err       error
	flagged   bool
	enqueued  bool
	seq       uint64
	startedAt *time.Time
	endedAt   *time.Time
}

// Snapshot is a consistent, read-only view of an activity
type Snapshot struct {
	ID        string         `json:"id"`
	Type      ActivityType   `json:"type"`
	Title     string         `json:"title"`
	Status    ActivityStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	StartedAt *time.Time     `json:"startedAt,omitempty"`
	EndedAt   *time.Time     `json:"endedAt,omitempty"`
	Duration  time.Duration  `json:"duration,omitempty"`
}

// NewActivity creates an activity of the given type with a human-readable
// title and the work to execute
func NewActivity(atype ActivityType, title string, work WorkFunc) *Activity {
	return &Activity{
		id:     uuid.New().String(),
		atype:  atype,
		title:  title,
		work:   work,
		status: StatusPending,
	}
}

// ID returns the unique handle assigned at construction
func (a *Activity) ID() string {
	return a.id
}

// Type returns the presentation tag
func (a *Activity) Type() ActivityType {
	return a.atype
}

// Title returns the human-readable title
func (a *Activity) Title() string {
	return a.title
}

// Status returns the current lifecycle state
func (a *Activity) Status() ActivityStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Err returns the terminal error, nil while the activity has not failed
func (a *Activity) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// IsDone returns true once the activity reached a terminal status
func (a *Activity) IsDone() bool {
	return a.Status().IsTerminal()
}

// MarkError can be called by the work itself to flag a partial failure
// while still returning a value. The activity terminates as failed.
func (a *Activity) MarkError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flagged = true
}

// Snapshot returns a consistent view for presentation
func (a *Activity) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		ID:        a.id,
		Type:      a.atype,
		Title:     a.title,
		Status:    a.status,
		StartedAt: a.startedAt,
		EndedAt:   a.endedAt,
	}
	if a.err != nil {
		snap.Error = a.err.Error()
	}
	if a.startedAt != nil && a.endedAt != nil {
		snap.Duration = a.endedAt.Sub(*a.startedAt)
	}
	return snap
}

// markEnqueued claims the activity for a queue. It fails if the activity
// was already admitted somewhere: an activity is never run twice.
func (a *Activity) markEnqueued(seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enqueued {
		return false
	}
	a.enqueued = true
	a.seq = seq
	return true
}

// unmarkEnqueued releases the claim after a failed admission
func (a *Activity) unmarkEnqueued() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enqueued = false
}

func (a *Activity) sequence() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seq
}

// begin moves the activity to running and records the start time
func (a *Activity) begin() {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.setStatusLocked(StatusRunning) {
		a.startedAt = &now
	}
}

// invoke runs the work callable, converting a panic into an error so that
// nothing escapes the worker goroutine
func (a *Activity) invoke() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return a.work()
}

// complete folds the work outcome and the error flag into a terminal
// status and returns the final error
func (a *Activity) complete(err error) error {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()

	if err == nil && a.flagged {
		err = ErrPartialFailure
	}
	a.err = err
	a.endedAt = &now
	if err != nil {
		a.setStatusLocked(StatusFailed)
	} else {
		a.setStatusLocked(StatusSucceeded)
	}
	return err
}

// setStatusLocked advances the status. Transitions only move forward;
// a regression is ignored and reported false. Callers hold a.mu.
func (a *Activity) setStatusLocked(next ActivityStatus) bool {
	if statusRank[next] <= statusRank[a.status] {
		return false
	}
	a.status = next
	return true
}
