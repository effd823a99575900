package refresh

import (
	"context"
	"errors"
	"time"

	"marquee/pkg/config"
	"marquee/pkg/logger"
	"marquee/pkg/queue"
	"marquee/pkg/state"
)

// Task names used for scheduler bookkeeping.
const (
	taskLibraryRefresh    = "library_refresh"
	taskNotificationCheck = "notification_check"
)

// tickInterval is how often the scheduler re-evaluates what is due.
var tickInterval = time.Hour

// Scheduler enqueues periodic refresh and notification activities
// according to the configured update frequency. Settings changes
// re-trigger the due check immediately through Kick.
type Scheduler struct {
	engine *Engine
	queue  *queue.Queue
	state  *state.Store

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

func NewScheduler(engine *Engine, q *queue.Queue, st *state.Store) *Scheduler {
	return &Scheduler{
		engine: engine,
		queue:  q,
		state:  st,
		kick:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs the scheduler loop. The first due check happens right
// away, so a library that has never been refreshed is updated on
// startup.
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	s.checkDue()
	for {
		select {
		case <-ticker.C:
			s.checkDue()
		case <-s.kick:
			s.checkDue()
		case <-s.stop:
			return
		}
	}
}

// Kick requests an immediate due check without waiting for the next
// tick.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Stop halts the scheduler loop and waits for it to exit. Must be
// called after Start.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) checkDue() {
	now := time.Now()

	last, err := s.state.LastRun(taskNotificationCheck)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		logger.Warn("Could not read the last notification check time: %v", err)
	}
	if err != nil || now.Sub(last) >= config.NotificationInterval() {
		s.runNotificationCheck(now)
	}

	last, err = s.state.LastRun(taskLibraryRefresh)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		logger.Warn("Could not read the last refresh time: %v", err)
	}
	if dueFor(config.UpdateFrequency(), last, err == nil, now) {
		s.runLibraryRefresh(now)
	}
}

// dueFor reports whether a library refresh is due under the given
// frequency. A library that has never been refreshed is always due,
// unless automatic updates are disabled.
func dueFor(frequency string, last time.Time, hasLast bool, now time.Time) bool {
	if frequency == config.FrequencyNever {
		return false
	}
	if !hasLast {
		return true
	}
	var interval time.Duration
	switch frequency {
	case config.FrequencyDay:
		interval = 24 * time.Hour
	case config.FrequencyWeek:
		interval = 7 * 24 * time.Hour
	case config.FrequencyMonth:
		interval = 30 * 24 * time.Hour
	default:
		return false
	}
	return now.Sub(last) >= interval
}

// The run mark is written at enqueue time, not completion, so a slow
// pass is never enqueued twice.
func (s *Scheduler) runLibraryRefresh(now time.Time) {
	if err := s.state.SetLastRun(taskLibraryRefresh, now); err != nil {
		logger.Error("Could not record the refresh run: %v", err)
	}
	logger.Info("Starting automatic update")

	var act *queue.Activity
	act = queue.NewActivity(queue.ActivityTypeUpdate, "Automatic update", func() error {
		stats, err := s.engine.RefreshLibrary(context.Background())
		if err != nil {
			return err
		}
		if stats.Failed > 0 {
			act.MarkError()
		}
		return nil
	})
	if err := s.queue.EnqueueWithCallback(act, RecordCompletion(s.state)); err != nil {
		logger.Error("Could not enqueue the automatic update: %v", err)
	}
}

func (s *Scheduler) runNotificationCheck(now time.Time) {
	if err := s.state.SetLastRun(taskNotificationCheck, now); err != nil {
		logger.Error("Could not record the notification check: %v", err)
	}
	logger.Info("Starting automatic update of the notification list")

	var act *queue.Activity
	act = queue.NewActivity(queue.ActivityTypeUpdate, "Automatic update of notification list", func() error {
		stats, err := s.engine.CheckNotifications(context.Background())
		if err != nil {
			return err
		}
		if stats.Failed > 0 {
			act.MarkError()
		}
		return nil
	})
	if err := s.queue.EnqueueWithCallback(act, RecordCompletion(s.state)); err != nil {
		logger.Error("Could not enqueue the notification check: %v", err)
	}
}

// RecordCompletion returns a completion callback that persists the
// finished activity into the history store.
func RecordCompletion(st *state.Store) queue.CompletionFunc {
	return func(act *queue.Activity, err error) {
		snap := act.Snapshot()
		rec := state.ActivityRecord{
			ID:        snap.ID,
			Type:      string(snap.Type),
			Title:     snap.Title,
			Status:    string(snap.Status),
			Error:     snap.Error,
			StartedAt: snap.StartedAt,
			EndedAt:   snap.EndedAt,
		}
		if err := st.AppendActivity(rec); err != nil {
			logger.Warn("Could not record activity '%s' in the history: %v", snap.Title, err)
		}
	}
}
