package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"marquee/pkg/logger"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull is returned when the bounded admission buffer is full
	ErrQueueFull = errors.New("queue admission buffer is full")
	// ErrInvalidActivity is returned for malformed enqueue requests
	ErrInvalidActivity = errors.New("invalid activity")
)

// Result is delivered exactly once per activity when it terminates
type Result struct {
	Activity *Activity
	Err      error
}

// CompletionFunc is an optional completion handler. Handlers run serialized
// on the queue's dispatch goroutine, never on a worker.
type CompletionFunc func(*Activity, error)

// StatusUpdate represents an activity status change event
type StatusUpdate struct {
	ActivityID string         `json:"activityId"`
	Type       ActivityType   `json:"type"`
	Title      string         `json:"title"`
	Status     ActivityStatus `json:"status"`
	Message    string         `json:"message"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Options configures a Queue
type Options struct {
	// MaxConcurrent bounds the number of simultaneously running activities.
	// Zero runs every activity on its own goroutine with no bound.
	MaxConcurrent int
	// QueueSize is the admission buffer used when MaxConcurrent > 0.
	// Enqueue fails with ErrQueueFull once the buffer is full.
	QueueSize int
}

type entry struct {
	activity *Activity
	done     chan Result
	onDone   CompletionFunc
}

type completion struct {
	entry *entry
	err   error
}

// Queue admits activities in FIFO order and runs their work off the
// caller's goroutine. It is constructed by the composition root and passed
// by reference; there is no package-level instance.
type Queue struct {
	opts Options

	mu     sync.Mutex
	active map[string]*Activity
	seq    uint64
	closed bool
	wg     sync.WaitGroup

	admission   chan *entry
	completions chan completion
	dispatched  chan struct{}

	ctx           context.Context
	cancel        context.CancelFunc
	statusUpdates chan StatusUpdate
	subscribers   map[chan StatusUpdate]bool
	subMutex      sync.RWMutex
}

// New creates a queue with the given options
func New(opts Options) *Queue {
	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		opts:          opts,
		active:        make(map[string]*Activity),
		completions:   make(chan completion, 100),
		dispatched:    make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
		statusUpdates: make(chan StatusUpdate, 100),
		subscribers:   make(map[chan StatusUpdate]bool),
	}

	if opts.MaxConcurrent > 0 {
		size := opts.QueueSize
		if size <= 0 {
			size = 64
		}
		q.admission = make(chan *entry, size)
		for i := 0; i < opts.MaxConcurrent; i++ {
			go q.worker()
		}
	}

	go q.dispatch()
	go q.broadcastLoop()

	return q
}

// Enqueue admits an activity and returns a buffered channel that receives
// its Result exactly once. Enqueue never blocks on the activity's work.
func (q *Queue) Enqueue(a *Activity) (<-chan Result, error) {
	e, err := q.admit(a, nil)
	if err != nil {
		return nil, err
	}
	return e.done, nil
}

// EnqueueFunc constructs and admits an activity in one step
func (q *Queue) EnqueueFunc(atype ActivityType, title string, work WorkFunc) (*Activity, <-chan Result, error) {
	a := NewActivity(atype, title, work)
	done, err := q.Enqueue(a)
	if err != nil {
		return nil, nil, err
	}
	return a, done, nil
}

// EnqueueWithCallback admits an activity whose completion handler is
// invoked exactly once on the queue's dispatch goroutine
func (q *Queue) EnqueueWithCallback(a *Activity, onDone CompletionFunc) error {
	_, err := q.admit(a, onDone)
	return err
}

// admit validates the descriptor and schedules execution. It fails fast
// and never blocks the caller.
func (q *Queue) admit(a *Activity, onDone CompletionFunc) (*entry, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil activity", ErrInvalidActivity)
	}
	if a.work == nil {
		return nil, fmt.Errorf("%w: activity %q has no work", ErrInvalidActivity, a.title)
	}
	if a.title == "" {
		return nil, fmt.Errorf("%w: empty title", ErrInvalidActivity)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	q.seq++
	if !a.markEnqueued(q.seq) {
		return nil, fmt.Errorf("%w: activity %q was already enqueued", ErrInvalidActivity, a.title)
	}

	e := &entry{activity: a, done: make(chan Result, 1), onDone: onDone}

	if q.admission != nil {
		// The Add must land before a worker can reach Done.
		q.wg.Add(1)
		select {
		case q.admission <- e:
		default:
			q.wg.Done()
			a.unmarkEnqueued()
			return nil, ErrQueueFull
		}
		q.active[a.id] = a
	} else {
		q.wg.Add(1)
		q.active[a.id] = a
		go q.execute(e)
	}

	q.broadcast(a, fmt.Sprintf("Activity %q queued", a.title))
	return e, nil
}

// worker drains the admission buffer, preserving FIFO start order
func (q *Queue) worker() {
	for e := range q.admission {
		q.execute(e)
	}
}

// execute runs one activity to a terminal status and hands the outcome to
// the dispatcher. Work failures and panics never escape this goroutine.
func (q *Queue) execute(e *entry) {
	defer q.wg.Done()

	a := e.activity
	a.begin()
	q.broadcast(a, fmt.Sprintf("Activity %q started", a.title))

	err := a.complete(a.invoke())
	if err != nil {
		logger.Debug("Activity %q failed: %v", a.title, err)
		q.broadcast(a, fmt.Sprintf("Activity %q failed", a.title))
	} else {
		q.broadcast(a, fmt.Sprintf("Activity %q completed", a.title))
	}

	q.completions <- completion{entry: e, err: err}
}

// dispatch delivers completions one at a time. Result channels are
// buffered, so a caller that never reads cannot stall the queue; callback
// handlers run serialized here rather than on the workers.
func (q *Queue) dispatch() {
	for c := range q.completions {
		c.entry.done <- Result{Activity: c.entry.activity, Err: c.err}
		if c.entry.onDone != nil {
			q.runCallback(c.entry, c.err)
		}
		q.drop(c.entry.activity)
	}
	close(q.dispatched)
}

func (q *Queue) runCallback(e *entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Completion handler for activity %q panicked: %v", e.activity.title, r)
		}
	}()
	e.onDone(e.activity, err)
}

func (q *Queue) drop(a *Activity) {
	q.mu.Lock()
	delete(q.active, a.id)
	q.mu.Unlock()
}

// Snapshot lists admitted, not yet dropped activities in enqueue order
func (q *Queue) Snapshot() []Snapshot {
	q.mu.Lock()
	acts := make([]*Activity, 0, len(q.active))
	for _, a := range q.active {
		acts = append(acts, a)
	}
	q.mu.Unlock()

	sort.Slice(acts, func(i, j int) bool {
		return acts[i].sequence() < acts[j].sequence()
	})

	out := make([]Snapshot, 0, len(acts))
	for _, a := range acts {
		out = append(out, a.Snapshot())
	}
	return out
}

// Depth returns the number of admitted, not yet dropped activities
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Subscribe adds a new subscriber for activity status updates
func (q *Queue) Subscribe() chan StatusUpdate {
	q.subMutex.Lock()
	defer q.subMutex.Unlock()

	subscriber := make(chan StatusUpdate, 10)
	q.subscribers[subscriber] = true
	return subscriber
}

// Unsubscribe removes a subscriber and closes its channel
func (q *Queue) Unsubscribe(subscriber chan StatusUpdate) {
	q.subMutex.Lock()
	defer q.subMutex.Unlock()

	if q.subscribers[subscriber] {
		delete(q.subscribers, subscriber)
		close(subscriber)
	}
}

// broadcast sends a status update to the broadcaster without blocking
func (q *Queue) broadcast(a *Activity, message string) {
	update := StatusUpdate{
		ActivityID: a.id,
		Type:       a.atype,
		Title:      a.title,
		Status:     a.Status(),
		Message:    message,
		Timestamp:  time.Now(),
	}

	select {
	case q.statusUpdates <- update:
	default:
		logger.Warn("Status update channel is full, skipping update for activity %s", a.id)
	}
}

// broadcastLoop fans status updates out to subscribers. Slow subscribers
// miss updates instead of stalling the workers.
func (q *Queue) broadcastLoop() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case update := <-q.statusUpdates:
			q.subMutex.RLock()
			for subscriber := range q.subscribers {
				select {
				case subscriber <- update:
				default:
				}
			}
			q.subMutex.RUnlock()
		}
	}
}

// Close stops admission, waits for admitted activities to terminate and
// their completions to be delivered, then stops the queue's goroutines.
// It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.dispatched
		return
	}
	q.closed = true
	if q.admission != nil {
		close(q.admission)
	}
	q.mu.Unlock()

	q.wg.Wait()
	close(q.completions)
	<-q.dispatched
	q.cancel()
}
