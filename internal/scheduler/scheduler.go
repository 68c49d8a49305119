// Package scheduler maintains one pending one-shot timer per topic.
// Timers are not durable: the schedule is persisted as each topic's
// next_update_time column and re-derived from it at process startup.
// Each firing arranges its own successor, so the set of live timers
// always matches the persisted column.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/neuraletter/neuraletter/internal/store"
	"github.com/neuraletter/neuraletter/pkg/enrich"
)

// TopicStore is the slice of storage the scheduler needs.
type TopicStore interface {
	GetTopic(ctx context.Context, id string) (*store.Topic, error)
	ListScheduledTopics(ctx context.Context) ([]store.Topic, error)
	SetTopicNextUpdate(ctx context.Context, id string, nextMs int64) error
}

// Runner executes one collection run for a topic.
type Runner interface {
	Enrich(ctx context.Context, topic *store.Topic) *enrich.Result
}

const defaultFrequencyHours = 24

// Scheduler owns the per-topic timers.
type Scheduler struct {
	store  TopicStore
	runner Runner
	buffer time.Duration
	now    func() time.Time

	mu       sync.Mutex
	timers   map[string]*time.Timer
	nextRuns map[string]int64
	stopped  bool
}

// New creates a scheduler. overdueBuffer is the clamp applied when a run
// time is already in the past (default 5s).
func New(st TopicStore, runner Runner, overdueBuffer time.Duration) *Scheduler {
	if overdueBuffer <= 0 {
		overdueBuffer = 5 * time.Second
	}
	return &Scheduler{
		store:    st,
		runner:   runner,
		buffer:   overdueBuffer,
		now:      time.Now,
		timers:   make(map[string]*time.Timer),
		nextRuns: make(map[string]int64),
	}
}

// ScheduleAt registers or replaces the timer for a topic at an absolute
// epoch-ms time. Times at or before now are clamped to now plus the
// overdue buffer so overdue work runs soon instead of being dropped.
func (s *Scheduler) ScheduleAt(topicID string, runAtMs int64) {
	nowMs := s.now().UnixMilli()
	if runAtMs <= nowMs {
		runAtMs = nowMs + s.buffer.Milliseconds()
	}
	delay := time.Duration(runAtMs-nowMs) * time.Millisecond

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	if existing, ok := s.timers[topicID]; ok {
		existing.Stop()
	}
	s.timers[topicID] = time.AfterFunc(delay, func() { s.fire(topicID) })
	s.nextRuns[topicID] = runAtMs

	fmt.Fprintf(os.Stderr, "scheduler: topic %s scheduled at %s\n",
		topicID, time.UnixMilli(runAtMs).UTC().Format(time.RFC3339))
}

// ScheduleFromStore recovers the full schedule from persisted
// next_update_time values. Called once at process startup.
func (s *Scheduler) ScheduleFromStore(ctx context.Context) error {
	topics, err := s.store.ListScheduledTopics(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled topics: %w", err)
	}

	for _, topic := range topics {
		if topic.NextUpdateTime == nil {
			continue
		}
		s.ScheduleAt(topic.ID, *topic.NextUpdateTime)
	}

	fmt.Fprintf(os.Stderr, "scheduler: restored %d topic schedules\n", len(topics))
	return nil
}

// NextRun reports the pending run time for a topic, if any.
func (s *Scheduler) NextRun(topicID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.nextRuns[topicID]
	return ms, ok
}

// Cancel drops the pending timer for a topic.
func (s *Scheduler) Cancel(topicID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[topicID]; ok {
		timer.Stop()
		delete(s.timers, topicID)
		delete(s.nextRuns, topicID)
	}
}

// Stop cancels all timers. In-flight runs finish on their own; their
// reschedule attempts become no-ops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
		delete(s.nextRuns, id)
	}
}

// fire runs one update cycle for a topic, then persists and schedules the
// next one. The topic is loaded fresh from storage so a restart or an
// edit between scheduling and firing cannot act on stale state.
func (s *Scheduler) fire(topicID string) {
	ctx := context.Background()

	s.mu.Lock()
	delete(s.timers, topicID)
	delete(s.nextRuns, topicID)
	s.mu.Unlock()

	topic, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: load topic %s: %v\n", topicID, err)
		return
	}
	if topic == nil {
		fmt.Fprintf(os.Stderr, "scheduler: topic %s not found; dropping schedule\n", topicID)
		return
	}
	if topic.Description == nil || *topic.Description == "" {
		fmt.Fprintf(os.Stderr, "scheduler: topic %s has no description; skipping\n", topicID)
		return
	}

	s.runSafely(ctx, topic)

	freq := topic.UpdateFrequencyHours
	if freq <= 0 {
		freq = defaultFrequencyHours
	}
	nextMs := s.now().UnixMilli() + int64(freq)*int64(time.Hour/time.Millisecond)

	if err := s.store.SetTopicNextUpdate(ctx, topicID, nextMs); err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: persist next run for topic %s: %v\n", topicID, err)
	}
	s.ScheduleAt(topicID, nextMs)
}

// runSafely executes the collection run. A panic in the runner must not
// prevent the reschedule step.
func (s *Scheduler) runSafely(ctx context.Context, topic *store.Topic) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "scheduler: run for topic %s panicked: %v\n", topic.ID, r)
		}
	}()

	result := s.runner.Enrich(ctx, topic)
	fmt.Fprintf(os.Stderr, "scheduler: topic %s run finished: %s (%d updates)\n",
		topic.ID, result.Status, len(result.UpdatesCreated))
}
