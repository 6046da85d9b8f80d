// Package farseeing implements the future-state scheduler: an
// application publishes a timeline of upcoming active/inactive states,
// and a single armed timer fires pre-emptive re-planning ahead of each
// transition. It generalizes the teacher's nodemanager health-check
// ticker (one fixed-interval timer) into a heap of heterogeneous
// one-shot deadlines, one per scheduled state transition.
package farseeing

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StateInfo describes one named state an application cycles through:
// a signed interval (positive = active for that long, negative =
// inactive) and an opaque payload carried through to the Migrator.
type StateInfo struct {
	Name     string
	Interval time.Duration
	Payload  any
}

// Timeline is what Register publishes: an initial date, the named
// states, and the offsets at which the app transitions between them.
type Timeline struct {
	AppID       string
	InitialDate time.Time
	States      map[string]StateInfo
	Triggers    []Trigger
}

// Trigger is one (offset from InitialDate, state name) pair.
type Trigger struct {
	Offset time.Duration
	State  string
}

// Migrator is how the scheduler asks AppManager to re-plan an
// activating application; implemented by appmanager.Manager.
type Migrator interface {
	MigrateWithRequirements(ctx context.Context, appID string, move, extend bool) error
}

type event struct {
	fireAt time.Time
	appID  string
	state  string
	index  int // heap.Interface bookkeeping
}

type eventHeap []*event

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].fireAt.Before(h[j].fireAt) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }

func (h *eventHeap) Push(x any) {
	e := x.(*event)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return e
}

// Scheduler owns the heap of pending state transitions and the single
// armed timer that fires the earliest one, per §4.7.
type Scheduler struct {
	mu       sync.Mutex
	pq       eventHeap
	timer    *time.Timer
	leadTime time.Duration
	migrator Migrator
	active   map[string]struct{}
	states   map[string]map[string]StateInfo // appID -> state name -> info
	log      *zap.Logger
	ctx      context.Context
}

func NewScheduler(ctx context.Context, migrator Migrator, leadTime time.Duration, log *zap.Logger) *Scheduler {
	s := &Scheduler{
		leadTime: leadTime,
		migrator: migrator,
		active:   make(map[string]struct{}),
		states:   make(map[string]map[string]StateInfo),
		log:      log,
		ctx:      ctx,
	}
	heap.Init(&s.pq)

	return s
}

// IsActive reports whether appID is currently in an "active" state.
// The placement planner does not call it; its farseeing path reads
// DeployRequest.FarseeingActive, which appmanager always sets false.
func (s *Scheduler) IsActive(appID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.active[appID]

	return ok
}

// Register publishes a timeline: every trigger becomes one heap entry
// at (initial_date + offset - lead_time), and the timer is rearmed if
// this timeline's earliest event precedes whatever is currently armed.
func (s *Scheduler) Register(tl Timeline) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[tl.AppID] = tl.States

	for _, trig := range tl.Triggers {
		fireAt := tl.InitialDate.Add(trig.Offset).Add(-s.leadTime)
		heap.Push(&s.pq, &event{fireAt: fireAt, appID: tl.AppID, state: trig.State})
	}

	s.rearm()
}

// rearm must be called with mu held; it cancels any pending timer and
// arms a fresh one for the new earliest event, matching "Farseeing
// timers cancel prior pending timer on rescheduling" (§5).
func (s *Scheduler) rearm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if s.pq.Len() == 0 {
		return
	}

	delay := time.Until(s.pq[0].fireAt)
	if delay < 0 {
		delay = 0
	}

	s.timer = time.AfterFunc(delay, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()

	now := time.Now()

	var fired []*event

	for s.pq.Len() > 0 && !s.pq[0].fireAt.After(now) {
		fired = append(fired, heap.Pop(&s.pq).(*event))
	}

	s.rearm()
	s.mu.Unlock()

	for _, e := range fired {
		s.processEvent(e)
	}
}

func (s *Scheduler) processEvent(e *event) {
	s.mu.Lock()
	info, ok := s.states[e.appID][e.state]
	s.mu.Unlock()

	if !ok {
		s.log.Warn("farseeing event for unknown state, skipping",
			zap.String("app_id", e.appID), zap.String("state", e.state))

		return
	}

	activating := info.Interval > 0

	s.mu.Lock()
	if activating {
		s.active[e.appID] = struct{}{}
	} else {
		delete(s.active, e.appID)
	}
	s.mu.Unlock()

	if !activating {
		return
	}

	if err := s.migrator.MigrateWithRequirements(s.ctx, e.appID, false, true); err != nil {
		s.log.Warn("farseeing re-plan failed, event not retried",
			zap.String("app_id", e.appID), zap.Error(err))
	}
}
