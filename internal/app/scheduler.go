package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bft-labs/reportship/internal/domain"
	"github.com/bft-labs/reportship/pkg/log"
)

// DefaultPollInterval is how often the scheduler checks whether a run is due.
const DefaultPollInterval = time.Minute

// RunState is the scheduler's run state.
type RunState int

const (
	RunIdle RunState = iota
	RunRunning
	RunSucceeded
	RunFailed
)

// String returns a human-readable representation of the run state.
func (s RunState) String() string {
	switch s {
	case RunIdle:
		return "Idle"
	case RunRunning:
		return "Running"
	case RunSucceeded:
		return "Succeeded"
	case RunFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Runner executes one pipeline run. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, trigger domain.Trigger) domain.RunRecord
}

// RunObserver is notified of run state changes and finished runs.
type RunObserver interface {
	OnRunState(previous, current RunState)
	OnRunComplete(record domain.RunRecord)
}

// ClockTime is a daily wall-clock time.
type ClockTime struct {
	Hour, Minute int
}

// ParseClockTime parses "HH:MM" in 24-hour form.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return ClockTime{}, fmt.Errorf("%w: schedule time %q is not HH:MM", domain.ErrInvalidConfig, s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the time as HH:MM.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Next returns the first occurrence of c strictly after now, in now's location.
func (c ClockTime) Next(now time.Time) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	At           ClockTime
	PollInterval time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Scheduler fires the runner once a day. Runs never overlap: a trigger that
// arrives while a run is in progress gets ErrAlreadyRunning.
type Scheduler struct {
	mu       sync.Mutex
	state    RunState
	at       ClockTime
	next     time.Time
	last     domain.RunRecord
	hasLast  bool
	poll     time.Duration
	now      func() time.Time
	runner   Runner
	logger   log.Logger
	observer RunObserver
}

// NewScheduler plans the first run at the next occurrence of cfg.At.
func NewScheduler(cfg SchedulerConfig, runner Runner, logger log.Logger, observer RunObserver) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Scheduler{
		state:    RunIdle,
		at:       cfg.At,
		next:     cfg.At.Next(cfg.Clock()),
		poll:     cfg.PollInterval,
		now:      cfg.Clock,
		runner:   runner,
		logger:   logger,
		observer: observer,
	}
}

// Loop checks for a due run every poll interval until ctx is cancelled.
// A failed run is recorded and the loop carries on.
func (s *Scheduler) Loop(ctx context.Context) error {
	s.logger.Info("scheduler started",
		log.String("schedule_time", s.ScheduleTime().String()),
		log.Time("next_run", s.NextRun()),
		log.Duration("poll_interval", s.poll),
	)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts a scheduled run if one is due and returns its record. The due
// check, the move to RunRunning and the advance of the next run happen under
// one lock, so a concurrent TriggerNow cannot consume the day's slot.
func (s *Scheduler) Tick(ctx context.Context) (domain.RunRecord, bool) {
	s.mu.Lock()
	now := s.now()
	if now.Before(s.next) {
		s.mu.Unlock()
		return domain.RunRecord{}, false
	}
	if s.state == RunRunning {
		// Stays due; the next tick tries again.
		s.mu.Unlock()
		return domain.RunRecord{}, false
	}
	s.next = s.at.Next(now)
	next := s.next
	prev := s.begin()
	s.mu.Unlock()

	s.logger.Debug("scheduled run due", log.Time("next_run", next))
	return s.execute(ctx, domain.TriggerSchedule, prev), true
}

// TriggerNow runs the pipeline immediately, outside the schedule. The next
// scheduled run is unaffected.
func (s *Scheduler) TriggerNow(ctx context.Context) (domain.RunRecord, error) {
	s.mu.Lock()
	if s.state == RunRunning {
		s.mu.Unlock()
		return domain.RunRecord{}, domain.ErrAlreadyRunning
	}
	prev := s.begin()
	s.mu.Unlock()

	return s.execute(ctx, domain.TriggerManual, prev), nil
}

// begin moves to RunRunning and returns the previous state. s.mu must be held.
func (s *Scheduler) begin() RunState {
	prev := s.state
	s.state = RunRunning
	return prev
}

// execute performs a run started by begin and returns to RunIdle.
func (s *Scheduler) execute(ctx context.Context, trigger domain.Trigger, prev RunState) domain.RunRecord {
	s.emitState(prev, RunRunning)

	rec := s.runSafely(ctx, trigger)

	terminal := RunSucceeded
	if !rec.Succeeded() {
		terminal = RunFailed
	}

	s.mu.Lock()
	s.state = terminal
	s.last, s.hasLast = rec, true
	s.mu.Unlock()
	s.emitState(RunRunning, terminal)
	if s.observer != nil {
		s.observer.OnRunComplete(rec)
	}

	s.mu.Lock()
	s.state = RunIdle
	s.mu.Unlock()
	s.emitState(terminal, RunIdle)

	return rec
}

// runSafely turns a panic in the runner into a failed record so one bad run
// cannot take the loop down.
func (s *Scheduler) runSafely(ctx context.Context, trigger domain.Trigger) (rec domain.RunRecord) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("run panicked",
				log.String("trigger", string(trigger)),
				log.String("panic", fmt.Sprint(r)),
				log.String("stack", string(debug.Stack())),
			)
			rec = domain.RunRecord{
				Trigger:    trigger,
				StartedAt:  started,
				FinishedAt: s.now(),
				Status:     domain.RunFailed,
				Error:      fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return s.runner.Run(ctx, trigger)
}

func (s *Scheduler) emitState(prev, next RunState) {
	if s.observer != nil {
		s.observer.OnRunState(prev, next)
	}
}

// SetScheduleTime changes the daily run time and re-plans the next run.
func (s *Scheduler) SetScheduleTime(at ClockTime) {
	s.mu.Lock()
	s.at = at
	s.next = at.Next(s.now())
	next := s.next
	s.mu.Unlock()

	s.logger.Info("schedule updated",
		log.String("schedule_time", at.String()),
		log.Time("next_run", next),
	)
}

// ScheduleTime returns the daily run time.
func (s *Scheduler) ScheduleTime() ClockTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.at
}

// NextRun returns when the next scheduled run is due.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// State returns the current run state.
func (s *Scheduler) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastRun returns the most recent finished run.
func (s *Scheduler) LastRun() (domain.RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}
