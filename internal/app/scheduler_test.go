package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/reportship/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeRunner struct {
	mu       sync.Mutex
	triggers []domain.Trigger
	status   domain.RunStatus
	block    chan struct{}
	started  chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, trigger domain.Trigger) domain.RunRecord {
	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	status := r.status
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	if status == "" {
		status = domain.RunSucceeded
	}
	return domain.RunRecord{Trigger: trigger, Status: status, Stage: domain.StageDone}
}

func (r *fakeRunner) Triggers() []domain.Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Trigger(nil), r.triggers...)
}

type recordingObserver struct {
	mu      sync.Mutex
	states  []RunState
	records []domain.RunRecord
}

func (o *recordingObserver) OnRunState(_, current RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, current)
}

func (o *recordingObserver) OnRunComplete(rec domain.RunRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
}

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{"09:00", ClockTime{9, 0}, false},
		{"23:59", ClockTime{23, 59}, false},
		{"00:00", ClockTime{0, 0}, false},
		{"9:00", ClockTime{}, true},
		{"24:00", ClockTime{}, true},
		{"12:60", ClockTime{}, true},
		{"noon", ClockTime{}, true},
	}
	for _, tt := range tests {
		got, err := ParseClockTime(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrInvalidConfig, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.in, got.String())
	}
}

func TestClockTime_Next(t *testing.T) {
	c := ClockTime{Hour: 9}
	assert.Equal(t, at(9, 0), c.Next(at(8, 59)))
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), c.Next(at(9, 0)))
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), c.Next(at(17, 30)))
}

func TestScheduler_FiresOncePerDay(t *testing.T) {
	clock := &fakeClock{now: at(8, 0)}
	runner := &fakeRunner{}
	s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9}, Clock: clock.Now}, runner, nil, nil)
	ctx := context.Background()

	_, fired := s.Tick(ctx)
	assert.False(t, fired, "fired before schedule time")

	clock.Set(at(9, 0))
	rec, fired := s.Tick(ctx)
	require.True(t, fired)
	assert.Equal(t, domain.TriggerSchedule, rec.Trigger)
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), s.NextRun())

	clock.Set(at(9, 1))
	_, fired = s.Tick(ctx)
	assert.False(t, fired, "fired twice on the same day")

	clock.Set(at(9, 0).AddDate(0, 0, 1).Add(30 * time.Second))
	_, fired = s.Tick(ctx)
	assert.True(t, fired)
	assert.Len(t, runner.Triggers(), 2)
}

func TestScheduler_FailedRunKeepsSchedule(t *testing.T) {
	clock := &fakeClock{now: at(9, 0)}
	runner := &fakeRunner{status: domain.RunFailed}
	obs := &recordingObserver{}
	s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9, Minute: 5}, Clock: clock.Now}, runner, nil, obs)

	clock.Set(at(9, 5))
	rec, fired := s.Tick(context.Background())
	require.True(t, fired)
	assert.Equal(t, domain.RunFailed, rec.Status)

	assert.Equal(t, RunIdle, s.State())
	assert.Equal(t, []RunState{RunRunning, RunFailed, RunIdle}, obs.states)
	assert.Len(t, obs.records, 1)
	assert.Equal(t, at(9, 5).AddDate(0, 0, 1), s.NextRun())

	last, ok := s.LastRun()
	require.True(t, ok)
	assert.Equal(t, domain.RunFailed, last.Status)
}

func TestScheduler_NoOverlappingRuns(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9}}, runner, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.TriggerNow(ctx)
		done <- err
	}()
	<-runner.started
	assert.Equal(t, RunRunning, s.State())

	_, err := s.TriggerNow(ctx)
	assert.True(t, errors.Is(err, domain.ErrAlreadyRunning))

	close(runner.block)
	require.NoError(t, <-done)
	assert.Equal(t, RunIdle, s.State())
	assert.Equal(t, []domain.Trigger{domain.TriggerManual}, runner.Triggers())
}

func TestScheduler_DueTickWhileRunningStaysDue(t *testing.T) {
	clock := &fakeClock{now: at(8, 0)}
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9}, Clock: clock.Now}, runner, nil, nil)
	ctx := context.Background()

	go func() { _, _ = s.TriggerNow(ctx) }()
	<-runner.started

	clock.Set(at(9, 0))
	_, fired := s.Tick(ctx)
	assert.False(t, fired)
	assert.Equal(t, at(9, 0), s.NextRun())

	runner.block <- struct{}{}
	require.Eventually(t, func() bool { return s.State() == RunIdle }, time.Second, time.Millisecond)

	runner.block = nil
	go func() { <-runner.started }()
	_, fired = s.Tick(ctx)
	assert.True(t, fired)
}

func TestScheduler_SetScheduleTime(t *testing.T) {
	clock := &fakeClock{now: at(10, 0)}
	s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9}, Clock: clock.Now}, &fakeRunner{}, nil, nil)
	assert.Equal(t, at(9, 0).AddDate(0, 0, 1), s.NextRun())

	s.SetScheduleTime(ClockTime{Hour: 18, Minute: 30})
	assert.Equal(t, at(18, 30), s.NextRun())
	assert.Equal(t, ClockTime{Hour: 18, Minute: 30}, s.ScheduleTime())
}

func TestScheduler_LoopStopsOnCancel(t *testing.T) {
	s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9}, PollInterval: time.Millisecond}, &fakeRunner{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Loop(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Loop did not return after cancel")
	}
}

func TestScheduler_ConcurrentTriggerKeepsScheduledRun(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		clock := &fakeClock{now: at(8, 59)}
		s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9}, Clock: clock.Now}, &fakeRunner{}, nil, nil)
		clock.Set(at(9, 0))

		var wg sync.WaitGroup
		var fired bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.TriggerNow(ctx)
		}()
		go func() {
			defer wg.Done()
			_, fired = s.Tick(ctx)
		}()
		wg.Wait()

		if !fired {
			require.Equal(t, at(9, 0), s.NextRun(), "iteration %d: skipped tick moved the schedule", i)
			_, fired = s.Tick(ctx)
			require.True(t, fired, "iteration %d: due run never fired", i)
		}
		require.Equal(t, at(9, 0).AddDate(0, 0, 1), s.NextRun())
	}
}

type panickingRunner struct{}

func (panickingRunner) Run(context.Context, domain.Trigger) domain.RunRecord {
	panic("chart backend exploded")
}

func TestScheduler_PanickingRunnerFailsRun(t *testing.T) {
	clock := &fakeClock{now: at(8, 0)}
	obs := &recordingObserver{}
	s := NewScheduler(SchedulerConfig{At: ClockTime{Hour: 9}, Clock: clock.Now}, panickingRunner{}, nil, obs)

	clock.Set(at(9, 0))
	rec, fired := s.Tick(context.Background())
	require.True(t, fired)
	assert.Equal(t, domain.RunFailed, rec.Status)
	assert.Contains(t, rec.Error, "chart backend exploded")
	assert.Equal(t, RunIdle, s.State())
	assert.Equal(t, []RunState{RunRunning, RunFailed, RunIdle}, obs.states)

	rec, err := s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerManual, rec.Trigger)
}
