package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

var syncPayload = json.RawMessage(`{"vendor_id":1,"store_id":1,"direction":"push"}`)

func newTestOrchestrator(opts Options, clk clock.Clock) (*Orchestrator, *eventCollector) {
	bus := events.NewEventBus()
	collector := newEventCollector(bus)
	o := NewOrchestrator(opts, bus, nil, clk, zerolog.New(io.Discard))
	return o, collector
}

func TestOrchestrator_EnqueueValidatesPayload(t *testing.T) {
	o, _ := newTestOrchestrator(Options{}, clock.New())

	if _, err := o.Enqueue(models.JobKindSync, json.RawMessage(`{"vendor_id":1}`)); err == nil {
		t.Fatal("expected validation error for incomplete payload")
	}
	if _, err := o.Enqueue("reindex", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestOrchestrator_RunsJobToCompletion(t *testing.T) {
	o, collector := newTestOrchestrator(Options{}, clock.New())

	o.RegisterHandler(models.JobKindSync, func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error {
		progress(50, "halfway")
		progress(100, "done")
		return nil
	})

	// Enqueue before Start so the queued broadcast lands before the
	// drain loop begins and the event order is deterministic.
	id, err := o.Enqueue(models.JobKindSync, syncPayload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	waitFor(t, func() bool {
		job, ok := o.Status(id)
		return ok && job.Status == models.JobStatusCompleted
	})

	job, _ := o.Status(id)
	if job.Progress != 100 {
		t.Fatalf("progress = %d, want 100", job.Progress)
	}
	if job.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", job.Attempts)
	}
	if job.FinishedAt.IsZero() {
		t.Fatal("finished job must have FinishedAt set")
	}

	types := collector.types()
	want := []string{events.EventJobQueued, events.EventJobStarted, events.EventJobProgress, events.EventJobProgress, events.EventJobCompleted}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i, w := range want {
		if types[i] != w {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}

	// Progress payloads are monotonically non-decreasing and end at 100.
	progresses := collector.progressValues()
	last := -1
	for _, p := range progresses {
		if p < last {
			t.Fatalf("progress regressed: %v", progresses)
		}
		last = p
	}
	if last != 100 {
		t.Fatalf("final progress = %d, want 100", last)
	}
}

func TestOrchestrator_RetriesThenFails(t *testing.T) {
	o, collector := newTestOrchestrator(Options{MaxAttempts: 3}, clock.New())

	runs := 0
	var mu sync.Mutex
	o.RegisterHandler(models.JobKindSync, func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	id, err := o.Enqueue(models.JobKindSync, syncPayload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool {
		job, ok := o.Status(id)
		return ok && job.Status == models.JobStatusFailed
	})

	mu.Lock()
	if runs != 3 {
		t.Fatalf("handler runs = %d, want 3", runs)
	}
	mu.Unlock()

	job, _ := o.Status(id)
	if job.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", job.Attempts)
	}
	if job.Error != "boom" {
		t.Fatalf("error = %q, want boom", job.Error)
	}

	// pending -> active happens maxAttempts times; the intermediate
	// active -> pending bounce exactly maxAttempts-1 times.
	if got := collector.count(events.EventJobStarted); got != 3 {
		t.Fatalf("started events = %d, want 3", got)
	}
	if got := collector.pendingBounces(); got != 2 {
		t.Fatalf("retry bounces = %d, want 2", got)
	}
	if got := collector.count(events.EventJobFailed); got != 1 {
		t.Fatalf("failed events = %d, want 1", got)
	}
}

func TestOrchestrator_OneActivePerKind(t *testing.T) {
	o, _ := newTestOrchestrator(Options{}, clock.New())

	release := make(chan struct{})
	started := make(chan string, 2)
	o.RegisterHandler(models.JobKindSync, func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error {
		started <- job.ID
		<-release
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	id1, _ := o.Enqueue(models.JobKindSync, syncPayload)
	id2, _ := o.Enqueue(models.JobKindSync, syncPayload)

	first := <-started
	if first != id1 {
		t.Fatalf("first started = %s, want %s", first, id1)
	}

	// The second job must stay pending while the first is active.
	time.Sleep(20 * time.Millisecond)
	job2, _ := o.Status(id2)
	if job2.Status != models.JobStatusPending {
		t.Fatalf("second job status = %s, want pending", job2.Status)
	}

	close(release)
	waitFor(t, func() bool {
		j1, _ := o.Status(id1)
		j2, _ := o.Status(id2)
		return j1.Status == models.JobStatusCompleted && j2.Status == models.JobStatusCompleted
	})
}

func TestOrchestrator_KindsRunConcurrently(t *testing.T) {
	o, _ := newTestOrchestrator(Options{}, clock.New())

	release := make(chan struct{})
	var active sync.WaitGroup
	active.Add(2)
	handler := func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error {
		active.Done()
		<-release
		return nil
	}
	o.RegisterHandler(models.JobKindSync, handler)
	o.RegisterHandler(models.JobKindFileImport, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	o.Enqueue(models.JobKindSync, syncPayload)
	o.Enqueue(models.JobKindFileImport, json.RawMessage(`{"vendor_id":1,"upload_ids":["u1"],"import_mode":"both"}`))

	// Both kinds reach their handlers without either finishing.
	done := make(chan struct{})
	go func() { active.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("kinds did not run concurrently")
	}
	close(release)
}

func TestOrchestrator_WaitsForStart(t *testing.T) {
	o, _ := newTestOrchestrator(Options{}, clock.New())

	ran := make(chan struct{}, 1)
	o.RegisterHandler(models.JobKindSync, func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error {
		ran <- struct{}{}
		return nil
	})

	id, err := o.Enqueue(models.JobKindSync, syncPayload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-ran:
		t.Fatal("job ran before Start")
	case <-time.After(20 * time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	waitFor(t, func() bool {
		job, ok := o.Status(id)
		return ok && job.Status == models.JobStatusCompleted
	})
}

func TestOrchestrator_NoHandlerFailsJob(t *testing.T) {
	o, _ := newTestOrchestrator(Options{MaxAttempts: 1}, clock.New())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	id, _ := o.Enqueue(models.JobKindSync, syncPayload)
	waitFor(t, func() bool {
		job, ok := o.Status(id)
		return ok && job.Status == models.JobStatusFailed
	})

	job, _ := o.Status(id)
	if job.Error == "" {
		t.Fatal("expected error message for missing handler")
	}
}

func TestOrchestrator_ShutdownParksActiveJob(t *testing.T) {
	o, _ := newTestOrchestrator(Options{}, clock.New())

	entered := make(chan struct{})
	o.RegisterHandler(models.JobKindSync, func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)

	id, _ := o.Enqueue(models.JobKindSync, syncPayload)
	<-entered
	cancel()

	waitFor(t, func() bool {
		job, ok := o.Status(id)
		return ok && job.Status == models.JobStatusPending
	})

	job, _ := o.Status(id)
	if job.Attempts != 0 {
		t.Fatalf("attempts = %d after shutdown, want 0 (attempt not burned)", job.Attempts)
	}
}

func TestOrchestrator_SweepRemovesOldJobs(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	o, _ := newTestOrchestrator(Options{Retention: 24 * time.Hour, SweepInterval: time.Hour}, clk)

	o.RegisterHandler(models.JobKindSync, func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	id, _ := o.Enqueue(models.JobKindSync, syncPayload)
	waitFor(t, func() bool {
		job, ok := o.Status(id)
		return ok && job.Status == models.JobStatusCompleted
	})

	// Advance past the retention window; the sweeper wakes on its
	// interval timer and drops the job.
	waitFor(t, func() bool {
		clk.Advance(2 * time.Hour)
		time.Sleep(2 * time.Millisecond)
		_, ok := o.Status(id)
		return !ok
	})
}

func TestOrchestrator_SweepPrunesStoredJobs(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	store := &pruningStore{}
	bus := events.NewEventBus()
	o := NewOrchestrator(Options{Retention: 24 * time.Hour, SweepInterval: time.Hour}, bus, store, clk, zerolog.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	waitFor(t, func() bool {
		clk.Advance(2 * time.Hour)
		time.Sleep(2 * time.Millisecond)
		return store.pruneCalls() > 0 && store.lastCutoff().Equal(clk.Now().Add(-24*time.Hour))
	})
}

// Helpers

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

type eventCollector struct {
	mu     sync.Mutex
	events []events.JobEventPayload
	names  []string
}

func newEventCollector(bus *events.EventBus) *eventCollector {
	c := &eventCollector{}
	handler := func(e *events.Event) error {
		var p events.JobEventPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		c.mu.Lock()
		c.events = append(c.events, p)
		c.names = append(c.names, e.Type)
		c.mu.Unlock()
		return nil
	}
	for _, name := range []string{
		events.EventJobQueued,
		events.EventJobStarted,
		events.EventJobProgress,
		events.EventJobCompleted,
		events.EventJobFailed,
	} {
		bus.Subscribe(name, handler)
	}
	return c
}

func (c *eventCollector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

func (c *eventCollector) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.names {
		if e == name {
			n++
		}
	}
	return n
}

func (c *eventCollector) progressValues() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []int
	for i, name := range c.names {
		if name == events.EventJobProgress || name == events.EventJobCompleted {
			out = append(out, c.events[i].Progress)
		}
	}
	return out
}

func (c *eventCollector) pendingBounces() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i, name := range c.names {
		if name == events.EventJobProgress && c.events[i].Status == models.JobStatusPending {
			n++
		}
	}
	return n
}

// pruningStore records retention prunes and discards everything else.
type pruningStore struct {
	mu     sync.Mutex
	calls  int
	cutoff time.Time
}

func (s *pruningStore) SaveSyncJob(ctx context.Context, job *models.SyncJob) error { return nil }

func (s *pruningStore) CreateActivity(ctx context.Context, entry *models.Activity) error { return nil }

func (s *pruningStore) DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.cutoff = cutoff
	return 1, nil
}

func (s *pruningStore) pruneCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *pruningStore) lastCutoff() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cutoff
}
