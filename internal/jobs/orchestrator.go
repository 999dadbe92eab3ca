package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/clock"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/events"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/metrics"
	"github.com/tbrandongarner/VendorSync-Pro-Replit-sub001/internal/models"
)

// ProgressFunc lets a handler report percent progress. Values are
// clamped to stay monotonically non-decreasing within a job.
type ProgressFunc func(percent int, message string)

// Handler executes one job. The job argument is a private copy; the
// orchestrator owns all job state mutation.
type Handler func(ctx context.Context, job *models.SyncJob, progress ProgressFunc) error

// Store mirrors job rows and audit entries into durable storage and
// prunes rows past retention. All writes are best effort; the
// orchestrator never fails a job over them.
type Store interface {
	SaveSyncJob(ctx context.Context, job *models.SyncJob) error
	CreateActivity(ctx context.Context, entry *models.Activity) error
	DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options tune the orchestrator.
type Options struct {
	MaxAttempts   int
	Retention     time.Duration
	SweepInterval time.Duration
}

type kindQueue struct {
	kind     string
	pending  []string
	draining bool
}

// Orchestrator runs jobs from one queue per kind. Each queue drains
// serially so at most one job per kind is active; distinct kinds run
// concurrently. Queue state lives in memory for the process lifetime.
type Orchestrator struct {
	opts  Options
	clk   clock.Clock
	log   zerolog.Logger
	bus   *events.EventBus
	store Store

	mu       sync.Mutex
	runCtx   context.Context
	queues   map[string]*kindQueue
	jobs     map[string]*models.SyncJob
	handlers map[string]Handler
}

// NewOrchestrator builds an idle orchestrator. Call Start to begin
// draining; jobs enqueued before Start wait in their queues.
func NewOrchestrator(opts Options, bus *events.EventBus, store Store, clk clock.Clock, logger zerolog.Logger) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = models.DefaultJobMaxAttempts
	}
	if opts.Retention <= 0 {
		opts.Retention = models.DefaultJobRetention
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Hour
	}
	return &Orchestrator{
		opts:     opts,
		clk:      clk,
		log:      logger.With().Str("component", "jobs").Logger(),
		bus:      bus,
		store:    store,
		queues:   make(map[string]*kindQueue),
		jobs:     make(map[string]*models.SyncJob),
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to a job kind, replacing any previous
// binding.
func (o *Orchestrator) RegisterHandler(kind string, h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[kind] = h
}

// Start begins draining queues and sweeping finished jobs until ctx
// ends.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	o.runCtx = ctx
	for _, q := range o.queues {
		if len(q.pending) > 0 && !q.draining {
			q.draining = true
			go o.drain(q)
		}
	}
	o.mu.Unlock()

	go o.sweepLoop(ctx)
	o.log.Info().Msg("job orchestrator started")
}

// Enqueue validates the payload for the kind and queues a new job,
// returning its id.
func (o *Orchestrator) Enqueue(kind string, payload json.RawMessage) (string, error) {
	if _, err := models.ParsePayload(kind, payload); err != nil {
		return "", err
	}

	job := &models.SyncJob{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      models.JobStatusPending,
		Payload:     payload,
		MaxAttempts: o.opts.MaxAttempts,
		CreatedAt:   o.clk.Now(),
	}

	o.mu.Lock()
	o.jobs[job.ID] = job
	q := o.queue(kind)
	q.pending = append(q.pending, job.ID)
	if o.runCtx != nil && o.runCtx.Err() == nil && !q.draining {
		q.draining = true
		go o.drain(q)
	}
	snap := *job
	o.mu.Unlock()

	o.log.Info().Str("job", job.ID).Str("kind", kind).Msg("job enqueued")
	o.broadcast(events.EventJobQueued, &snap)
	o.persist(&snap)
	return job.ID, nil
}

// Status returns a copy of the job, or false when the id is unknown or
// already swept.
func (o *Orchestrator) Status(id string) (*models.SyncJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	if !ok {
		return nil, false
	}
	snap := *job
	return &snap, true
}

// drain runs jobs for one kind until its queue empties. Only one drain
// per queue runs at a time.
func (o *Orchestrator) drain(q *kindQueue) {
	for {
		o.mu.Lock()
		if o.runCtx.Err() != nil || len(q.pending) == 0 {
			q.draining = false
			o.mu.Unlock()
			return
		}

		id := q.pending[0]
		q.pending = q.pending[1:]
		job, ok := o.jobs[id]
		if !ok {
			o.mu.Unlock()
			continue
		}
		handler := o.handlers[job.Kind]
		job.Attempts++
		job.Status = models.JobStatusActive
		if job.StartedAt.IsZero() {
			job.StartedAt = o.clk.Now()
		}
		ctx := o.runCtx
		snap := *job
		o.mu.Unlock()

		o.broadcast(events.EventJobStarted, &snap)
		o.persist(&snap)

		var err error
		if handler == nil {
			err = fmt.Errorf("no handler registered for kind %q", job.Kind)
		} else {
			err = o.runHandler(ctx, handler, &snap)
		}

		if err == nil {
			o.complete(id)
			continue
		}
		o.fail(q, id, ctx, err)
	}
}

func (o *Orchestrator) runHandler(ctx context.Context, handler Handler, job *models.SyncJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job, o.progressFunc(job.ID))
}

func (o *Orchestrator) progressFunc(id string) ProgressFunc {
	return func(percent int, message string) {
		o.mu.Lock()
		job, ok := o.jobs[id]
		if !ok {
			o.mu.Unlock()
			return
		}
		if percent > 100 {
			percent = 100
		}
		if percent > job.Progress {
			job.Progress = percent
		}
		job.Message = message
		snap := *job
		o.mu.Unlock()

		o.broadcast(events.EventJobProgress, &snap)
	}
}

func (o *Orchestrator) complete(id string) {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	job.Error = ""
	job.FinishedAt = o.clk.Now()
	snap := *job
	o.mu.Unlock()

	metrics.IncJob(snap.Kind, snap.Status)
	o.log.Info().Str("job", snap.ID).Str("kind", snap.Kind).Msg("job completed")
	o.broadcast(events.EventJobCompleted, &snap)
	o.persist(&snap)
	o.recordActivity("job_completed", &snap)
}

// fail either re-queues the job for another pass or marks it terminally
// failed once its attempt budget is spent. A shutdown mid-run parks the
// job back in pending without burning the attempt.
func (o *Orchestrator) fail(q *kindQueue, id string, ctx context.Context, cause error) {
	shutdown := ctx.Err() != nil && errors.Is(cause, ctx.Err())

	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok {
		o.mu.Unlock()
		return
	}

	if shutdown {
		job.Status = models.JobStatusPending
		job.Attempts--
		q.pending = append(q.pending, id)
		o.mu.Unlock()
		return
	}

	job.Error = cause.Error()
	if job.Attempts < job.MaxAttempts {
		job.Status = models.JobStatusPending
		q.pending = append(q.pending, id)
		snap := *job
		o.mu.Unlock()

		o.log.Warn().
			Str("job", snap.ID).
			Str("kind", snap.Kind).
			Int("attempt", snap.Attempts).
			Err(cause).
			Msg("job failed, will retry")
		o.broadcast(events.EventJobProgress, &snap)
		o.persist(&snap)
		return
	}

	job.Status = models.JobStatusFailed
	job.FinishedAt = o.clk.Now()
	snap := *job
	o.mu.Unlock()

	metrics.IncJob(snap.Kind, snap.Status)
	o.log.Error().
		Str("job", snap.ID).
		Str("kind", snap.Kind).
		Int("attempts", snap.Attempts).
		Err(cause).
		Msg("job failed terminally")
	o.broadcast(events.EventJobFailed, &snap)
	o.persist(&snap)
	o.recordActivity("job_failed", &snap)
}

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.clk.After(o.opts.SweepInterval):
			o.sweep()
		}
	}
}

// sweep drops jobs that have been terminal longer than the retention
// window, in memory and in the store.
func (o *Orchestrator) sweep() {
	now := o.clk.Now()
	removed := 0

	o.mu.Lock()
	for id, job := range o.jobs {
		if job.Finished() && !job.FinishedAt.IsZero() && now.Sub(job.FinishedAt) > o.opts.Retention {
			delete(o.jobs, id)
			removed++
		}
	}
	o.mu.Unlock()

	pruned := o.pruneStored(now.Add(-o.opts.Retention))
	if removed > 0 || pruned > 0 {
		o.log.Debug().Int("removed", removed).Int64("pruned", pruned).Msg("swept finished jobs")
	}
}

func (o *Orchestrator) pruneStored(cutoff time.Time) int64 {
	if o.store == nil {
		return 0
	}
	pruned, err := o.store.DeleteFinishedJobsBefore(context.Background(), cutoff)
	if err != nil {
		o.log.Warn().Err(err).Msg("prune stored jobs")
		return 0
	}
	return pruned
}

// broadcast publishes a job snapshot to the event bus. Failures are
// ignored; job execution never waits on delivery.
func (o *Orchestrator) broadcast(event string, job *models.SyncJob) {
	message := job.Message
	if event == events.EventJobFailed || (event == events.EventJobProgress && job.Error != "") {
		message = job.Error
	}
	_ = o.bus.PublishJSON(event, events.JobEventPayload{
		ID:       job.ID,
		Kind:     job.Kind,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  message,
	})
}

func (o *Orchestrator) persist(job *models.SyncJob) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveSyncJob(context.Background(), job); err != nil {
		o.log.Warn().Err(err).Str("job", job.ID).Msg("persist job state")
	}
}

func (o *Orchestrator) recordActivity(action string, job *models.SyncJob) {
	if o.store == nil {
		return
	}
	details, _ := json.Marshal(map[string]any{
		"kind":     job.Kind,
		"attempts": job.Attempts,
		"error":    job.Error,
	})
	entry := &models.Activity{
		Action:    action,
		Entity:    "sync_job",
		EntityID:  job.ID,
		Details:   string(details),
		CreatedAt: o.clk.Now(),
	}
	if err := o.store.CreateActivity(context.Background(), entry); err != nil {
		o.log.Warn().Err(err).Str("job", job.ID).Msg("record activity")
	}
}

func (o *Orchestrator) queue(kind string) *kindQueue {
	q, ok := o.queues[kind]
	if !ok {
		q = &kindQueue{kind: kind}
		o.queues[kind] = q
	}
	return q
}
