package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"crosspost/internal/models"
)

// Job is a publish deferred to a later time. The post itself is loaded
// from the store when the job fires.
type Job struct {
	PostID       uuid.UUID            `json:"post_id"`
	Destinations []models.Destination `json:"destinations"`
}

// Handler runs a due job.
type Handler func(ctx context.Context, job Job) error

// Queue accepts jobs to run at a given instant. A job is delivered to the
// handler at most once.
type Queue interface {
	Enqueue(ctx context.Context, at time.Time, job Job) error
}

// TimerQueue keeps jobs in process memory with one timer each. Pending
// jobs are lost on restart.
type TimerQueue struct {
	handler Handler
	now     func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timers  map[uuid.UUID]*time.Timer
	running sync.WaitGroup
}

func NewTimerQueue(handler Handler) *TimerQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &TimerQueue{
		handler: handler,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
		timers:  make(map[uuid.UUID]*time.Timer),
	}
}

// Enqueue arms a timer for job. Enqueuing the same post again replaces the
// earlier timer.
func (q *TimerQueue) Enqueue(_ context.Context, at time.Time, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx.Err() != nil {
		return q.ctx.Err()
	}
	if old, ok := q.timers[job.PostID]; ok {
		old.Stop()
	}

	delay := max(at.Sub(q.now()), 0)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if q.timers[job.PostID] != t || q.ctx.Err() != nil {
			q.mu.Unlock()
			return
		}
		delete(q.timers, job.PostID)
		q.running.Add(1)
		q.mu.Unlock()

		defer q.running.Done()
		q.run(job)
	})
	q.timers[job.PostID] = t

	slog.Info("job scheduled", "post_id", job.PostID, "at", at.Format(time.RFC3339), "backend", "memory")
	return nil
}

func (q *TimerQueue) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panic recovered", "post_id", job.PostID, "panic", r)
		}
	}()
	if err := q.handler(q.ctx, job); err != nil {
		slog.Error("scheduled job failed", "post_id", job.PostID, "error", err)
	}
}

// Pending returns the number of armed timers.
func (q *TimerQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Stop disarms every pending timer and waits for running jobs.
func (q *TimerQueue) Stop() {
	q.mu.Lock()
	q.cancel()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()
	q.running.Wait()
}
