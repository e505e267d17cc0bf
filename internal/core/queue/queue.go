package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/logger"
)

// Executor runs one backlog job to completion.
type Executor func(ctx context.Context, j *job.Job) error

// Stats is a snapshot of queue state.
type Stats struct {
	Depth      int                  `json:"depth"`
	ByStatus   map[job.Status]int   `json:"by_status"`
	ByPriority map[job.Priority]int `json:"by_priority"`
}

// Queue is the in-process backlog for discovery and re-scrape work.
// Jobs drain one at a time in priority order, FIFO within a tier; a
// failed job is downgraded one tier and requeued until its retries run
// out. Concurrency across jobs is the orchestrator's business, not the
// queue's.
type Queue struct {
	log  *logger.Logger
	exec Executor

	mu         sync.Mutex
	items      []*job.Job
	processing bool
	current    *job.Job
	completed  int
	failed     int

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(exec Executor) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		log:     logger.New("JobQueue"),
		exec:    exec,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Enqueue inserts a job and kicks off draining if the queue is idle.
func (q *Queue) Enqueue(j *job.Job) {
	q.mu.Lock()
	j.Status = job.StatusPending
	j.EnqueuedAt = time.Now()
	if j.Priority == "" {
		j.Priority = job.PriorityMedium
	}
	q.items = append(q.items, j)
	start := !q.processing
	if start {
		q.processing = true
	}
	q.mu.Unlock()

	q.log.LogDebugf("enqueued job %s (%s)", j.ID, j.Priority)
	if start {
		q.wg.Add(1)
		go q.drain()
	}
}

// SetPriority adjusts a job's priority while it is still queued.
func (q *Queue) SetPriority(jobID string, p job.Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.ID == jobID {
			item.Priority = p
			return nil
		}
	}
	return fmt.Errorf("job %s is not queued", jobID)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := Stats{
		Depth:      len(q.items),
		ByStatus:   map[job.Status]int{job.StatusCompleted: q.completed, job.StatusFailed: q.failed},
		ByPriority: make(map[job.Priority]int),
	}
	for _, item := range q.items {
		stats.ByStatus[job.StatusPending]++
		stats.ByPriority[item.Priority]++
	}
	if q.current != nil {
		stats.ByStatus[job.StatusProcessing]++
	}
	return stats
}

// Stop cancels the in-flight job and waits for the drain loop to exit.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		j := q.pop()
		if j == nil {
			return
		}
		if q.baseCtx.Err() != nil {
			return
		}

		j.Status = job.StatusProcessing
		err := q.exec(q.baseCtx, j)

		q.mu.Lock()
		q.current = nil
		if err == nil {
			j.Status = job.StatusCompleted
			q.completed++
			q.mu.Unlock()
			continue
		}

		j.RetryCount++
		if j.RetryCount >= j.MaxRetries {
			j.Status = job.StatusFailed
			q.failed++
			q.mu.Unlock()
			q.log.LogWarnf("job %s failed permanently after %d retries: %v", j.ID, j.RetryCount, err)
			continue
		}

		// Requeue one tier down so a flapping job cannot starve the
		// rest of its original tier.
		j.Priority = j.Priority.Downgrade()
		j.Status = job.StatusPending
		j.EnqueuedAt = time.Now()
		q.items = append(q.items, j)
		q.mu.Unlock()
		q.log.LogInfof("requeued job %s at %s priority (retry %d/%d): %v", j.ID, j.Priority, j.RetryCount, j.MaxRetries, err)
	}
}

// pop removes the highest-priority, oldest-enqueued job. Returns nil and
// flips the queue idle when empty.
func (q *Queue) pop() *job.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		q.processing = false
		return nil
	}
	best := 0
	for i := 1; i < len(q.items); i++ {
		a, b := q.items[i], q.items[best]
		if a.Priority.Rank() > b.Priority.Rank() ||
			(a.Priority.Rank() == b.Priority.Rank() && a.EnqueuedAt.Before(b.EnqueuedAt)) {
			best = i
		}
	}
	j := q.items[best]
	q.items = append(q.items[:best], q.items[best+1:]...)
	q.current = j
	return j
}
