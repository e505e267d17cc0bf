package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/platforms"
)

// recorder captures drain order and scripted outcomes per job.
type recorder struct {
	mu       sync.Mutex
	order    []string
	failures map[string]int // job ID -> how many times to fail
	started  chan struct{}
	release  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{failures: make(map[string]int)}
}

func (r *recorder) exec(ctx context.Context, j *job.Job) error {
	r.mu.Lock()
	r.order = append(r.order, j.ID)
	remaining := r.failures[j.ID]
	if remaining > 0 {
		r.failures[j.ID] = remaining - 1
	}
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if remaining > 0 {
		return errors.New("blocked")
	}
	return nil
}

func (r *recorder) drained() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func testJob(id string, p job.Priority) *job.Job {
	return &job.Job{
		ID:         id,
		URL:        "https://www.amazon.com/dp/" + id,
		Platform:   platforms.Amazon,
		Priority:   p,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
	}
}

func waitDrained(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := q.Stats()
		if st.Depth == 0 && st.ByStatus[job.StatusProcessing] == 0 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("queue never drained: %+v", q.Stats())
}

func TestDrainPriorityOrder(t *testing.T) {
	rec := newRecorder()
	// Hold the first job so the rest can queue up behind it.
	rec.started = make(chan struct{}, 10)
	rec.release = make(chan struct{})

	q := New(rec.exec)
	defer q.Stop()

	q.Enqueue(testJob("first", job.PriorityLow))
	<-rec.started

	q.Enqueue(testJob("low", job.PriorityLow))
	q.Enqueue(testJob("high", job.PriorityHigh))
	q.Enqueue(testJob("medium", job.PriorityMedium))
	q.Enqueue(testJob("high-2", job.PriorityHigh))
	close(rec.release)
	for i := 0; i < 4; i++ {
		<-rec.started
	}
	waitDrained(t, q)

	want := []string{"first", "high", "high-2", "medium", "low"}
	got := rec.drained()
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
}

func TestDefaultPriorityIsMedium(t *testing.T) {
	rec := newRecorder()
	q := New(rec.exec)
	defer q.Stop()

	j := testJob("j1", "")
	q.Enqueue(j)
	waitDrained(t, q)
	if j.Priority != job.PriorityMedium {
		t.Fatalf("priority = %s, want medium", j.Priority)
	}
}

func TestFailureDowngradesAndRequeues(t *testing.T) {
	rec := newRecorder()
	rec.failures["flaky"] = 2

	q := New(rec.exec)
	defer q.Stop()

	j := testJob("flaky", job.PriorityHigh)
	q.Enqueue(j)
	waitDrained(t, q)

	// Ran three times: high, then downgraded to medium, then low.
	if got := rec.drained(); len(got) != 3 {
		t.Fatalf("executed %d times, want 3", len(got))
	}
	if j.Status != job.StatusCompleted {
		t.Fatalf("status = %s, want completed", j.Status)
	}
	if j.Priority != job.PriorityLow {
		t.Fatalf("priority = %s, want low after two downgrades", j.Priority)
	}
	if j.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", j.RetryCount)
	}
}

func TestPermanentFailureAtMaxRetries(t *testing.T) {
	rec := newRecorder()
	rec.failures["doomed"] = 100

	q := New(rec.exec)
	defer q.Stop()

	j := testJob("doomed", job.PriorityMedium)
	j.MaxRetries = 2
	q.Enqueue(j)
	waitDrained(t, q)

	if j.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", j.Status)
	}
	if got := rec.drained(); len(got) != 2 {
		t.Fatalf("executed %d times, want exactly MaxRetries", len(got))
	}
	st := q.Stats()
	if st.ByStatus[job.StatusFailed] != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLowPriorityCannotDowngradeFurther(t *testing.T) {
	if got := job.PriorityLow.Downgrade(); got != job.PriorityLow {
		t.Fatalf("low downgraded to %s", got)
	}
	if got := job.PriorityHigh.Downgrade(); got != job.PriorityMedium {
		t.Fatalf("high downgraded to %s", got)
	}
	if got := job.PriorityMedium.Downgrade(); got != job.PriorityLow {
		t.Fatalf("medium downgraded to %s", got)
	}
}

func TestSetPriorityWhileQueued(t *testing.T) {
	rec := newRecorder()
	rec.started = make(chan struct{}, 10)
	rec.release = make(chan struct{})

	q := New(rec.exec)
	defer q.Stop()

	q.Enqueue(testJob("running", job.PriorityHigh))
	<-rec.started

	q.Enqueue(testJob("a", job.PriorityLow))
	q.Enqueue(testJob("b", job.PriorityLow))
	if err := q.SetPriority("b", job.PriorityHigh); err != nil {
		t.Fatal(err)
	}
	if err := q.SetPriority("missing", job.PriorityHigh); err == nil {
		t.Fatal("SetPriority on unknown job succeeded")
	}

	close(rec.release)
	for i := 0; i < 2; i++ {
		<-rec.started
	}
	waitDrained(t, q)

	got := rec.drained()
	want := []string{"running", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
}

func TestStats(t *testing.T) {
	rec := newRecorder()
	rec.started = make(chan struct{}, 10)
	rec.release = make(chan struct{})

	q := New(rec.exec)
	defer q.Stop()

	q.Enqueue(testJob("running", job.PriorityMedium))
	<-rec.started
	q.Enqueue(testJob("waiting-high", job.PriorityHigh))
	q.Enqueue(testJob("waiting-low", job.PriorityLow))

	st := q.Stats()
	if st.Depth != 2 {
		t.Fatalf("depth = %d, want 2", st.Depth)
	}
	if st.ByStatus[job.StatusProcessing] != 1 {
		t.Fatalf("processing = %d", st.ByStatus[job.StatusProcessing])
	}
	if st.ByPriority[job.PriorityHigh] != 1 || st.ByPriority[job.PriorityLow] != 1 {
		t.Fatalf("by priority = %v", st.ByPriority)
	}

	close(rec.release)
	for i := 0; i < 2; i++ {
		<-rec.started
	}
	waitDrained(t, q)

	st = q.Stats()
	if st.ByStatus[job.StatusCompleted] != 3 {
		t.Fatalf("completed = %d, want 3", st.ByStatus[job.StatusCompleted])
	}
}

func TestFIFOWithinTier(t *testing.T) {
	rec := newRecorder()
	rec.started = make(chan struct{}, 20)
	rec.release = make(chan struct{})

	q := New(rec.exec)
	defer q.Stop()

	q.Enqueue(testJob("running", job.PriorityHigh))
	<-rec.started
	for i := 0; i < 5; i++ {
		q.Enqueue(testJob(fmt.Sprintf("m%d", i), job.PriorityMedium))
		time.Sleep(time.Millisecond)
	}
	close(rec.release)
	for i := 0; i < 5; i++ {
		<-rec.started
	}
	waitDrained(t, q)

	got := rec.drained()[1:]
	for i := 0; i < 5; i++ {
		if got[i] != fmt.Sprintf("m%d", i) {
			t.Fatalf("same-tier order broken: %v", got)
		}
	}
}
