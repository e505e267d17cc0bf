package worker

import (
	"context"
	"time"

	"harvester/internal/logger"

	"github.com/hibiken/asynq"
)

// Mux registers task handlers for the background scrape worker and logs
// every task's duration and outcome.
type Mux struct {
	log *logger.Logger
	mux *asynq.ServeMux
}

func NewMux() *Mux {
	return &Mux{log: logger.New("Worker"), mux: asynq.NewServeMux()}
}

func (m *Mux) HandleFunc(taskType string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		start := time.Now()
		if err := h(ctx, t); err != nil {
			m.log.LogErrorf("task %s failed after %s: %v", t.Type(), time.Since(start), err)
			return err
		}
		m.log.LogDebugf("task %s done in %s", t.Type(), time.Since(start))
		return nil
	})
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }
