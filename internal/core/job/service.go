package job

import (
	"context"
	"fmt"

	rds "harvester/internal/platform/redis"
)

// Service persists job status and terminal results in redis so API
// callers can poll asynchronous submissions.
type Service struct{ redis *rds.Service }

func NewService(redis *rds.Service) *Service { return &Service{redis: redis} }

// Stored is the redis representation of a submitted job.
type Stored struct {
	Job    Job     `json:"job"`
	Result *Result `json:"result,omitempty"`
}

func (s *Service) Get(ctx context.Context, jobID string) (*Stored, error) {
	var stored Stored
	if err := s.redis.CacheGet(ctx, key(jobID), &stored); err != nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	return &stored, nil
}

func (s *Service) InitPending(ctx context.Context, j Job) error {
	j.Status = StatusPending
	return s.store(ctx, Stored{Job: j})
}

func (s *Service) SetProcessing(ctx context.Context, j Job) error {
	j.Status = StatusProcessing
	return s.store(ctx, Stored{Job: j})
}

// Complete records the terminal status along with the scrape result.
func (s *Service) Complete(ctx context.Context, j Job, result *Result) error {
	if result != nil && result.Success {
		j.Status = StatusCompleted
	} else {
		j.Status = StatusFailed
	}
	return s.store(ctx, Stored{Job: j, Result: result})
}

func (s *Service) store(ctx context.Context, stored Stored) error {
	if err := s.redis.CacheSet(ctx, key(stored.Job.ID), stored, ttl(stored.Job.Status)); err != nil {
		return err
	}
	// Nudge any pollers subscribed to this job's channel.
	_ = s.redis.Client().Publish(ctx, key(stored.Job.ID), "updated").Err()
	return nil
}

func key(id string) string { return "job:" + id }

func ttl(s Status) int {
	if s == StatusCompleted || s == StatusFailed {
		return 3600
	}
	return 600
}
