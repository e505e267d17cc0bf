package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/platforms"
	"harvester/internal/core/ratelimit"
	"harvester/internal/core/strategy"
	"harvester/internal/logger"
	tasks "harvester/internal/platform/tasks"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskTypeScrape = "scrape:listing"

type Handler struct {
	log   *logger.Logger
	svc   *Service
	jobs  *job.Service
	tasks *tasks.Client
}

func NewHandler(svc *Service, jobs *job.Service, tasks *tasks.Client) *Handler {
	return &Handler{log: logger.New("ScrapeHandler"), svc: svc, jobs: jobs, tasks: tasks}
}

type scrapeRequest struct {
	URL      string             `json:"url"`
	Query    string             `json:"query"`
	Platform platforms.Platform `json:"platform"`
	Priority job.Priority       `json:"priority"`
	Options  job.Options        `json:"options"`
}

func (r scrapeRequest) toJob() (job.Job, error) {
	if !platforms.Valid(r.Platform) {
		return job.Job{}, fmt.Errorf("platform must be one of %v", platforms.All())
	}
	if r.URL == "" && r.Query == "" {
		return job.Job{}, fmt.Errorf("url or query is required")
	}
	priority := r.Priority
	if priority == "" {
		priority = job.PriorityMedium
	}
	return job.Job{
		ID:         uuid.NewString(),
		URL:        r.URL,
		Query:      r.Query,
		Platform:   r.Platform,
		Priority:   priority,
		MaxRetries: r.Options.MaxRetries,
		Status:     job.StatusPending,
		CreatedAt:  time.Now(),
		Options:    r.Options,
	}, nil
}

// HandleScrape runs a scrape synchronously and maps the failure kind onto
// an HTTP status.
func (h *Handler) HandleScrape(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	j, err := req.toJob()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	res, err := h.svc.Scrape(c.Context(), j, j.Options)
	if err != nil {
		return c.Status(statusFor(err)).JSON(res)
	}
	return c.JSON(res)
}

func statusFor(err error) int {
	if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
		return fiber.StatusTooManyRequests
	}
	switch strategy.Classify(err) {
	case strategy.FailureRateLimit:
		return fiber.StatusTooManyRequests
	case strategy.FailureNotFound:
		return fiber.StatusNotFound
	case strategy.FailureValidation:
		return fiber.StatusUnprocessableEntity
	case strategy.FailureProxy, strategy.FailureNetwork:
		return fiber.StatusBadGateway
	case strategy.FailureTimeout:
		return fiber.StatusRequestTimeout
	case strategy.FailureBlocked, strategy.FailureCaptcha:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// HandleCreateJob accepts an async submission: the job is parked in redis
// as pending and handed to the worker through asynq.
func (h *Handler) HandleCreateJob(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	j, err := req.toJob()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	if err := h.jobs.InitPending(c.Context(), j); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	payload, err := json.Marshal(j)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	if err := h.tasks.Enqueue(asynq.NewTask(TaskTypeScrape, payload), "default", 0); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": j.ID, "status": job.StatusPending})
}

func (h *Handler) HandleGetJob(c *fiber.Ctx) error {
	stored, err := h.jobs.Get(c.Context(), c.Params("jobId"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(stored)
}

// HandleScrapeTask is the asynq worker entry point. Retry policy lives in
// the strategy selector, so the task itself never asks asynq to retry.
func (h *Handler) HandleScrapeTask(ctx context.Context, t *asynq.Task) error {
	var j job.Job
	if err := json.Unmarshal(t.Payload(), &j); err != nil {
		return fmt.Errorf("decode scrape task: %w", err)
	}

	if err := h.jobs.SetProcessing(ctx, j); err != nil {
		h.log.LogWarnf("could not mark job %s processing: %v", j.ID, err)
	}

	res, err := h.svc.Scrape(ctx, j, j.Options)
	if err != nil {
		h.log.LogErrorf("job %s failed: %v", j.ID, err)
	}
	if storeErr := h.jobs.Complete(ctx, j, res); storeErr != nil {
		h.log.LogErrorf("could not store result for job %s: %v", j.ID, storeErr)
		return storeErr
	}
	return nil
}
