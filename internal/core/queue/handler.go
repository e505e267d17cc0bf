package queue

import (
	"fmt"
	"time"

	"harvester/internal/core/job"
	"harvester/internal/core/platforms"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handler struct{ queue *Queue }

func NewHandler(queue *Queue) *Handler { return &Handler{queue: queue} }

type enqueueRequest struct {
	URL        string             `json:"url"`
	Query      string             `json:"query"`
	Platform   platforms.Platform `json:"platform"`
	Priority   job.Priority       `json:"priority"`
	MaxRetries int                `json:"max_retries"`
	Options    job.Options        `json:"options"`
}

func (h *Handler) HandleEnqueue(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	if !platforms.Valid(req.Platform) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": fmt.Sprintf("platform must be one of %v", platforms.All())})
	}
	if req.URL == "" && req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "url or query is required"})
	}
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	j := &job.Job{
		ID:         uuid.NewString(),
		URL:        req.URL,
		Query:      req.Query,
		Platform:   req.Platform,
		Priority:   req.Priority,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now(),
		Options:    req.Options,
	}
	h.queue.Enqueue(j)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": j.ID, "priority": j.Priority})
}

func (h *Handler) HandleStats(c *fiber.Ctx) error {
	return c.JSON(h.queue.Stats())
}

type priorityRequest struct {
	Priority job.Priority `json:"priority"`
}

func (h *Handler) HandleSetPriority(c *fiber.Ctx) error {
	var req priorityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "invalid request body"})
	}
	switch req.Priority {
	case job.PriorityHigh, job.PriorityMedium, job.PriorityLow:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "priority must be high, medium or low"})
	}
	if err := h.queue.SetPriority(c.Params("jobId"), req.Priority); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}
