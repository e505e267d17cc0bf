package job

import (
	"time"

	"harvester/internal/core/platforms"
)

// Priority orders backlog jobs.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank maps a priority to its numeric order, higher first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Downgrade drops the priority by exactly one tier; low stays low.
func (p Priority) Downgrade() Priority {
	switch p {
	case PriorityHigh:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Status tracks a job's lifecycle; completed and failed are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Options tune a single scrape. SimulateHuman defaults to on; it is a
// pointer so an absent field is distinguishable from an explicit false.
type Options struct {
	Strategy      string `json:"strategy,omitempty"`
	UseProxy      bool   `json:"use_proxy,omitempty"`
	SimulateHuman *bool  `json:"simulate_human,omitempty"`
	MaxRetries    int    `json:"max_retries,omitempty"`
}

// Human reports whether human-behavior simulation is enabled.
func (o Options) Human() bool {
	return o.SimulateHuman == nil || *o.SimulateHuman
}

// Job is one scraping work item: a target listing URL or a search query
// against a marketplace.
type Job struct {
	ID         string             `json:"id"`
	URL        string             `json:"url,omitempty"`
	Query      string             `json:"query,omitempty"`
	Platform   platforms.Platform `json:"platform"`
	Priority   Priority           `json:"priority"`
	RetryCount int                `json:"retry_count"`
	MaxRetries int                `json:"max_retries"`
	Status     Status             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	EnqueuedAt time.Time          `json:"enqueued_at,omitempty"`
	Options    Options            `json:"options"`
}

// Result is what a scrape call hands back to the outside world.
type Result struct {
	Success       bool                   `json:"success"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Confidence    int                    `json:"confidence"`
	Quality       string                 `json:"quality,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`
	ExecutionTime int64                  `json:"execution_time_ms"`
	Strategy      string                 `json:"strategy,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	ProxyUsed     string                 `json:"proxy_used,omitempty"`
}
