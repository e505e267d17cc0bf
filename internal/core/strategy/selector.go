package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"harvester/internal/logger"
)

// alpha is the smoothing factor for the exponentially-weighted success
// rate: recent outcomes weigh in at 10%.
const alpha = 0.1

// Strategy is a named bundle of evasion techniques attempted as a unit.
// Config is opaque to the selector; the orchestrator reads the knobs it
// understands.
type Strategy struct {
	Name        string                 `json:"name" yaml:"name"`
	Priority    int                    `json:"priority" yaml:"priority"`
	SuccessRate float64                `json:"success_rate" yaml:"success_rate"`
	Enabled     bool                   `json:"enabled" yaml:"enabled"`
	LastUsed    time.Time              `json:"last_used,omitempty" yaml:"-"`
	Config      map[string]interface{} `json:"config,omitempty" yaml:"config"`
}

// DefaultStrategies returns the built-in evasion set in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name:        "stealth",
			Priority:    3,
			SuccessRate: 50,
			Enabled:     true,
			Config:      map[string]interface{}{"stealth_overrides": true},
		},
		{
			Name:        "mobile",
			Priority:    2,
			SuccessRate: 50,
			Enabled:     true,
			Config:      map[string]interface{}{"stealth_overrides": true, "device_emulation": true},
		},
		{
			Name:        "api_interception",
			Priority:    1,
			SuccessRate: 50,
			Enabled:     true,
			Config:      map[string]interface{}{"stealth_overrides": true, "extract_from_state": true},
		},
	}
}

type failureEvent struct {
	Strategy string
	Kind     FailureKind
	At       time.Time
}

// Selector keeps the strategy registry, tracks how well each strategy has
// been doing, and runs the generic retry-with-backoff executor.
type Selector struct {
	log *logger.Logger

	mu         sync.Mutex
	strategies map[string]*Strategy
	failures   []failureEvent
	backoff    time.Duration
	now        func() time.Time
}

func NewSelector(strategies []Strategy) *Selector {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	s := &Selector{
		log:        logger.New("StrategySelector"),
		strategies: make(map[string]*Strategy, len(strategies)),
		backoff:    time.Second,
		now:        time.Now,
	}
	for i := range strategies {
		st := strategies[i]
		s.strategies[st.Name] = &st
	}
	return s
}

// SetBackoff replaces the base retry backoff. Attempt n sleeps
// backoff*2^n before the next strategy is tried.
func (s *Selector) SetBackoff(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.backoff = d
	}
}

// Register adds or replaces a strategy. Strategies are never deleted,
// only disabled.
func (s *Selector) Register(st Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategies[st.Name] = &st
}

func (s *Selector) Get(name string) (Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.strategies[name]
	if !ok {
		return Strategy{}, fmt.Errorf("unknown strategy: %s", name)
	}
	return *st, nil
}

// List returns all strategies sorted by (priority, success rate)
// descending.
func (s *Selector) List() []Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(false)
}

// Enabled returns only the enabled strategies in selection order.
func (s *Selector) Enabled() []Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(true)
}

func (s *Selector) sortedLocked(enabledOnly bool) []Strategy {
	out := make([]Strategy, 0, len(s.strategies))
	for _, st := range s.strategies {
		if enabledOnly && !st.Enabled {
			continue
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate > out[j].SuccessRate
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// SelectForAttempt picks the strategy for a 1-based attempt number:
// attempt 1 takes the top of the order, later attempts cycle through the
// sorted list.
func (s *Selector) SelectForAttempt(attempt int) (Strategy, error) {
	enabled := s.Enabled()
	if len(enabled) == 0 {
		return Strategy{}, fmt.Errorf("no enabled strategies")
	}
	if attempt < 1 {
		attempt = 1
	}
	return enabled[(attempt-1)%len(enabled)], nil
}

// RecordSuccess folds a successful outcome into the strategy's smoothed
// success rate.
func (s *Selector) RecordSuccess(name string) { s.recordOutcome(name, true) }

// RecordFailure classifies the failure, records it, and folds the bad
// outcome into the success rate.
func (s *Selector) RecordFailure(name string, err error) FailureKind {
	kind := Classify(err)
	s.mu.Lock()
	s.failures = append(s.failures, failureEvent{Strategy: name, Kind: kind, At: s.now()})
	if len(s.failures) > 200 {
		s.failures = s.failures[len(s.failures)-200:]
	}
	s.mu.Unlock()
	s.recordOutcome(name, false)
	return kind
}

func (s *Selector) recordOutcome(name string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.strategies[name]
	if !ok {
		return
	}
	outcome := 0.0
	if success {
		outcome = 100
	}
	st.SuccessRate = st.SuccessRate*(1-alpha) + outcome*alpha
	if st.SuccessRate > 100 {
		st.SuccessRate = 100
	}
	if st.SuccessRate < 0 {
		st.SuccessRate = 0
	}
	st.LastUsed = s.now()
}

// FailureStats aggregates recorded failures by kind.
func (s *Selector) FailureStats() map[FailureKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[FailureKind]int)
	for _, f := range s.failures {
		out[f.Kind]++
	}
	return out
}

// ExhaustedError aggregates a full retry run that never succeeded.
type ExhaustedError struct {
	Attempts int
	LastKind FailureKind
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d strategy attempts exhausted (last failure: %s): %v", e.Attempts, e.LastKind, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Operation is one strategy-scoped attempt at the caller's work.
type Operation func(ctx context.Context, st Strategy) error

// ExecuteWithRetry runs the operation up to maxRetries times, selecting
// the strategy for each attempt, recording outcomes, and sleeping
// 2^attempt seconds between attempts. The error returned after exhaustion
// aggregates the run rather than surfacing any single attempt's failure.
func (s *Selector) ExecuteWithRetry(ctx context.Context, op Operation, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	// Snapshot the order once for the whole run. Recording an outcome
	// changes success rates, and cycling over a freshly re-sorted list
	// could revisit one strategy while never reaching another.
	enabled := s.Enabled()
	if len(enabled) == 0 {
		return fmt.Errorf("no enabled strategies")
	}
	s.mu.Lock()
	backoff := s.backoff
	s.mu.Unlock()

	var lastErr error
	var lastKind FailureKind
	attempts := 0

	for attempt := 1; attempt <= maxRetries; attempt++ {
		st := enabled[(attempt-1)%len(enabled)]
		attempts++

		if err := op(ctx, st); err == nil {
			s.RecordSuccess(st.Name)
			return nil
		} else {
			lastErr = err
			lastKind = s.RecordFailure(st.Name, err)
			s.log.LogWarnf("strategy %s failed attempt %d/%d (%s): %v", st.Name, attempt, maxRetries, lastKind, err)
		}

		if attempt < maxRetries {
			wait := backoff * (1 << attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return &ExhaustedError{Attempts: attempts, LastKind: lastKind, Last: lastErr}
}

// DisableLowPerforming disables every enabled strategy whose success rate
// sits below the threshold. Meant to be run from a maintenance loop, not
// from the retry path.
func (s *Selector) DisableLowPerforming(threshold float64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var disabled []string
	for _, st := range s.strategies {
		if st.Enabled && st.SuccessRate < threshold {
			st.Enabled = false
			disabled = append(disabled, st.Name)
		}
	}
	if len(disabled) > 0 {
		s.log.LogWarnf("disabled low-performing strategies: %v", disabled)
	}
	return disabled
}

// ReenableAfterCooldown re-enables disabled strategies that have sat idle
// for at least the cooldown, giving them a fresh neutral rate.
func (s *Selector) ReenableAfterCooldown(cooldown time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var enabled []string
	cutoff := s.now().Add(-cooldown)
	for _, st := range s.strategies {
		if !st.Enabled && st.LastUsed.Before(cutoff) {
			st.Enabled = true
			st.SuccessRate = 50
			enabled = append(enabled, st.Name)
		}
	}
	if len(enabled) > 0 {
		s.log.LogInfof("re-enabled strategies after cooldown: %v", enabled)
	}
	return enabled
}
