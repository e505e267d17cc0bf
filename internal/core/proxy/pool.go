package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"harvester/internal/logger"
)

// ErrNoProxyAvailable is returned once every active endpoint has been
// tried and charged a failure within a single selection call.
var ErrNoProxyAvailable = errors.New("no proxy available")

// Endpoint is a single egress proxy. The pool owns all endpoint state;
// callers receive copies.
type Endpoint struct {
	Host        string    `json:"host" yaml:"host"`
	Port        int       `json:"port" yaml:"port"`
	Protocol    string    `json:"protocol" yaml:"protocol"`
	Username    string    `json:"username,omitempty" yaml:"username"`
	Password    string    `json:"-" yaml:"password"`
	Country     string    `json:"country,omitempty" yaml:"country"`
	SuccessRate float64   `json:"success_rate"`
	Active      bool      `json:"active"`
	LastUsed    time.Time `json:"last_used,omitempty"`
}

// ID identifies an endpoint across the registry and the failure table.
func (e Endpoint) ID() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// URL renders the endpoint as a proxy URL usable by the browser engine.
func (e Endpoint) URL() string {
	if e.Username != "" {
		return fmt.Sprintf("%s://%s@%s:%d", e.Protocol, url.UserPassword(e.Username, e.Password).String(), e.Host, e.Port)
	}
	return fmt.Sprintf("%s://%s:%d", e.Protocol, e.Host, e.Port)
}

type failureRecord struct {
	count         int
	cooldownUntil time.Time
}

// ProbeFunc checks that an endpoint can reach the outside world.
type ProbeFunc func(ctx context.Context, e Endpoint) error

type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	ProbeTimeout     time.Duration
	ProbeURL         string
}

// Pool is a rotating registry of egress endpoints with per-endpoint
// failure tracking and circuit-breaking.
type Pool struct {
	log   *logger.Logger
	cfg   Config
	probe ProbeFunc

	mu        sync.Mutex
	endpoints []*Endpoint
	failures  map[string]*failureRecord
	cursor    int
	now       func() time.Time
}

func NewPool(cfg Config, probe ProbeFunc) *Pool {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	p := &Pool{
		log:      logger.New("ProxyPool"),
		cfg:      cfg,
		failures: make(map[string]*failureRecord),
		now:      time.Now,
	}
	if probe == nil {
		probe = p.httpProbe
	}
	p.probe = probe
	return p
}

// Add registers an endpoint after validating it. New endpoints start
// active with a neutral success rate.
func (p *Pool) Add(e Endpoint) error {
	if e.Host == "" {
		return fmt.Errorf("proxy host is required")
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("invalid proxy port: %d", e.Port)
	}
	switch e.Protocol {
	case "http", "https", "socks5":
	default:
		return fmt.Errorf("unsupported proxy protocol: %q", e.Protocol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.endpoints {
		if existing.ID() == e.ID() {
			return fmt.Errorf("proxy %s already registered", e.ID())
		}
	}
	e.Active = true
	if e.SuccessRate == 0 {
		e.SuccessRate = 50
	}
	p.endpoints = append(p.endpoints, &e)
	p.log.LogInfof("registered proxy %s (%s)", e.ID(), e.Protocol)
	return nil
}

func (p *Pool) Remove(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.endpoints {
		if e.ID() == id {
			p.endpoints = append(p.endpoints[:i], p.endpoints[i+1:]...)
			delete(p.failures, id)
			return nil
		}
	}
	return fmt.Errorf("proxy %s not found", id)
}

func (p *Pool) List() []Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Endpoint, 0, len(p.endpoints))
	for _, e := range p.endpoints {
		out = append(out, *e)
	}
	return out
}

// Next returns the next usable endpoint in round-robin order, probing each
// candidate before handing it out. A candidate that fails its probe is
// charged a failure and the next one is tried; the call fails only after
// every eligible endpoint has been exhausted.
func (p *Pool) Next(ctx context.Context) (Endpoint, error) {
	return p.next(ctx, "")
}

// ByCountry restricts rotation to endpoints with the given country tag.
func (p *Pool) ByCountry(ctx context.Context, country string) (Endpoint, error) {
	return p.next(ctx, country)
}

func (p *Pool) next(ctx context.Context, country string) (Endpoint, error) {
	candidates := p.eligible(country)
	if len(candidates) == 0 {
		return Endpoint{}, ErrNoProxyAvailable
	}

	for _, candidate := range candidates {
		if err := p.probeWithTimeout(ctx, candidate); err != nil {
			p.log.LogWarnf("probe failed for %s: %v", candidate.ID(), err)
			p.adjustRate(candidate.ID(), false)
			p.MarkFailed(candidate.ID())
			continue
		}
		p.adjustRate(candidate.ID(), true)
		return p.checkout(candidate.ID())
	}
	return Endpoint{}, ErrNoProxyAvailable
}

// eligible snapshots the endpoints worth trying this call, in round-robin
// order starting past the last one handed out. An inactive endpoint whose
// cooldown has elapsed is eligible for retrial; its failure count stays
// until ClearFailures.
func (p *Pool) eligible(country string) []Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	out := make([]Endpoint, 0, n)
	for i := 0; i < n; i++ {
		e := p.endpoints[(p.cursor+i)%n]
		if country != "" && e.Country != country {
			continue
		}
		rec := p.failures[e.ID()]
		if rec != nil && p.now().Before(rec.cooldownUntil) {
			continue
		}
		if !e.Active && rec != nil && !p.now().Before(rec.cooldownUntil) {
			// Cooled down: allowed back into rotation for a retrial.
			out = append(out, *e)
			continue
		}
		if e.Active {
			out = append(out, *e)
		}
	}
	return out
}

func (p *Pool) probeWithTimeout(ctx context.Context, e Endpoint) error {
	timeout := p.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.probe(probeCtx, e)
}

// httpProbe is the default liveness check: a lightweight GET through the
// endpoint.
func (p *Pool) httpProbe(ctx context.Context, e Endpoint) error {
	proxyURL, err := url.Parse(e.URL())
	if err != nil {
		return fmt.Errorf("proxy url: %w", err)
	}
	client := &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
	target := p.cfg.ProbeURL
	if target == "" {
		target = "https://httpbin.org/ip"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	return nil
}

// adjustRate applies the rolling success-rate policy: +5 on success, -10
// on failure, clamped to [0,100].
func (p *Pool) adjustRate(id string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.endpoints {
		if e.ID() != id {
			continue
		}
		if success {
			e.SuccessRate += 5
		} else {
			e.SuccessRate -= 10
		}
		if e.SuccessRate > 100 {
			e.SuccessRate = 100
		}
		if e.SuccessRate < 0 {
			e.SuccessRate = 0
		}
		return
	}
}

// checkout marks the endpoint used, reactivates it if it was in a cooled
// down retrial, and advances the rotation cursor.
func (p *Pool) checkout(id string) (Endpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.endpoints {
		if e.ID() != id {
			continue
		}
		e.LastUsed = p.now()
		e.Active = true
		p.cursor = (i + 1) % len(p.endpoints)
		return *e, nil
	}
	return Endpoint{}, fmt.Errorf("proxy %s not found", id)
}

// MarkFailed charges one failure against the endpoint. Reaching the
// threshold deactivates it and starts its cooldown window.
func (p *Pool) MarkFailed(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.failures[id]
	if rec == nil {
		rec = &failureRecord{}
		p.failures[id] = rec
	}
	rec.count++
	if rec.count < p.cfg.FailureThreshold {
		return
	}
	rec.cooldownUntil = p.now().Add(p.cfg.Cooldown)
	for _, e := range p.endpoints {
		if e.ID() == id {
			e.Active = false
			p.log.LogWarnf("proxy %s deactivated after %d failures, cooldown until %s", id, rec.count, rec.cooldownUntil.Format(time.RFC3339))
			return
		}
	}
}

// FailureCount reports the accumulated failures for an endpoint.
func (p *Pool) FailureCount(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec := p.failures[id]; rec != nil {
		return rec.count
	}
	return 0
}

// ClearFailures wipes the failure table. Deactivated endpoints become
// immediately eligible again.
func (p *Pool) ClearFailures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = make(map[string]*failureRecord)
	for _, e := range p.endpoints {
		e.Active = true
	}
	p.log.LogInfo("cleared proxy failure table")
}
