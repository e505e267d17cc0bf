package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"harvester/internal/core/behavior"
	"harvester/internal/core/device"
	"harvester/internal/core/job"
	"harvester/internal/core/platforms"
	"harvester/internal/core/proxy"
	"harvester/internal/core/ratelimit"
	"harvester/internal/core/session"
	"harvester/internal/core/strategy"
	"harvester/internal/core/validate"
	"harvester/internal/logger"
	"harvester/internal/platform/browser"
)

// stealthOverrides is the baseline anti-fingerprint script pushed before
// navigation. It is data, not behavior: strategies toggle it through
// their config, and updating it touches nothing else.
const stealthOverrides = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	window.chrome = window.chrome || { runtime: {} };
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4] });
	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications'
			? Promise.resolve({ state: Notification.permission })
			: originalQuery(parameters)
	);
`

type Deps struct {
	Engine    browser.Engine
	Limiter   *ratelimit.Limiter
	Proxies   *proxy.Pool
	Sessions  *session.Manager
	Devices   *device.Registry
	Behavior  *behavior.Synthesizer
	Validator *validate.Validator
	Selector  *strategy.Selector
}

// Service composes the scraping subsystem into a single scrape(job)
// operation.
type Service struct {
	log        *logger.Logger
	engine     browser.Engine
	limiter    *ratelimit.Limiter
	proxies    *proxy.Pool
	sessions   *session.Manager
	devices    *device.Registry
	behavior   *behavior.Synthesizer
	validator  *validate.Validator
	selector   *strategy.Selector
	navTimeout time.Duration
}

func New(deps Deps) *Service {
	return &Service{
		log:        logger.New("Orchestrator"),
		engine:     deps.Engine,
		limiter:    deps.Limiter,
		proxies:    deps.Proxies,
		sessions:   deps.Sessions,
		devices:    deps.Devices,
		behavior:   deps.Behavior,
		validator:  deps.Validator,
		selector:   deps.Selector,
		navTimeout: 15 * time.Second,
	}
}

// Scrape runs one job to completion: reserve a rate-limiter slot, pick a
// proxy and session, then walk the strategy order until one attempt
// survives validation. Per-attempt failures feed the strategy selector
// and the proxy pool; the caller only ever sees the aggregated outcome.
// The returned result is always non-nil.
func (s *Service) Scrape(ctx context.Context, j job.Job, opts job.Options) (*job.Result, error) {
	start := time.Now()
	res := &job.Result{}
	fail := func(err error) (*job.Result, error) {
		res.Success = false
		res.Error = err.Error()
		res.ExecutionTime = time.Since(start).Milliseconds()
		return res, err
	}

	target, err := s.targetURL(j)
	if err != nil {
		return fail(err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		s.log.LogWarnf("job %s rejected: %v", j.ID, err)
		return fail(err)
	}
	defer s.limiter.Release()

	var proxyURL string
	if opts.UseProxy {
		endpoint, err := s.proxies.Next(ctx)
		if err != nil {
			return fail(fmt.Errorf("proxy selection: %w", err))
		}
		proxyURL = endpoint.URL()
		res.ProxyUsed = endpoint.ID()
	}

	sess := s.sessions.Create(j.Platform)
	res.SessionID = sess.ID

	op := func(ctx context.Context, st strategy.Strategy) error {
		err := s.attempt(ctx, target, j.Platform, st, sess, proxyURL, opts, res)
		if err != nil && res.ProxyUsed != "" {
			if kind := strategy.Classify(err); kind == strategy.FailureProxy || kind == strategy.FailureNetwork {
				s.proxies.MarkFailed(res.ProxyUsed)
			}
		}
		return err
	}

	if opts.Strategy != "" {
		// Caller pinned a strategy: one attempt, no fallback.
		st, err := s.selector.Get(opts.Strategy)
		if err != nil {
			return fail(err)
		}
		if err := op(ctx, st); err != nil {
			s.selector.RecordFailure(st.Name, err)
			return fail(fmt.Errorf("strategy %s failed: %w", st.Name, err))
		}
		s.selector.RecordSuccess(st.Name)
	} else {
		attempts := len(s.selector.Enabled())
		if opts.MaxRetries > 0 && opts.MaxRetries < attempts {
			attempts = opts.MaxRetries
		}
		// attempts never exceeds the enabled strategy count, so the
		// cycling selection rule visits each strategy at most once.
		if err := s.selector.ExecuteWithRetry(ctx, op, attempts); err != nil {
			return fail(err)
		}
	}

	res.Success = true
	res.ExecutionTime = time.Since(start).Milliseconds()
	s.log.LogSuccessf("job %s scraped via %s (confidence %d) in %dms", j.ID, res.Strategy, res.Confidence, res.ExecutionTime)
	return res, nil
}

func (s *Service) targetURL(j job.Job) (string, error) {
	if !platforms.Valid(j.Platform) {
		return "", fmt.Errorf("unsupported platform: %s", j.Platform)
	}
	if j.URL != "" {
		return j.URL, nil
	}
	if j.Query != "" {
		return platforms.SearchURL(j.Platform, j.Query)
	}
	return "", fmt.Errorf("job needs a url or a query")
}

// attempt is one strategy-scoped pass: open a page, dress it up, navigate,
// extract, validate. On success it fills the result in place.
func (s *Service) attempt(ctx context.Context, target string, platform platforms.Platform, st strategy.Strategy, sess session.Session, proxyURL string, opts job.Options, res *job.Result) error {
	page, err := s.engine.OpenPage(ctx, browser.PageOptions{ProxyURL: proxyURL})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if boolConfig(st, "stealth_overrides") {
		page.InjectPreNavigationOverrides(stealthOverrides)
	}

	viewport := browser.Viewport{Width: 1366, Height: 768}
	if boolConfig(st, "device_emulation") {
		profile := s.devices.Random()
		device.Apply(page, profile)
		viewport = profile.Viewport
		s.log.LogDebugf("emulating %s for strategy %s", profile.Name, st.Name)
	} else {
		page.SetUserAgent(sess.UserAgent)
		page.SetHeaders(map[string]string{"Accept-Language": "en-US,en;q=0.9"})
	}

	if updated, err := s.sessions.Touch(sess.ID); err == nil {
		sess = updated
	}

	if err := page.Navigate(ctx, target, s.navTimeout); err != nil {
		return err
	}

	if html, err := page.Content(ctx); err == nil {
		if err := detectInterstitial(html); err != nil {
			return err
		}
	}

	if opts.Human() {
		if err := s.behavior.MouseTrail(ctx, page, viewport); err != nil {
			return fmt.Errorf("behavior: %w", err)
		}
		if err := s.behavior.ScrollSequence(ctx, page); err != nil {
			return fmt.Errorf("behavior: %w", err)
		}
	}

	script := platforms.ExtractionScript(platform, boolConfig(st, "extract_from_state"))
	raw, err := page.RunQuery(ctx, script)
	if err != nil {
		return err
	}

	listing := validate.ParseRaw(raw)
	verdict := s.validator.Validate(listing)
	if !verdict.Valid {
		return fmt.Errorf("validation failed: %s", strings.Join(verdict.Errors, "; "))
	}

	res.Data = raw
	res.Confidence = verdict.Confidence
	res.Quality = verdict.Quality
	res.Warnings = verdict.Warnings
	res.Strategy = st.Name
	return nil
}

func boolConfig(st strategy.Strategy, key string) bool {
	v, ok := st.Config[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
