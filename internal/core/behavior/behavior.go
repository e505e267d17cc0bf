package behavior

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"harvester/internal/logger"
	"harvester/internal/platform/browser"
)

// Range is an inclusive [Min,Max] bound a random value is drawn from.
// Every pause and magnitude in this package comes from a Range; there are
// no fixed delays anywhere.
type Range struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

type Config struct {
	MouseWaypoints   Range   `yaml:"mouse_waypoints"`
	MouseSmoothing   Range   `yaml:"mouse_smoothing"`
	MouseDelayMs     Range   `yaml:"mouse_delay_ms"`
	ScrollSteps      Range   `yaml:"scroll_steps"`
	ScrollAmount     Range   `yaml:"scroll_amount"`
	ScrollDelayMs    Range   `yaml:"scroll_delay_ms"`
	ReadingPauseMs   Range   `yaml:"reading_pause_ms"`
	TypeDelayMs      Range   `yaml:"type_delay_ms"`
	ReverseScrollPct int     `yaml:"reverse_scroll_pct"`
	ReadingPausePct  int     `yaml:"reading_pause_pct"`
	TypoPct          int     `yaml:"typo_pct"`
	WordsPerMinute   int     `yaml:"words_per_minute"`
}

func DefaultConfig() Config {
	return Config{
		MouseWaypoints:   Range{Min: 5, Max: 12},
		MouseSmoothing:   Range{Min: 2, Max: 4},
		MouseDelayMs:     Range{Min: 30, Max: 120},
		ScrollSteps:      Range{Min: 2, Max: 5},
		ScrollAmount:     Range{Min: 200, Max: 700},
		ScrollDelayMs:    Range{Min: 400, Max: 1500},
		ReadingPauseMs:   Range{Min: 2000, Max: 5000},
		TypeDelayMs:      Range{Min: 60, Max: 220},
		ReverseScrollPct: 20,
		ReadingPausePct:  25,
		TypoPct:          6,
		WordsPerMinute:   220,
	}
}

// Synthesizer plays human-like interaction traces against a page.
type Synthesizer struct {
	log *logger.Logger
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

func New(cfg Config) *Synthesizer {
	return &Synthesizer{
		log: logger.New("Behavior"),
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Synthesizer) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

func (s *Synthesizer) draw(r Range) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + s.intn(r.Max-r.Min+1)
}

func (s *Synthesizer) pause(ctx context.Context, r Range) error {
	d := time.Duration(s.draw(r)) * time.Millisecond
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// MouseTrail moves the pointer through a randomized set of waypoints,
// interpolating intermediate points so no leg is perfectly linear.
func (s *Synthesizer) MouseTrail(ctx context.Context, page browser.Page, vp browser.Viewport) error {
	width, height := float64(vp.Width), float64(vp.Height)
	if width == 0 || height == 0 {
		width, height = 1280, 800
	}

	waypoints := s.draw(s.cfg.MouseWaypoints)
	x, y := width/2, height/2
	for i := 0; i < waypoints; i++ {
		nx := float64(s.intn(int(width)))
		ny := float64(s.intn(int(height)))

		steps := s.draw(s.cfg.MouseSmoothing)
		for step := 1; step <= steps; step++ {
			t := float64(step) / float64(steps+1)
			// Midpoints get a small perpendicular wobble.
			jitterX := float64(s.intn(21) - 10)
			jitterY := float64(s.intn(21) - 10)
			if err := page.MoveMouse(x+(nx-x)*t+jitterX, y+(ny-y)*t+jitterY); err != nil {
				return err
			}
		}
		if err := page.MoveMouse(nx, ny); err != nil {
			return err
		}
		x, y = nx, ny

		if err := s.pause(ctx, s.cfg.MouseDelayMs); err != nil {
			return err
		}
	}
	return nil
}

// ScrollSequence scrolls the page in a few random-magnitude steps, with an
// occasional reverse step and an occasional long pause, the way a person
// skims and re-reads.
func (s *Synthesizer) ScrollSequence(ctx context.Context, page browser.Page) error {
	steps := s.draw(s.cfg.ScrollSteps)
	for i := 0; i < steps; i++ {
		amount := float64(s.draw(s.cfg.ScrollAmount))
		if s.intn(100) < s.cfg.ReverseScrollPct {
			amount = -amount / 2
		}
		if err := page.Scroll(amount); err != nil {
			return err
		}

		pauseRange := s.cfg.ScrollDelayMs
		if s.intn(100) < s.cfg.ReadingPausePct {
			pauseRange = s.cfg.ReadingPauseMs
		}
		if err := s.pause(ctx, pauseRange); err != nil {
			return err
		}
	}
	return nil
}

// TypeInto fills a form field with randomized per-character cadence and a
// small chance of typing a wrong character and correcting it.
func (s *Synthesizer) TypeInto(ctx context.Context, page browser.Page, selector, text string) error {
	if err := page.Click(selector); err != nil {
		return err
	}
	for _, ch := range text {
		if s.intn(100) < s.cfg.TypoPct {
			wrong := string(rune('a' + s.intn(26)))
			if err := page.TypeText(wrong); err != nil {
				return err
			}
			if err := s.pause(ctx, s.cfg.TypeDelayMs); err != nil {
				return err
			}
			if err := page.PressKey("Backspace"); err != nil {
				return err
			}
			if err := s.pause(ctx, s.cfg.TypeDelayMs); err != nil {
				return err
			}
		}
		if err := page.TypeText(string(ch)); err != nil {
			return err
		}
		if err := s.pause(ctx, s.cfg.TypeDelayMs); err != nil {
			return err
		}
	}
	return nil
}

// SimulateReading estimates the page's word count and paces a scroll
// sequence to match an average reading speed. The total is capped so a
// long product page never stalls a job for minutes.
func (s *Synthesizer) SimulateReading(ctx context.Context, page browser.Page) error {
	wordCount := 400
	if result, err := page.Evaluate(ctx, `() => document.body ? document.body.innerText.split(/\s+/).length : 0`); err == nil {
		if n, ok := asInt(result); ok && n > 0 {
			wordCount = n
		}
	}

	wpm := s.cfg.WordsPerMinute
	if wpm <= 0 {
		wpm = 220
	}
	total := time.Duration(float64(wordCount)/float64(wpm)*60) * time.Second
	if total > 20*time.Second {
		total = 20 * time.Second
	}
	if total < 2*time.Second {
		total = 2 * time.Second
	}

	steps := s.draw(s.cfg.ScrollSteps)
	perStep := total / time.Duration(steps+1)
	s.log.LogDebugf("simulating reading: %d words over %s in %d scrolls", wordCount, total, steps)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(perStep):
		}
		if err := page.Scroll(float64(s.draw(s.cfg.ScrollAmount))); err != nil {
			return err
		}
	}
	return nil
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
