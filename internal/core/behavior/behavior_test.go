package behavior

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"harvester/internal/platform/browser"
)

// tracePage records every interaction the synthesizer plays.
type tracePage struct {
	mu     sync.Mutex
	moves  [][2]float64
	scroll []float64
	typed  []string
	keys   []string
	clicks []string
	words  interface{}
}

func (p *tracePage) SetViewport(v browser.Viewport)             {}
func (p *tracePage) SetUserAgent(ua string)                     {}
func (p *tracePage) SetHeaders(h map[string]string)             {}
func (p *tracePage) InjectPreNavigationOverrides(script string) {}

func (p *tracePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return nil
}
func (p *tracePage) Content(ctx context.Context) (string, error) { return "", nil }

func (p *tracePage) Evaluate(ctx context.Context, script string) (interface{}, error) {
	return p.words, nil
}

func (p *tracePage) RunQuery(ctx context.Context, script string) (map[string]interface{}, error) {
	return nil, nil
}

func (p *tracePage) MoveMouse(x, y float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves = append(p.moves, [2]float64{x, y})
	return nil
}

func (p *tracePage) Scroll(deltaY float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scroll = append(p.scroll, deltaY)
	return nil
}

func (p *tracePage) Click(selector string) error {
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *tracePage) TypeText(text string) error {
	p.typed = append(p.typed, text)
	return nil
}

func (p *tracePage) PressKey(key string) error {
	p.keys = append(p.keys, key)
	return nil
}

func (p *tracePage) Close() error { return nil }

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.MouseDelayMs = Range{Min: 0, Max: 0}
	cfg.ScrollDelayMs = Range{Min: 0, Max: 0}
	cfg.ReadingPauseMs = Range{Min: 0, Max: 0}
	cfg.TypeDelayMs = Range{Min: 0, Max: 0}
	return cfg
}

func TestMouseTrailBounds(t *testing.T) {
	s := New(fastConfig())
	page := &tracePage{}
	vp := browser.Viewport{Width: 400, Height: 300}

	if err := s.MouseTrail(context.Background(), page, vp); err != nil {
		t.Fatal(err)
	}
	if len(page.moves) == 0 {
		t.Fatal("no mouse movement")
	}
	// Waypoints land inside the viewport; interpolated midpoints may
	// wobble a few pixels past the edge.
	for _, m := range page.moves {
		if m[0] < -15 || m[0] > 415 || m[1] < -15 || m[1] > 315 {
			t.Fatalf("move (%v, %v) far outside the viewport", m[0], m[1])
		}
	}
}

func TestMouseTrailVariesBetweenRuns(t *testing.T) {
	s := New(fastConfig())
	vp := browser.Viewport{Width: 1280, Height: 800}

	a, b := &tracePage{}, &tracePage{}
	if err := s.MouseTrail(context.Background(), a, vp); err != nil {
		t.Fatal(err)
	}
	if err := s.MouseTrail(context.Background(), b, vp); err != nil {
		t.Fatal(err)
	}
	if len(a.moves) == len(b.moves) {
		same := true
		for i := range a.moves {
			if a.moves[i] != b.moves[i] {
				same = false
				break
			}
		}
		if same {
			t.Fatal("two runs produced identical trails")
		}
	}
}

func TestScrollSequenceStepCount(t *testing.T) {
	cfg := fastConfig()
	cfg.ScrollSteps = Range{Min: 3, Max: 3}
	s := New(cfg)
	page := &tracePage{}

	if err := s.ScrollSequence(context.Background(), page); err != nil {
		t.Fatal(err)
	}
	if len(page.scroll) != 3 {
		t.Fatalf("scrolled %d times, want 3", len(page.scroll))
	}
	for _, amount := range page.scroll {
		if amount == 0 {
			t.Fatal("zero-magnitude scroll step")
		}
	}
}

func TestScrollSequenceReversesSometimes(t *testing.T) {
	cfg := fastConfig()
	cfg.ScrollSteps = Range{Min: 5, Max: 5}
	cfg.ReverseScrollPct = 100
	s := New(cfg)
	page := &tracePage{}

	if err := s.ScrollSequence(context.Background(), page); err != nil {
		t.Fatal(err)
	}
	for _, amount := range page.scroll {
		if amount >= 0 {
			t.Fatalf("scroll %v not reversed despite 100%% reverse rate", amount)
		}
	}
}

func TestTypeIntoTypesEveryCharacter(t *testing.T) {
	cfg := fastConfig()
	cfg.TypoPct = 0
	s := New(cfg)
	page := &tracePage{}

	if err := s.TypeInto(context.Background(), page, "#search", "usb hub"); err != nil {
		t.Fatal(err)
	}
	if len(page.clicks) != 1 || page.clicks[0] != "#search" {
		t.Fatalf("clicks = %v", page.clicks)
	}
	if got := strings.Join(page.typed, ""); got != "usb hub" {
		t.Fatalf("typed %q", got)
	}
	if len(page.keys) != 0 {
		t.Fatalf("unexpected key presses %v with typos disabled", page.keys)
	}
}

func TestTypeIntoCorrectsTypos(t *testing.T) {
	cfg := fastConfig()
	cfg.TypoPct = 100
	s := New(cfg)
	page := &tracePage{}

	if err := s.TypeInto(context.Background(), page, "#search", "ab"); err != nil {
		t.Fatal(err)
	}
	// Every character is preceded by a wrong character and a Backspace.
	if len(page.keys) != 2 {
		t.Fatalf("backspaces = %v, want one per character", page.keys)
	}
	for _, k := range page.keys {
		if k != "Backspace" {
			t.Fatalf("unexpected key %q", k)
		}
	}
	if len(page.typed) != 4 {
		t.Fatalf("typed %v, want wrong+right per character", page.typed)
	}
	// The final text still comes out right: every even entry is the typo.
	if page.typed[1] != "a" || page.typed[3] != "b" {
		t.Fatalf("corrected sequence wrong: %v", page.typed)
	}
}

func TestSimulateReadingShortPage(t *testing.T) {
	cfg := fastConfig()
	cfg.ScrollSteps = Range{Min: 2, Max: 2}
	s := New(cfg)
	page := &tracePage{words: float64(10)}

	start := time.Now()
	if err := s.SimulateReading(context.Background(), page); err != nil {
		t.Fatal(err)
	}
	// Ten words floor out at the two second minimum.
	if elapsed := time.Since(start); elapsed < time.Second || elapsed > 5*time.Second {
		t.Fatalf("reading simulation ran %s", elapsed)
	}
	if len(page.scroll) != 2 {
		t.Fatalf("scrolled %d times", len(page.scroll))
	}
}

func TestPauseHonorsContext(t *testing.T) {
	cfg := fastConfig()
	cfg.ScrollSteps = Range{Min: 5, Max: 5}
	cfg.ScrollDelayMs = Range{Min: 5000, Max: 5000}
	cfg.ReadingPausePct = 0
	s := New(cfg)
	page := &tracePage{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.ScrollSequence(ctx, page)
	if err == nil {
		t.Fatal("sequence outlived its context")
	}
}

func TestDrawStaysInRange(t *testing.T) {
	s := New(DefaultConfig())
	r := Range{Min: 3, Max: 9}
	for i := 0; i < 200; i++ {
		v := s.draw(r)
		if v < 3 || v > 9 {
			t.Fatalf("draw = %d outside [3,9]", v)
		}
	}
	if got := s.draw(Range{Min: 4, Max: 4}); got != 4 {
		t.Fatalf("degenerate range drew %d", got)
	}
}
