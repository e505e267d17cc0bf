package device

import (
	"fmt"
	"math/rand"
	"sync"

	"harvester/internal/platform/browser"
)

// Profile is a named device fingerprint. The override script pushed before
// navigation keeps the JS-visible properties consistent with the viewport
// and user agent, which is what fingerprinting scripts cross-check.
type Profile struct {
	Name           string           `yaml:"name"`
	UserAgent      string           `yaml:"user_agent"`
	Viewport       browser.Viewport `yaml:"viewport"`
	NavPlatform    string           `yaml:"nav_platform"`
	MaxTouchPoints int              `yaml:"max_touch_points"`
	AcceptLanguage string           `yaml:"accept_language"`
}

var builtins = []Profile{
	{
		Name:           "iphone_15",
		UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
		Viewport:       browser.Viewport{Width: 393, Height: 852, Scale: 3, IsMobile: true, HasTouch: true},
		NavPlatform:    "iPhone",
		MaxTouchPoints: 5,
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		Name:           "iphone_se",
		UserAgent:      "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
		Viewport:       browser.Viewport{Width: 375, Height: 667, Scale: 2, IsMobile: true, HasTouch: true},
		NavPlatform:    "iPhone",
		MaxTouchPoints: 5,
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		Name:           "pixel_8",
		UserAgent:      "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		Viewport:       browser.Viewport{Width: 412, Height: 915, Scale: 2.625, IsMobile: true, HasTouch: true},
		NavPlatform:    "Linux armv8l",
		MaxTouchPoints: 5,
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		Name:           "galaxy_s23",
		UserAgent:      "Mozilla/5.0 (Linux; Android 14; SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		Viewport:       browser.Viewport{Width: 360, Height: 780, Scale: 3, IsMobile: true, HasTouch: true},
		NavPlatform:    "Linux armv8l",
		MaxTouchPoints: 5,
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		Name:           "ipad_air",
		UserAgent:      "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
		Viewport:       browser.Viewport{Width: 820, Height: 1180, Scale: 2, IsMobile: true, HasTouch: true},
		NavPlatform:    "iPad",
		MaxTouchPoints: 5,
		AcceptLanguage: "en-US,en;q=0.9",
	},
	{
		Name:           "galaxy_tab_s9",
		UserAgent:      "Mozilla/5.0 (Linux; Android 14; SM-X710) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Viewport:       browser.Viewport{Width: 800, Height: 1280, Scale: 2, IsMobile: true, HasTouch: true},
		NavPlatform:    "Linux armv8l",
		MaxTouchPoints: 5,
		AcceptLanguage: "en-US,en;q=0.9",
	},
}

// Registry is a fixed catalog of device fingerprints.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	names    []string
	rng      *rand.Rand
}

func NewRegistry(profiles []Profile) *Registry {
	if len(profiles) == 0 {
		profiles = builtins
	}
	r := &Registry{profiles: make(map[string]Profile, len(profiles)), rng: rand.New(rand.NewSource(rand.Int63()))}
	for _, p := range profiles {
		r.profiles[p.Name] = p
		r.names = append(r.names, p.Name)
	}
	return r
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r *Registry) ByName(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown device profile: %s", name)
	}
	return p, nil
}

func (r *Registry) Random() Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[r.names[r.rng.Intn(len(r.names))]]
}

// Apply pushes the profile's fingerprint onto a page: viewport, user agent,
// headers, and the pre-navigation property overrides.
func Apply(page browser.Page, p Profile) {
	page.SetViewport(p.Viewport)
	page.SetUserAgent(p.UserAgent)
	page.SetHeaders(map[string]string{
		"Accept-Language": p.AcceptLanguage,
	})
	page.InjectPreNavigationOverrides(OverrideScript(p))
}

// OverrideScript returns the page-context script that aligns JS-visible
// navigator and screen properties with the emulated device.
func OverrideScript(p Profile) string {
	return fmt.Sprintf(`
		Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
		Object.defineProperty(navigator, 'platform', { get: () => %q });
		Object.defineProperty(navigator, 'maxTouchPoints', { get: () => %d });
		Object.defineProperty(screen, 'width', { get: () => %d });
		Object.defineProperty(screen, 'height', { get: () => %d });
		Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
		Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	`, p.NavPlatform, p.MaxTouchPoints, p.Viewport.Width, p.Viewport.Height)
}
