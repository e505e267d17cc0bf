package browser

import (
	"context"
	"time"
)

// Viewport describes the visible page dimensions and input capabilities
// of the emulated device.
type Viewport struct {
	Width     int     `yaml:"width" json:"width"`
	Height    int     `yaml:"height" json:"height"`
	Scale     float64 `yaml:"scale" json:"scale"`
	IsMobile  bool    `yaml:"is_mobile" json:"is_mobile"`
	HasTouch  bool    `yaml:"has_touch" json:"has_touch"`
}

// PageOptions carries the egress settings a page is opened with.
type PageOptions struct {
	ProxyURL string
}

// Engine is the narrow browser interface the orchestration core consumes.
// Everything behind it (process lifecycle, contexts, CDP) is the engine's
// problem.
type Engine interface {
	OpenPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// Page is a single automated browser page. Identity setters only take
// effect before the first Navigate call; the engine applies them when it
// materializes the underlying browser context.
type Page interface {
	SetViewport(v Viewport)
	SetUserAgent(ua string)
	SetHeaders(h map[string]string)
	InjectPreNavigationOverrides(script string)

	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Content(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) (interface{}, error)
	RunQuery(ctx context.Context, script string) (map[string]interface{}, error)

	MoveMouse(x, y float64) error
	Scroll(deltaY float64) error
	Click(selector string) error
	TypeText(text string) error
	PressKey(key string) error

	Close() error
}
