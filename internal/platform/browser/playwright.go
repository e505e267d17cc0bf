package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"harvester/internal/logger"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightEngine drives a headless Chromium through playwright. One
// browser process is shared; every page gets its own isolated context so
// proxies and identities never leak between jobs.
type PlaywrightEngine struct {
	log     *logger.Logger
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywrightEngine() (*PlaywrightEngine, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch: %w", err)
	}
	return &PlaywrightEngine{log: logger.New("Browser"), pw: pw, browser: browser}, nil
}

func (e *PlaywrightEngine) OpenPage(ctx context.Context, opts PageOptions) (Page, error) {
	return &playwrightPage{engine: e, opts: opts}, nil
}

func (e *PlaywrightEngine) Close() error {
	if err := e.browser.Close(); err != nil {
		return err
	}
	return e.pw.Stop()
}

type playwrightPage struct {
	engine *PlaywrightEngine
	opts   PageOptions

	// Staged identity, applied when the context materializes.
	viewport  *Viewport
	userAgent string
	headers   map[string]string
	overrides []string

	pctx playwright.BrowserContext
	page playwright.Page
}

func (p *playwrightPage) SetViewport(v Viewport) { p.viewport = &v }
func (p *playwrightPage) SetUserAgent(ua string) { p.userAgent = ua }

func (p *playwrightPage) SetHeaders(h map[string]string) { p.headers = h }

func (p *playwrightPage) InjectPreNavigationOverrides(script string) {
	p.overrides = append(p.overrides, script)
}

// materialize builds the browser context with whatever identity was staged.
func (p *playwrightPage) materialize() error {
	if p.page != nil {
		return nil
	}
	ctxOpts := playwright.BrowserNewContextOptions{}
	if p.userAgent != "" {
		ctxOpts.UserAgent = playwright.String(p.userAgent)
	}
	if len(p.headers) > 0 {
		ctxOpts.ExtraHttpHeaders = p.headers
	}
	if p.viewport != nil {
		ctxOpts.Viewport = &playwright.Size{Width: p.viewport.Width, Height: p.viewport.Height}
		if p.viewport.Scale > 0 {
			ctxOpts.DeviceScaleFactor = playwright.Float(p.viewport.Scale)
		}
		ctxOpts.IsMobile = playwright.Bool(p.viewport.IsMobile)
		ctxOpts.HasTouch = playwright.Bool(p.viewport.HasTouch)
	}
	if p.opts.ProxyURL != "" {
		u, err := url.Parse(p.opts.ProxyURL)
		if err != nil {
			return fmt.Errorf("proxy url: %w", err)
		}
		proxy := &playwright.Proxy{Server: u.Scheme + "://" + u.Host}
		if u.User != nil {
			username := u.User.Username()
			password, _ := u.User.Password()
			proxy.Username = playwright.String(username)
			proxy.Password = playwright.String(password)
		}
		ctxOpts.Proxy = proxy
	}

	pctx, err := p.engine.browser.NewContext(ctxOpts)
	if err != nil {
		return fmt.Errorf("new context: %w", err)
	}
	for _, script := range p.overrides {
		s := script
		if err := pctx.AddInitScript(playwright.Script{Content: playwright.String(s)}); err != nil {
			_ = pctx.Close()
			return fmt.Errorf("init script: %w", err)
		}
	}
	page, err := pctx.NewPage()
	if err != nil {
		_ = pctx.Close()
		return fmt.Errorf("new page: %w", err)
	}
	p.pctx = pctx
	p.page = page
	return nil
}

func (p *playwrightPage) Navigate(ctx context.Context, target string, timeout time.Duration) error {
	if err := p.materialize(); err != nil {
		return err
	}
	_, err := p.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		// Fall back to the full load event with a longer budget; some
		// marketplaces never settle domcontentloaded under throttling.
		_, err = p.page.Goto(target, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   playwright.Float(float64(2 * timeout.Milliseconds())),
		})
		if err != nil {
			return fmt.Errorf("goto failed: %w", err)
		}
	}
	return nil
}

func (p *playwrightPage) Content(ctx context.Context) (string, error) {
	if p.page == nil {
		return "", fmt.Errorf("page not navigated")
	}
	return p.page.Content()
}

func (p *playwrightPage) Evaluate(ctx context.Context, script string) (interface{}, error) {
	if p.page == nil {
		return nil, fmt.Errorf("page not navigated")
	}
	return p.page.Evaluate(script)
}

func (p *playwrightPage) RunQuery(ctx context.Context, script string) (map[string]interface{}, error) {
	result, err := p.Evaluate(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("extraction query: %w", err)
	}
	record, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("extraction query returned %T, want object", result)
	}
	return record, nil
}

func (p *playwrightPage) MoveMouse(x, y float64) error {
	if p.page == nil {
		return fmt.Errorf("page not navigated")
	}
	return p.page.Mouse().Move(x, y)
}

func (p *playwrightPage) Scroll(deltaY float64) error {
	if p.page == nil {
		return fmt.Errorf("page not navigated")
	}
	return p.page.Mouse().Wheel(0, deltaY)
}

func (p *playwrightPage) Click(selector string) error {
	if p.page == nil {
		return fmt.Errorf("page not navigated")
	}
	return p.page.Click(selector)
}

func (p *playwrightPage) TypeText(text string) error {
	if p.page == nil {
		return fmt.Errorf("page not navigated")
	}
	return p.page.Keyboard().Type(text)
}

func (p *playwrightPage) PressKey(key string) error {
	if p.page == nil {
		return fmt.Errorf("page not navigated")
	}
	return p.page.Keyboard().Press(key)
}

func (p *playwrightPage) Close() error {
	if p.pctx != nil {
		return p.pctx.Close()
	}
	return nil
}
