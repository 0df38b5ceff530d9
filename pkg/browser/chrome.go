package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"postcrawler/pkg/config"
	"postcrawler/pkg/logger"
)

const defaultActionTimeout = 30 * time.Second

// ChromeLauncher starts a local Chrome through chromedp
type ChromeLauncher struct {
	cfg           config.BrowserConfig
	actionTimeout time.Duration
	logger        logger.Logger

	// start performs the first Run on a tab, which allocates the process
	start func(ctx context.Context, actions ...chromedp.Action) error
}

// NewChromeLauncher creates a launcher from browser settings.
// actionTimeout bounds every single browser operation.
func NewChromeLauncher(cfg config.BrowserConfig, actionTimeout time.Duration, log logger.Logger) *ChromeLauncher {
	if actionTimeout <= 0 {
		actionTimeout = defaultActionTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ChromeLauncher{cfg: cfg, actionTimeout: actionTimeout, logger: log, start: chromedp.Run}
}

// allocatorOptions builds the exec allocator flags
func (l *ChromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.WindowWidth > 0 && l.cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(l.cfg.WindowWidth, l.cfg.WindowHeight))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts a browser process with one fresh tab.
// The browser outlives ctx; it is released by Close.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}))

	c := &Chrome{
		ctx:           tabCtx,
		actionTimeout: l.actionTimeout,
		logger:        l.logger,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	// The first Run allocates the process with exec.CommandContext on the
	// context it is given, so it must be the tab context itself: a deadline
	// or cancel there kills Chrome. ctx only bounds the wait.
	started := make(chan error, 1)
	go func() { started <- l.start(tabCtx, network.Enable()) }()

	select {
	case err := <-started:
		if err != nil {
			c.cancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		c.cancel()
		<-started
		return nil, ctx.Err()
	}

	l.logger.InfoWithFields("Browser started", map[string]interface{}{
		"headless": l.cfg.Headless,
	})
	return c, nil
}

// Chrome is a Browser backed by a chromedp tab
type Chrome struct {
	ctx           context.Context
	cancel        context.CancelFunc
	actionTimeout time.Duration
	logger        logger.Logger
}

// run executes actions on the tab, bounded by the caller's ctx and the action timeout
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the load event
func (c *Chrome) Navigate(ctx context.Context, url string) (Response, error) {
	runCtx, cancel := context.WithTimeout(c.ctx, c.actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, err
	}

	out := Response{URL: url}
	if resp != nil {
		out.Status = resp.Status
		out.URL = resp.URL
	}
	return out, nil
}

// Location returns the current page URL
func (c *Chrome) Location(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// HTML returns the rendered document
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Evaluate runs a registered script with JSON-encoded arguments
func (c *Chrome) Evaluate(ctx context.Context, script Script, out interface{}, args ...interface{}) error {
	src, ok := scriptSources[script]
	if !ok {
		return fmt.Errorf("unknown script: %s", script)
	}

	encoded := make([]string, 0, len(args))
	for _, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return fmt.Errorf("failed to encode script argument: %w", err)
		}
		encoded = append(encoded, string(b))
	}
	expr := fmt.Sprintf("(%s)(%s)", src, strings.Join(encoded, ", "))

	return c.run(ctx, chromedp.Evaluate(expr, out))
}

// ClearCookies drops every cookie in the browser context
func (c *Chrome) ClearCookies(ctx context.Context) error {
	return c.run(ctx, network.ClearBrowserCookies())
}

// SetCookies installs cookies into the browser context
func (c *Chrome) SetCookies(ctx context.Context, cookies []Cookie) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ck := range cookies {
			path := ck.Path
			if path == "" {
				path = "/"
			}
			params := network.SetCookie(ck.Name, ck.Value).
				WithDomain(ck.Domain).
				WithPath(path).
				WithSecure(ck.Secure).
				WithHTTPOnly(ck.HTTPOnly)
			if !ck.Expires.IsZero() {
				expires := cdp.TimeSinceEpoch(ck.Expires)
				params = params.WithExpires(&expires)
			}
			if err := params.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", ck.Name, err)
			}
		}
		return nil
	}))
}

// Cookies returns the cookies visible to the current page
func (c *Chrome) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, rc := range raw {
		ck := Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Secure:   rc.Secure,
			HTTPOnly: rc.HTTPOnly,
		}
		if !rc.Session && rc.Expires > 0 {
			ck.Expires = time.Unix(int64(rc.Expires), 0)
		}
		cookies = append(cookies, ck)
	}
	return cookies, nil
}

// SendKeys types text into the first element matching selector
func (c *Chrome) SendKeys(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// Click clicks the first element matching selector
func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// ClickAndWaitNavigation races the next load event against timeout
func (c *Chrome) ClickAndWaitNavigation(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	loaded := make(chan struct{}, 1)
	listenCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			select {
			case loaded <- struct{}{}:
			default:
			}
		}
	})

	if err := c.Click(ctx, selector); err != nil {
		return false, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-loaded:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close terminates the tab and the browser process
func (c *Chrome) Close() error {
	c.cancel()
	c.logger.Debug("Browser closed")
	return nil
}
