// Package browser exposes the narrow slice of headless browser control the
// crawl pipeline needs: navigation, rendered HTML, cookie management, form
// input and a registry of named in-page scripts.
package browser

import (
	"context"
	"time"
)

// Script names a snippet evaluated inside the rendered page
type Script string

const (
	// ScriptScrollToBottom scrolls the window to the bottom and returns the new scroll height
	ScriptScrollToBottom Script = "scroll_to_bottom"
	// ScriptReadyState returns document.readyState
	ScriptReadyState Script = "ready_state"
	// ScriptScrollHeight returns document.body.scrollHeight
	ScriptScrollHeight Script = "scroll_height"
)

var scriptSources = map[Script]string{
	ScriptScrollToBottom: `() => { window.scrollTo(0, document.body.scrollHeight); return document.body.scrollHeight; }`,
	ScriptReadyState:     `() => document.readyState`,
	ScriptScrollHeight:   `() => document.body ? document.body.scrollHeight : 0`,
}

// Response is the observable outcome of a navigation.
// Status is 0 when the engine reported no HTTP response.
type Response struct {
	Status int64
	URL    string
}

// Cookie is one browser cookie
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
}

// Browser is one controllable page in an isolated browser context
type Browser interface {
	Navigate(ctx context.Context, url string) (Response, error)
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script Script, out interface{}, args ...interface{}) error

	ClearCookies(ctx context.Context) error
	SetCookies(ctx context.Context, cookies []Cookie) error
	Cookies(ctx context.Context) ([]Cookie, error)

	SendKeys(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// ClickAndWaitNavigation clicks selector then waits up to timeout for a page load.
	// navigated is false when the timeout won the race.
	ClickAndWaitNavigation(ctx context.Context, selector string, timeout time.Duration) (navigated bool, err error)

	Close() error
}

// Launcher creates browser contexts
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// LauncherFunc adapts a function to the Launcher interface
type LauncherFunc func(ctx context.Context) (Browser, error)

// Launch calls f(ctx)
func (f LauncherFunc) Launch(ctx context.Context) (Browser, error) {
	return f(ctx)
}
