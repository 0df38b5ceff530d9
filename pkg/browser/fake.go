package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// FakePage is a scripted response of the Fake browser
type FakePage struct {
	Status int64
	HTML   string
	// RedirectTo is followed unconditionally, or only when RequireCookie is missing
	RedirectTo    string
	RequireCookie string
}

// Fake is a scripted in-memory Browser for tests
type Fake struct {
	mu sync.Mutex

	Pages map[string]FakePage
	// Failures maps a URL to the number of navigations that fail before it loads; negative fails forever
	Failures map[string]int
	// SubmitURL is loaded by ClickAndWaitNavigation; empty means the wait times out
	SubmitURL string
	// SubmitCookies are installed when the submit navigation happens
	SubmitCookies []Cookie
	ReadyState    string

	current        string
	cookies        []Cookie
	navigations    []string
	typed          map[string]string
	clicks         []string
	scrolls        int
	cookiesCleared int
	closed         bool
}

// NewFake creates a Fake serving pages
func NewFake(pages map[string]FakePage) *Fake {
	if pages == nil {
		pages = map[string]FakePage{}
	}
	return &Fake{
		Pages:      pages,
		Failures:   map[string]int{},
		ReadyState: "complete",
		typed:      map[string]string{},
	}
}

// Launcher returns a Launcher that hands out this Fake and counts launches
func (f *Fake) Launcher(launches *int) Launcher {
	return LauncherFunc(func(ctx context.Context) (Browser, error) {
		if launches != nil {
			*launches++
		}
		return f, nil
	})
}

func (f *Fake) Navigate(ctx context.Context, url string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.navigations = append(f.navigations, url)
	if n, ok := f.Failures[url]; ok && n != 0 {
		if n > 0 {
			f.Failures[url] = n - 1
		}
		return Response{}, fmt.Errorf("net::ERR_TIMED_OUT loading %s", url)
	}

	target := f.resolve(url)
	f.current = target
	status := f.Pages[target].Status
	if _, ok := f.Pages[target]; !ok {
		status = 200
	}
	return Response{Status: status, URL: target}, nil
}

// resolve follows redirects; caller holds mu
func (f *Fake) resolve(url string) string {
	for i := 0; i < 10; i++ {
		p, ok := f.Pages[url]
		if !ok || p.RedirectTo == "" {
			return url
		}
		if p.RequireCookie != "" && f.hasCookie(p.RequireCookie) {
			return url
		}
		url = p.RedirectTo
	}
	return url
}

func (f *Fake) hasCookie(name string) bool {
	for _, c := range f.cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (f *Fake) Location(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pages[f.current].HTML, nil
}

func (f *Fake) Evaluate(ctx context.Context, script Script, out interface{}, args ...interface{}) error {
	f.mu.Lock()
	var result interface{}
	switch script {
	case ScriptScrollToBottom:
		f.scrolls++
		result = f.scrolls * 1000
	case ScriptScrollHeight:
		result = f.scrolls * 1000
	case ScriptReadyState:
		result = f.ReadyState
	default:
		f.mu.Unlock()
		return fmt.Errorf("unknown script: %s", script)
	}
	f.mu.Unlock()

	if out == nil {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *Fake) ClearCookies(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = nil
	f.cookiesCleared++
	return nil
}

func (f *Fake) SetCookies(ctx context.Context, cookies []Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = append(f.cookies, cookies...)
	return nil
}

func (f *Fake) Cookies(ctx context.Context) ([]Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Cookie, len(f.cookies))
	copy(out, f.cookies)
	return out, nil
}

func (f *Fake) SendKeys(ctx context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed[selector] += text
	return nil
}

func (f *Fake) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *Fake) ClickAndWaitNavigation(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if err := f.Click(ctx, selector); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitURL == "" {
		return false, nil
	}
	f.cookies = append(f.cookies, f.SubmitCookies...)
	f.current = f.resolve(f.SubmitURL)
	return true, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Navigations returns every URL passed to Navigate
func (f *Fake) Navigations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.navigations))
	copy(out, f.navigations)
	return out
}

// Typed returns the text sent to selector
func (f *Fake) Typed(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typed[selector]
}

// Clicks returns the clicked selectors in order
func (f *Fake) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicks...)
}

// Scrolls returns how many scroll scripts ran
func (f *Fake) Scrolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolls
}

// CookiesCleared returns how many times ClearCookies ran
func (f *Fake) CookiesCleared() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cookiesCleared
}

// Closed reports whether Close was called
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
