package session

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"postcrawler/pkg/browser"
	"postcrawler/pkg/config"
	errs "postcrawler/pkg/errors"
	"postcrawler/pkg/logger"
	"postcrawler/pkg/navigation"
	"postcrawler/pkg/retry"
	"postcrawler/pkg/selectors"
)

// State is a step of the authentication state machine
type State string

const (
	Unauthenticated     State = "unauthenticated"
	CookieAttempted     State = "cookie_attempted"
	CredentialAttempted State = "credential_attempted"
	Authenticated       State = "authenticated"
	ChallengeRequired   State = "challenge_required"
	Failed              State = "failed"
)

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == Authenticated || s == ChallengeRequired || s == Failed
}

// Transition records one state change
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Material is the session material supplied at startup
type Material struct {
	Cookies    string
	Identifier string
	Secret     string
}

// HasCookies reports whether cookie material is present
func (m Material) HasCookies() bool {
	return strings.TrimSpace(m.Cookies) != ""
}

// HasCredentials reports whether a full identifier and secret pair is present
func (m Material) HasCredentials() bool {
	return m.Identifier != "" && m.Secret != ""
}

// Result is the outcome of Establish
type Result struct {
	State       State
	Transitions []Transition
	Expiry      *Expiry
	Signals     Signals
	FinalURL    string
	// FreshCookies is set only after a successful credential login
	FreshCookies CookieSet
}

// Authenticator drives a browser context into an authenticated state
type Authenticator struct {
	platform config.PlatformConfig
	timing   config.SessionConfig
	material Material
	nav      navigation.Navigator
	markers  selectors.Session
	logger   logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAuthenticator creates an authenticator for one run
func NewAuthenticator(cfg *config.Config, material Material, nav navigation.Navigator, markers selectors.Session, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Authenticator{
		platform: cfg.Platform,
		timing:   cfg.Session,
		material: material,
		nav:      nav,
		markers:  markers,
		logger:   log.WithField("component", "session"),
		now:      time.Now,
		sleep:    retry.Wait,
	}
}

// attempt tracks the state of one Establish call
type attempt struct {
	a   *Authenticator
	res *Result
}

// move records a transition; terminal states are never left
func (at *attempt) move(to State, reason string) {
	from := at.res.State
	if from.Terminal() {
		return
	}
	at.res.State = to
	at.res.Transitions = append(at.res.Transitions, Transition{From: from, To: to, Reason: reason, At: at.a.now()})
	logger.LogAuthTransition(at.a.logger, string(from), string(to), reason)
}

// Establish runs the cookie tier, then the credential tier. The returned
// Result is never nil; err is non-nil unless the final state is Authenticated.
func (a *Authenticator) Establish(ctx context.Context, b browser.Browser) (*Result, error) {
	at := &attempt{a: a, res: &Result{State: Unauthenticated}}

	if set, ok := a.usableCookies(at); ok {
		at.move(CookieAttempted, "cookie material present")
		if a.tryCookies(ctx, b, at, set) {
			at.move(Authenticated, "post-login heuristic passed with cookies")
			return at.res, nil
		}
		if err := ctx.Err(); err != nil {
			at.move(Failed, "cancelled")
			return at.res, err
		}
		if !a.material.HasCredentials() {
			at.move(Failed, "cookie session rejected and no credentials configured")
			return at.res, errs.New(errs.ErrorTypeAuthentication, "cookie session rejected")
		}
	}

	if !a.material.HasCredentials() {
		at.move(Failed, "no usable session material")
		return at.res, errs.New(errs.ErrorTypeAuthentication, "no cookies or credentials configured")
	}

	at.move(CredentialAttempted, "falling back to credential login")
	return a.tryCredentials(ctx, b, at)
}

// usableCookies parses the cookie material and applies the expiry policy
func (a *Authenticator) usableCookies(at *attempt) (CookieSet, bool) {
	if !a.material.HasCookies() {
		return nil, false
	}

	set, err := LoadCookies(a.material.Cookies)
	if err != nil {
		a.logger.WithError(err).Warn("Cookie material rejected, skipping cookie tier")
		return nil, false
	}

	expiry := PredictExpiry(set, a.platform.SessionCookie, a.now())
	at.res.Expiry = &expiry
	fields := map[string]interface{}{
		"cookie":  a.platform.SessionCookie,
		"expiry":  expiry.String(),
		"cookies": len(set),
	}
	switch {
	case expiry.Expired:
		a.logger.WarnWithFields("Session cookie expired, skipping cookie tier", fields)
		return nil, false
	case expiry.DaysLeft != nil && !expiry.Assumed && *expiry.DaysLeft < a.timing.ExpiryWarnDays:
		a.logger.WarnWithFields("Session cookie expires soon", fields)
	default:
		a.logger.DebugWithFields("Session cookie expiry", fields)
	}
	return set, true
}

func (a *Authenticator) tryCookies(ctx context.Context, b browser.Browser, at *attempt, set CookieSet) bool {
	base := a.platformURL("/")
	if !a.nav.GotoWithRetry(ctx, b, base) {
		a.logger.WarnWithFields("Base domain unreachable", map[string]interface{}{"url": base})
		return false
	}

	if err := b.ClearCookies(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to clear browser cookies")
		return false
	}
	if err := b.SetCookies(ctx, set.BrowserCookies(cookieDomain(a.platform.BaseURL))); err != nil {
		a.logger.WithError(err).Warn("Failed to install cookies")
		return false
	}

	landing := a.platformURL(a.platform.LandingPath)
	if !a.nav.GotoWithRetry(ctx, b, landing) {
		a.logger.WarnWithFields("Landing page unreachable", map[string]interface{}{"url": landing})
		return false
	}
	if err := a.sleep(ctx, a.timing.SettleDelay); err != nil {
		return false
	}

	ok, _ := a.check(ctx, b, at)
	return ok
}

func (a *Authenticator) tryCredentials(ctx context.Context, b browser.Browser, at *attempt) (*Result, error) {
	login := a.platformURL(a.platform.LoginPath)
	if !a.nav.GotoWithRetry(ctx, b, login) {
		at.move(Failed, "login page unreachable")
		return at.res, errs.New(errs.ErrorTypeAuthentication, "login page unreachable").WithURL(login)
	}

	ok, doc := a.check(ctx, b, at)
	if ok {
		a.captureCookies(ctx, b, at)
		at.move(Authenticated, "already signed in on login surface")
		return at.res, nil
	}
	if doc == nil {
		at.move(Failed, "login page unreadable")
		return at.res, errs.New(errs.ErrorTypeAuthentication, "login page unreadable")
	}

	idSel := firstMatch(doc, a.markers.LoginIdentifier)
	if idSel == "" {
		at.move(Failed, "login form absent")
		return at.res, errs.New(errs.ErrorTypeAuthentication, "login form absent").WithURL(at.res.FinalURL)
	}
	secretSel := firstMatch(doc, a.markers.LoginSecret)
	submitSel := firstMatch(doc, a.markers.LoginSubmit)
	if secretSel == "" || submitSel == "" {
		at.move(Failed, "login form incomplete")
		return at.res, errs.New(errs.ErrorTypeAuthentication, "login form incomplete")
	}

	if err := a.typeSlowly(ctx, b, idSel, a.material.Identifier); err != nil {
		at.move(Failed, "could not fill identifier")
		return at.res, errs.Wrap(errs.ErrorTypeAuthentication, "could not fill identifier", err)
	}
	if err := a.typeSlowly(ctx, b, secretSel, a.material.Secret); err != nil {
		at.move(Failed, "could not fill secret")
		return at.res, errs.Wrap(errs.ErrorTypeAuthentication, "could not fill secret", err)
	}

	navigated, err := b.ClickAndWaitNavigation(ctx, submitSel, a.timing.LoginTimeout)
	if err != nil {
		at.move(Failed, "login submit failed")
		return at.res, errs.Wrap(errs.ErrorTypeAuthentication, "login submit failed", err)
	}
	if !navigated {
		a.logger.Debug("No navigation after submit before timeout")
	}
	if err := a.sleep(ctx, a.timing.SettleDelay); err != nil {
		at.move(Failed, "cancelled")
		return at.res, err
	}

	loc, err := b.Location(ctx)
	if err != nil {
		at.move(Failed, "current URL unavailable")
		return at.res, errs.Wrap(errs.ErrorTypeAuthentication, "current URL unavailable", err)
	}
	at.res.FinalURL = loc

	switch {
	case MatchesAny(loc, a.platform.ChallengePatterns):
		at.move(ChallengeRequired, "verification page after login")
		return at.res, errs.New(errs.ErrorTypeChallenge, "platform requires manual verification").WithURL(loc)
	case MatchesAny(loc, a.platform.LoginPatterns):
		at.move(Failed, "still on login page after submit")
		return at.res, errs.New(errs.ErrorTypeAuthentication, "credentials rejected").WithURL(loc)
	}

	if ok, _ := a.check(ctx, b, at); ok {
		a.captureCookies(ctx, b, at)
		at.move(Authenticated, "post-login heuristic passed after credential login")
		return at.res, nil
	}
	at.move(Failed, "post-login heuristic failed")
	return at.res, errs.New(errs.ErrorTypeAuthentication, "post-login heuristic failed").WithURL(loc)
}

// check runs the post-login heuristic on the current page
func (a *Authenticator) check(ctx context.Context, b browser.Browser, at *attempt) (bool, *goquery.Document) {
	loc, err := b.Location(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Current URL unavailable")
		return false, nil
	}
	html, err := b.HTML(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Rendered page unavailable")
		return false, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.logger.WithError(err).Warn("Rendered page unparseable")
		return false, nil
	}

	sig := detect(doc, a.markers)
	ok := IsAuthenticated(sig, loc, a.platform.AuthenticatedPatterns)
	at.res.Signals = sig
	at.res.FinalURL = loc

	a.logger.DebugWithFields("Post-login heuristic", map[string]interface{}{
		"url":           loc,
		"signals":       sig.Count(),
		"authenticated": ok,
	})
	return ok, doc
}

func (a *Authenticator) captureCookies(ctx context.Context, b browser.Browser, at *attempt) {
	cookies, err := b.Cookies(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to read session cookies after login")
		return
	}
	if len(cookies) > 0 {
		at.res.FreshCookies = FromBrowserCookies(cookies)
	}
}

// typeSlowly sends text in bursts of 3-5 characters separated by think time
func (a *Authenticator) typeSlowly(ctx context.Context, b browser.Browser, sel, text string) error {
	runes := []rune(text)
	for len(runes) > 0 {
		n := 3 + rand.Intn(3)
		if n > len(runes) {
			n = len(runes)
		}
		if err := b.SendKeys(ctx, sel, string(runes[:n])); err != nil {
			return err
		}
		runes = runes[n:]
		if len(runes) > 0 {
			if err := a.sleep(ctx, a.timing.ThinkTime); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Authenticator) platformURL(path string) string {
	return strings.TrimRight(a.platform.BaseURL, "/") + path
}

// cookieDomain turns https://www.example.com into .example.com
func cookieDomain(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "." + strings.TrimPrefix(u.Hostname(), "www.")
}
