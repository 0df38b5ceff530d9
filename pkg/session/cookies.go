package session

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"postcrawler/pkg/browser"
	errs "postcrawler/pkg/errors"
)

// DefaultDaysLeft is reported when the primary cookie carries no usable expiry
const DefaultDaysLeft = 30

const cookieSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["name", "value"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "value": {"type": "string"},
      "domain": {"type": "string"},
      "path": {"type": "string"},
      "expires": {"type": "number"},
      "expirationDate": {"type": "number"},
      "secure": {"type": "boolean"},
      "httpOnly": {"type": "boolean"}
    }
  }
}`

// CookieEntry is one serialized cookie. Both the devtools "expires" and the
// extension-export "expirationDate" forms are accepted.
type CookieEntry struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain,omitempty"`
	Path           string   `json:"path,omitempty"`
	Expires        *float64 `json:"expires,omitempty"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
	Secure         bool     `json:"secure,omitempty"`
	HTTPOnly       bool     `json:"httpOnly,omitempty"`
}

// ExpiresAt returns the expiry instant, false for session cookies
func (c CookieEntry) ExpiresAt() (time.Time, bool) {
	for _, v := range []*float64{c.ExpirationDate, c.Expires} {
		if v != nil && *v > 0 {
			sec, frac := math.Modf(*v)
			return time.Unix(int64(sec), int64(frac*1e9)), true
		}
	}
	return time.Time{}, false
}

// CookieSet is an ordered, non-empty collection of cookies
type CookieSet []CookieEntry

// LoadCookies parses serialized cookie material
func LoadCookies(raw string) (CookieSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errs.New(errs.ErrorTypeFormat, "cookie material is empty")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(cookieSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFormat, "cookie material is not valid JSON", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			problems = append(problems, fmt.Sprintf("%s: %s", field, desc.Description()))
		}
		return nil, errs.New(errs.ErrorTypeFormat, "cookie material has wrong shape: "+strings.Join(problems, "; "))
	}

	var set CookieSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeFormat, "failed to decode cookies", err)
	}
	return set, nil
}

// Find returns the first cookie called name
func (s CookieSet) Find(name string) (CookieEntry, bool) {
	for _, c := range s {
		if c.Name == name {
			return c, true
		}
	}
	return CookieEntry{}, false
}

// Names lists cookie names in order
func (s CookieSet) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// BrowserCookies converts the set for installation; entries without a domain get defaultDomain
func (s CookieSet) BrowserCookies(defaultDomain string) []browser.Cookie {
	out := make([]browser.Cookie, 0, len(s))
	for _, c := range s {
		domain := c.Domain
		if domain == "" {
			domain = defaultDomain
		}
		bc := browser.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if at, ok := c.ExpiresAt(); ok {
			bc.Expires = at
		}
		out = append(out, bc)
	}
	return out
}

// FromBrowserCookies converts cookies read back from the browser
func FromBrowserCookies(cookies []browser.Cookie) CookieSet {
	set := make(CookieSet, 0, len(cookies))
	for _, c := range cookies {
		entry := CookieEntry{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			v := float64(c.Expires.Unix())
			entry.ExpirationDate = &v
		}
		set = append(set, entry)
	}
	return set
}

// Marshal serializes the set in the form LoadCookies accepts
func (s CookieSet) Marshal() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Expiry is the prediction for the primary session cookie.
// DaysLeft is nil when the cookie is present but has no expiry.
type Expiry struct {
	Expired  bool
	DaysLeft *int
	// Assumed is set when the primary cookie was absent
	Assumed bool
}

// PredictExpiry inspects the primary session cookie. A missing cookie yields
// an optimistic default instead of an expired verdict.
func PredictExpiry(set CookieSet, primary string, now time.Time) Expiry {
	c, ok := set.Find(primary)
	if !ok {
		days := DefaultDaysLeft
		return Expiry{DaysLeft: &days, Assumed: true}
	}

	at, ok := c.ExpiresAt()
	if !ok {
		return Expiry{}
	}
	if !at.After(now) {
		days := 0
		return Expiry{Expired: true, DaysLeft: &days}
	}
	days := int(at.Sub(now).Hours() / 24)
	return Expiry{DaysLeft: &days}
}

// String renders the prediction for logs and the CLI
func (e Expiry) String() string {
	switch {
	case e.Expired:
		return "expired"
	case e.DaysLeft == nil:
		return "session cookie (no expiry)"
	case e.Assumed:
		return fmt.Sprintf("unknown, assuming %d days", *e.DaysLeft)
	default:
		return fmt.Sprintf("%d days left", *e.DaysLeft)
	}
}
