package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"postcrawler/pkg/browser"
	errs "postcrawler/pkg/errors"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func cookieJSON(name string, expires time.Time) string {
	return fmt.Sprintf(`[{"name":"JSESSIONID","value":"ajax:1","domain":".x.test"},{"name":%q,"value":"secret","domain":".x.test","expirationDate":%d}]`,
		name, expires.Unix())
}

func TestLoadCookies(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{name: "devtools export", raw: `[{"name":"li_at","value":"v","domain":".x.test","expires":1893456000,"httpOnly":true}]`, wantLen: 1},
		{name: "extension export", raw: cookieJSON("li_at", now.Add(time.Hour)), wantLen: 2},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "not json", raw: "li_at=abc", wantErr: true},
		{name: "empty array", raw: `[]`, wantErr: true},
		{name: "object instead of array", raw: `{"name":"li_at","value":"v"}`, wantErr: true},
		{name: "missing value", raw: `[{"name":"li_at"}]`, wantErr: true},
		{name: "wrong type", raw: `[{"name":"li_at","value":42}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := LoadCookies(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsType(err, errs.ErrorTypeFormat))
				return
			}
			require.NoError(t, err)
			assert.Len(t, set, tt.wantLen)
		})
	}
}

func TestLoadCookiesKeepsOrder(t *testing.T) {
	set, err := LoadCookies(cookieJSON("li_at", now))
	require.NoError(t, err)
	assert.Equal(t, []string{"JSESSIONID", "li_at"}, set.Names())
}

func TestPredictExpiry(t *testing.T) {
	t.Run("valid future cookie is not expired", func(t *testing.T) {
		for _, d := range []time.Duration{time.Minute, 36 * time.Hour, 200 * 24 * time.Hour} {
			set, err := LoadCookies(cookieJSON("li_at", now.Add(d)))
			require.NoError(t, err)
			e := PredictExpiry(set, "li_at", now)
			assert.False(t, e.Expired, d)
			require.NotNil(t, e.DaysLeft)
			assert.Equal(t, int(d.Hours()/24), *e.DaysLeft)
		}
	})

	t.Run("expiry at or before now is expired", func(t *testing.T) {
		for _, at := range []time.Time{now, now.Add(-time.Second), now.AddDate(-1, 0, 0)} {
			set, err := LoadCookies(cookieJSON("li_at", at))
			require.NoError(t, err)
			assert.True(t, PredictExpiry(set, "li_at", now).Expired)
		}
	})

	t.Run("missing primary cookie is optimistic", func(t *testing.T) {
		set, err := LoadCookies(cookieJSON("other", now.Add(-time.Hour)))
		require.NoError(t, err)
		e := PredictExpiry(set, "li_at", now)
		assert.False(t, e.Expired)
		assert.True(t, e.Assumed)
		require.NotNil(t, e.DaysLeft)
		assert.Equal(t, DefaultDaysLeft, *e.DaysLeft)
	})

	t.Run("session cookie has no days left", func(t *testing.T) {
		set, err := LoadCookies(`[{"name":"li_at","value":"v","expires":-1}]`)
		require.NoError(t, err)
		e := PredictExpiry(set, "li_at", now)
		assert.False(t, e.Expired)
		assert.Nil(t, e.DaysLeft)
		assert.Equal(t, "session cookie (no expiry)", e.String())
	})
}

func TestCookieConversionRoundTrip(t *testing.T) {
	set, err := LoadCookies(`[{"name":"li_at","value":"v","expirationDate":1893456000,"secure":true},{"name":"lang","value":"en","domain":".x.test"}]`)
	require.NoError(t, err)

	bc := set.BrowserCookies(".fallback.test")
	require.Len(t, bc, 2)
	assert.Equal(t, ".fallback.test", bc[0].Domain)
	assert.Equal(t, ".x.test", bc[1].Domain)
	assert.Equal(t, int64(1893456000), bc[0].Expires.Unix())
	assert.True(t, bc[1].Expires.IsZero())

	back := FromBrowserCookies([]browser.Cookie{bc[0]})
	raw, err := back.Marshal()
	require.NoError(t, err)
	reloaded, err := LoadCookies(raw)
	require.NoError(t, err)
	at, ok := reloaded[0].ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, int64(1893456000), at.Unix())
}

func TestCookieDomain(t *testing.T) {
	assert.Equal(t, ".linkedin.com", cookieDomain("https://www.linkedin.com"))
	assert.Equal(t, ".x.test", cookieDomain("https://x.test/"))
	assert.Equal(t, "", cookieDomain("::"))
}
