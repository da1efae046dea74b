// File: internal/browser/browser_test.go
package browser

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/config"
)

func TestTargetConstructors(t *testing.T) {
	css := CSS("button[type=\"submit\"]")
	assert.Equal(t, TargetCSS, css.Kind)
	assert.Equal(t, "button[type=\"submit\"]", css.Value)

	xp := XPath("//button[contains(normalize-space(.), \"Save\")]")
	assert.Equal(t, TargetXPath, xp.Kind)
}

func TestOriginOf(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
		ok       bool
	}{
		{name: "https with path", url: "https://app.example.com/dashboard?tab=1", expected: "https://app.example.com", ok: true},
		{name: "http with port", url: "http://localhost:3000/login", expected: "http://localhost:3000", ok: true},
		{name: "about blank", url: "about:blank", ok: false},
		{name: "empty", url: "", ok: false},
		{name: "relative path", url: "/dashboard", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			origin, ok := originOf(tc.url)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, origin)
		})
	}
}

func TestCookieParams(t *testing.T) {
	expiry := float64(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).Unix())
	params := cookieParams([]schemas.Cookie{
		{Name: "session", Value: "abc123", Domain: "example.com", Path: "/", Expires: expiry, HTTPOnly: true, Secure: true, SameSite: "Lax"},
		{Name: "theme", Value: "dark", Domain: "example.com", Path: "/", Expires: -1},
	})
	require.Len(t, params, 2)

	sessionCookie := params[0]
	assert.Equal(t, "session", sessionCookie.Name)
	assert.True(t, sessionCookie.HTTPOnly)
	require.NotNil(t, sessionCookie.Expires)
	assert.Equal(t, network.CookieSameSiteLax, sessionCookie.SameSite)

	// Session cookies (no expiry) must not get a bogus timestamp.
	assert.Nil(t, params[1].Expires)
	assert.Empty(t, string(params[1].SameSite))
}

func TestLocalStorageSeedScript(t *testing.T) {
	t.Run("empty map produces no script", func(t *testing.T) {
		assert.Empty(t, localStorageSeedScript(nil))
		assert.Empty(t, localStorageSeedScript(map[string]map[string]string{}))
	})

	t.Run("values are JSON encoded", func(t *testing.T) {
		script := localStorageSeedScript(map[string]map[string]string{
			"https://app.example.com": {
				"token": `ey"quoted"`,
			},
		})
		assert.Contains(t, script, "location.origin")
		assert.Contains(t, script, `ey\"quoted\"`)
		assert.NotContains(t, script, "\n\"quoted\"")
	})

	t.Run("script seeds only matching origin", func(t *testing.T) {
		script := localStorageSeedScript(map[string]map[string]string{
			"https://a.example.com": {"k": "v"},
			"https://b.example.com": {"k": "v"},
		})
		assert.True(t, strings.Contains(script, "seed[location.origin]"))
	})
}

func TestStorageStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "states", "storage_state.json")

	state := &schemas.StorageState{
		Cookies: []schemas.Cookie{
			{Name: "sid", Value: "v1", Domain: "example.com", Path: "/", HTTPOnly: true},
		},
		LocalStorage: map[string]map[string]string{
			"https://example.com": {"auth_token": "tok"},
		},
		CapturedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, SaveStorageState(path, state))

	loaded, err := LoadStorageState(path)
	require.NoError(t, err)
	assert.Equal(t, state.Cookies, loaded.Cookies)
	assert.Equal(t, state.LocalStorage, loaded.LocalStorage)
	assert.False(t, loaded.Empty())
}

func TestLoadStorageStateErrors(t *testing.T) {
	_, err := LoadStorageState(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestBuildAllocatorOptions(t *testing.T) {
	baseCfg := config.NewDefault()
	baseCfg.Browser.DisableCache = false
	base := &Manager{logger: zap.NewNop(), cfg: baseCfg}
	baseOpts := base.buildAllocatorOptions()

	// The defaults are kept and the override flags are appended after them.
	assert.Greater(t, len(baseOpts), len(chromedp.DefaultExecAllocatorOptions))

	cfg := config.NewDefault()
	cfg.Browser.DisableCache = true
	cfg.Browser.Args = []string{"--lang=en-US", "--mute-audio"}
	tuned := &Manager{logger: zap.NewNop(), cfg: cfg}
	assert.Len(t, tuned.buildAllocatorOptions(), len(baseOpts)+3)
}

func TestManagerShutdownWaitsForSessions(t *testing.T) {
	defer goleak.VerifyNone(t)

	allocCtx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:          zap.NewNop(),
		allocatorCtx:    allocCtx,
		allocatorCancel: cancel,
	}

	m.wg.Add(1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		m.wg.Done()
	}()

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Error(t, allocCtx.Err())
}

func TestManagerShutdownDeadline(t *testing.T) {
	allocCtx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		logger:          zap.NewNop(),
		allocatorCtx:    allocCtx,
		allocatorCancel: cancel,
	}

	// A session that never closes must not block shutdown past the deadline.
	m.wg.Add(1)
	defer m.wg.Done()

	ctx, cancelDeadline := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelDeadline()
	require.NoError(t, m.Shutdown(ctx))
	assert.Error(t, allocCtx.Err())
}
