// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SessionOptions shape a new tab at creation time. Viewport switches on device
// emulation; Storage seeds the tab with a previously captured login state.
type SessionOptions struct {
	Viewport *config.ViewportProfile
	Storage  *schemas.StorageState
}

// Session is a single page-tab. All operations run against the tab's own
// chromedp context with a per-operation timeout, so one stuck page never
// wedges the whole run.
type Session struct {
	logger  *zap.Logger
	cfg     *config.Config
	ctx     context.Context
	cancel  context.CancelFunc
	onClose func()
}

func newSession(allocatorCtx context.Context, logger *zap.Logger, cfg *config.Config, opts SessionOptions) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(allocatorCtx)

	s := &Session{
		logger: logger.Named("session"),
		cfg:    cfg,
		ctx:    tabCtx,
		cancel: cancel,
	}

	var actions []chromedp.Action
	if opts.Storage != nil && !opts.Storage.Empty() {
		actions = append(actions, injectStorageState(opts.Storage)...)
	}
	if opts.Viewport != nil {
		actions = append(actions, applyViewport(opts.Viewport)...)
	}
	if len(actions) == 0 {
		// Force tab creation eagerly so launch errors surface here.
		actions = append(actions, chromedp.Navigate("about:blank"))
	}

	setupCtx, cancelSetup := context.WithTimeout(tabCtx, cfg.Network.NavigationTimeout)
	defer cancelSetup()
	if err := chromedp.Run(setupCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	return s, nil
}

func applyViewport(vp *config.ViewportProfile) []chromedp.Action {
	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(vp.Width, vp.Height, 1, vp.Mobile),
		emulation.SetTouchEmulationEnabled(vp.Touch),
	}
	if vp.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(vp.UserAgent))
	}
	return actions
}

// injectStorageState clears whatever the profile accumulated and installs the
// snapshot: cookies directly, localStorage via an init script that runs on
// every document before page scripts do.
func injectStorageState(state *schemas.StorageState) []chromedp.Action {
	actions := []chromedp.Action{
		storage.ClearCookies(),
	}

	if params := cookieParams(state.Cookies); len(params) > 0 {
		actions = append(actions, network.SetCookies(params))
	}

	if script := localStorageSeedScript(state.LocalStorage); script != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}

	return actions
}

func cookieParams(cookies []schemas.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		params = append(params, p)
	}
	return params
}

// localStorageSeedScript builds a script that populates localStorage for the
// matching origin. Data is embedded as JSON, never string-concatenated, so
// captured values cannot break out of the script.
func localStorageSeedScript(byOrigin map[string]map[string]string) string {
	if len(byOrigin) == 0 {
		return ""
	}
	data, err := json.Marshal(byOrigin)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`(() => {
	const seed = %s;
	const items = seed[location.origin];
	if (!items) { return; }
	try {
		for (const [k, v] of Object.entries(items)) {
			localStorage.setItem(k, v);
		}
	} catch (e) {}
})();`, string(data))
}

// run executes actions under a per-operation timeout derived from the tab
// context.
func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads a URL, waits for the document to be ready, then pauses
// briefly so client-side rendering can settle.
func (s *Session) Navigate(rawURL string) error {
	err := s.run(s.cfg.Network.NavigationTimeout,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", rawURL, err)
	}
	if wait := s.cfg.Network.PostLoadWait; wait > 0 {
		_ = s.run(s.cfg.Network.NavigationTimeout, chromedp.Sleep(wait))
	}
	return nil
}

// CurrentURL reports the page location, which may have been rewritten by
// redirects or client-side routing since the last Navigate.
func (s *Session) CurrentURL() (string, error) {
	var loc string
	if err := s.run(s.cfg.Network.StepTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return loc, nil
}

// Title reports the document title.
func (s *Session) Title() (string, error) {
	var title string
	if err := s.run(s.cfg.Network.StepTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

// HTML returns the full serialized document.
func (s *Session) HTML() (string, error) {
	var html string
	if err := s.run(s.cfg.Network.StepTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page HTML: %w", err)
	}
	return html, nil
}

// WaitVisible blocks until the target is rendered or the timeout elapses.
func (s *Session) WaitVisible(t Target, timeout time.Duration) error {
	if err := s.run(timeout, chromedp.WaitVisible(t.Value, t.queryOption())); err != nil {
		return fmt.Errorf("element %q not visible: %w", t.Value, err)
	}
	return nil
}

// Click waits for the target and clicks it.
func (s *Session) Click(t Target, timeout time.Duration) error {
	err := s.run(timeout,
		chromedp.WaitVisible(t.Value, t.queryOption()),
		chromedp.Click(t.Value, t.queryOption()),
	)
	if err != nil {
		return fmt.Errorf("failed to click %q: %w", t.Value, err)
	}
	return nil
}

// Fill clears the target field and types the value into it.
func (s *Session) Fill(t Target, value string, timeout time.Duration) error {
	err := s.run(timeout,
		chromedp.WaitVisible(t.Value, t.queryOption()),
		chromedp.Clear(t.Value, t.queryOption()),
		chromedp.SendKeys(t.Value, value, t.queryOption()),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %q: %w", t.Value, err)
	}
	return nil
}

// Text returns the visible text content of the first matching element.
func (s *Session) Text(t Target, timeout time.Duration) (string, error) {
	var text string
	err := s.run(timeout,
		chromedp.WaitVisible(t.Value, t.queryOption()),
		chromedp.Text(t.Value, &text, t.queryOption()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", t.Value, err)
	}
	return strings.TrimSpace(text), nil
}

// Exists probes for the target without failing the caller on absence.
func (s *Session) Exists(t Target, timeout time.Duration) bool {
	err := s.run(timeout, chromedp.WaitVisible(t.Value, t.queryOption()))
	return err == nil
}

// Screenshot captures the full page as PNG bytes.
func (s *Session) Screenshot() ([]byte, error) {
	var buf []byte
	if err := s.run(s.cfg.Network.StepTimeout, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// CaptureStorage snapshots cookies and the current origin's localStorage.
// HttpOnly cookies come through the CDP storage domain, which sees everything
// the profile holds, not only what page script can read.
func (s *Session) CaptureStorage() (*schemas.StorageState, error) {
	state := &schemas.StorageState{
		LocalStorage: make(map[string]map[string]string),
		CapturedAt:   time.Now().UTC(),
	}

	var cookies []*network.Cookie
	err := s.run(s.cfg.Network.StepTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, schemas.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}

	loc, err := s.CurrentURL()
	if err != nil {
		return nil, err
	}
	origin, ok := originOf(loc)
	if !ok {
		return state, nil
	}

	var kv map[string]string
	err = s.run(s.cfg.Network.StepTimeout, chromedp.Evaluate(`(() => {
	const out = {};
	try {
		for (let i = 0; i < localStorage.length; i++) {
			const k = localStorage.key(i);
			out[k] = localStorage.getItem(k);
		}
	} catch (e) {}
	return out;
})()`, &kv))
	if err != nil {
		return nil, fmt.Errorf("failed to read localStorage: %w", err)
	}
	if len(kv) > 0 {
		state.LocalStorage[origin] = kv
	}
	return state, nil
}

func originOf(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

// Close releases the tab. Safe to call once per session.
func (s *Session) Close() {
	s.cancel()
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
}
