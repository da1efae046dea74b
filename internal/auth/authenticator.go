// File: internal/auth/authenticator.go

// Package auth drives form logins. It fills a login page using configured or
// heuristic selectors, judges success from the resulting URL or a configured
// indicator, and hands back the session's storage state for reuse.
package auth

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/browser"
	"github.com/flightcheck-dev/flightcheck/internal/config"
)

// loginPagePattern identifies URLs that still look like a login page. Landing
// on one of these after submit means the credentials were rejected.
var loginPagePattern = regexp.MustCompile(`(?i)/(login|signin|sign-in)`)

// Fallback chains, tried in order when no selector override is configured.
// The generic text-input fallback is last because it can also match search
// boxes on pages that embed the login form.
var (
	emailFallbacks = []string{
		`input[type="email"]`,
		`input[name="email"]`,
		`input[name="username"]`,
		`input[type="text"]`,
	}
	passwordFallbacks = []string{
		`input[type="password"]`,
		`input[name="password"]`,
	}
	submitFallbacks = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`form button`,
	}
	errorProbes = []string{
		`[role="alert"]`,
		`.error`,
		`.alert`,
		`.text-red-500`,
	}
)

// candidateTimeout bounds each probe within a fallback chain so a chain of
// misses cannot eat the whole auth budget.
const candidateTimeout = 2 * time.Second

const pollInterval = 250 * time.Millisecond

// Session is the slice of browser capability the authenticator needs. The
// concrete implementation is *browser.Session; tests substitute a fake.
type Session interface {
	Navigate(rawURL string) error
	CurrentURL() (string, error)
	Fill(t browser.Target, value string, timeout time.Duration) error
	Click(t browser.Target, timeout time.Duration) error
	WaitVisible(t browser.Target, timeout time.Duration) error
	Exists(t browser.Target, timeout time.Duration) bool
	Text(t browser.Target, timeout time.Duration) (string, error)
	CaptureStorage() (*schemas.StorageState, error)
}

// Authenticator performs at most one login attempt per run. There is no retry
// loop; a failed attempt degrades the run to anonymous operation.
type Authenticator struct {
	logger *zap.Logger
	cfg    *config.Config
}

func New(logger *zap.Logger, cfg *config.Config) *Authenticator {
	return &Authenticator{
		logger: logger.Named("authenticator"),
		cfg:    cfg,
	}
}

// Authenticate runs the full login sequence. It never returns an error;
// every failure mode is folded into AuthResult so the caller can log and
// continue anonymously. The storage state is non-nil only on success.
func (a *Authenticator) Authenticate(ctx context.Context, sess Session, baseURL string, creds schemas.CrawlCredentials) (*schemas.AuthResult, *schemas.StorageState) {
	loginURL, err := resolveLoginURL(baseURL, creds.LoginURL)
	if err != nil {
		return failure(fmt.Sprintf("invalid login URL: %v", err)), nil
	}

	a.logger.Info("Attempting form login", zap.String("login_url", loginURL))

	if err := sess.Navigate(loginURL); err != nil {
		return failure(fmt.Sprintf("login page did not load: %v", err)), nil
	}

	if err := a.fillField(sess, creds.EmailSelector, emailFallbacks, creds.Email); err != nil {
		return failure(err.Error()), nil
	}
	if err := a.fillField(sess, creds.PasswordSelector, passwordFallbacks, creds.Password); err != nil {
		return failure(err.Error()), nil
	}
	if err := a.clickSubmit(sess, creds.SubmitSelector); err != nil {
		return failure(err.Error()), nil
	}

	finalURL, ok := a.awaitOutcome(ctx, sess, creds.SuccessIndicator)
	if !ok {
		reason := a.probeErrorMessage(sess)
		a.logger.Warn("Login judged failed",
			zap.String("final_url", finalURL),
			zap.String("reason", reason))
		return failure(reason), nil
	}

	state, err := sess.CaptureStorage()
	if err != nil {
		// The login itself worked; without storage state later sessions
		// just cannot be pre-seeded with it.
		a.logger.Warn("Login succeeded but storage capture failed", zap.Error(err))
	}

	a.logger.Info("Login succeeded", zap.String("post_login_url", finalURL))
	return &schemas.AuthResult{Success: true, PostLoginURL: finalURL}, state
}

func failure(reason string) *schemas.AuthResult {
	return &schemas.AuthResult{Success: false, Error: reason}
}

// resolveLoginURL accepts an absolute URL, a path relative to the base, or
// nothing at all, in which case /login under the base is assumed.
func resolveLoginURL(baseURL, loginURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("base URL %q is not absolute", baseURL)
	}
	if loginURL == "" {
		loginURL = "/login"
	}
	ref, err := url.Parse(loginURL)
	if err != nil {
		return "", fmt.Errorf("login URL %q: %w", loginURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// fillField tries the override first, then the fallback chain. The first
// present candidate wins; a fill error on it is terminal rather than a reason
// to keep walking the chain.
func (a *Authenticator) fillField(sess Session, override string, fallbacks []string, value string) error {
	for _, sel := range selectorChain(override, fallbacks) {
		target := browser.CSS(sel)
		if !sess.Exists(target, candidateTimeout) {
			continue
		}
		if err := sess.Fill(target, value, a.cfg.Network.StepTimeout); err != nil {
			return fmt.Errorf("found field %q but could not fill it: %w", sel, err)
		}
		return nil
	}
	return fmt.Errorf("no login field matched any of %s", strings.Join(selectorChain(override, fallbacks), ", "))
}

func (a *Authenticator) clickSubmit(sess Session, override string) error {
	for _, sel := range selectorChain(override, submitFallbacks) {
		target := browser.CSS(sel)
		if !sess.Exists(target, candidateTimeout) {
			continue
		}
		if err := sess.Click(target, a.cfg.Network.StepTimeout); err != nil {
			return fmt.Errorf("found submit control %q but could not click it: %w", sel, err)
		}
		return nil
	}
	return fmt.Errorf("no submit control matched any of %s", strings.Join(selectorChain(override, submitFallbacks), ", "))
}

func selectorChain(override string, fallbacks []string) []string {
	if override != "" {
		return append([]string{override}, fallbacks...)
	}
	return fallbacks
}

// awaitOutcome decides whether the login took. With a URL-prefix indicator it
// polls the location; with a CSS indicator it waits for the element; with
// neither it waits for navigation away from a login-looking URL. Whatever the
// indicator said, a final URL still matching the login pattern is a failure.
func (a *Authenticator) awaitOutcome(ctx context.Context, sess Session, indicator string) (string, bool) {
	deadline := time.Now().Add(a.cfg.Network.AuthTimeout)

	switch {
	case strings.HasPrefix(indicator, "/"):
		a.pollLocation(ctx, sess, deadline, func(u *url.URL) bool {
			return strings.HasPrefix(u.Path, indicator)
		})
	case indicator != "":
		_ = sess.WaitVisible(browser.CSS(indicator), a.cfg.Network.AuthTimeout)
	default:
		a.pollLocation(ctx, sess, deadline, func(u *url.URL) bool {
			return !loginPagePattern.MatchString(u.Path)
		})
	}

	finalURL, err := sess.CurrentURL()
	if err != nil {
		return "", false
	}
	parsed, err := url.Parse(finalURL)
	if err != nil {
		return finalURL, false
	}
	return finalURL, !loginPagePattern.MatchString(parsed.Path)
}

func (a *Authenticator) pollLocation(ctx context.Context, sess Session, deadline time.Time, done func(*url.URL) bool) {
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		loc, err := sess.CurrentURL()
		if err == nil {
			if u, perr := url.Parse(loc); perr == nil && done(u) {
				return
			}
		}
		time.Sleep(pollInterval)
	}
}

// probeErrorMessage looks for an adjacent alert element to attach a reason to
// the failure. Strictly best effort under the short probe timeout.
func (a *Authenticator) probeErrorMessage(sess Session) string {
	for _, sel := range errorProbes {
		text, err := sess.Text(browser.CSS(sel), a.cfg.Network.ErrorProbeTimeout)
		if err != nil || text == "" {
			continue
		}
		return fmt.Sprintf("login failed: %s", text)
	}
	return "login failed: still on login page after submit"
}
