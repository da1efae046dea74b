// File: internal/crawler/adapters.go
package crawler

import (
	"context"

	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/auth"
	"github.com/flightcheck-dev/flightcheck/internal/browser"
)

// chromeBrowser adapts the browser manager to the crawler's Browser
// interface. Tabs are plain, no viewport or storage seeding, because crawl
// tabs inherit the shared profile directly.
type chromeBrowser struct {
	manager *browser.Manager
}

func NewChromeBrowser(m *browser.Manager) Browser {
	return &chromeBrowser{manager: m}
}

func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	return b.manager.NewSession(ctx, browser.SessionOptions{})
}

// loginAdapter runs the authenticator on a dedicated tab and, on success,
// persists the captured storage state for later execution runs.
type loginAdapter struct {
	logger        *zap.Logger
	manager       *browser.Manager
	authenticator *auth.Authenticator
	statePath     string
}

func NewLoginAdapter(logger *zap.Logger, m *browser.Manager, a *auth.Authenticator, statePath string) Authenticator {
	return &loginAdapter{
		logger:        logger.Named("login"),
		manager:       m,
		authenticator: a,
		statePath:     statePath,
	}
}

func (l *loginAdapter) Login(ctx context.Context, baseURL string, creds schemas.CrawlCredentials) *schemas.AuthResult {
	sess, err := l.manager.NewSession(ctx, browser.SessionOptions{})
	if err != nil {
		return &schemas.AuthResult{Success: false, Error: "could not open login tab: " + err.Error()}
	}
	defer sess.Close()

	result, state := l.authenticator.Authenticate(ctx, sess, baseURL, creds)
	if result.Success && state != nil && l.statePath != "" {
		if err := browser.SaveStorageState(l.statePath, state); err != nil {
			l.logger.Warn("Could not persist storage state", zap.Error(err))
		}
	}
	return result
}
