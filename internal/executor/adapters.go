// File: internal/executor/adapters.go
package executor

import (
	"context"

	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/auth"
	"github.com/flightcheck-dev/flightcheck/internal/browser"
	"github.com/flightcheck-dev/flightcheck/internal/config"
)

// chromeBrowser adapts the browser manager to the executor's Browser
// interface. Each flow gets its own tab, emulated for the viewport and
// seeded with the run's login state.
type chromeBrowser struct {
	manager *browser.Manager
}

func NewChromeBrowser(m *browser.Manager) Browser {
	return &chromeBrowser{manager: m}
}

func (b *chromeBrowser) NewFlowSession(ctx context.Context, vp config.ViewportProfile, state *schemas.StorageState) (Session, error) {
	return b.manager.NewSession(ctx, browser.SessionOptions{
		Viewport: &vp,
		Storage:  state,
	})
}

// loginAdapter runs the authenticator on a dedicated tab and persists the
// captured state so a later run can skip the login entirely.
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

func (l *loginAdapter) Login(ctx context.Context, baseURL string, creds schemas.CrawlCredentials) (*schemas.AuthResult, *schemas.StorageState) {
	sess, err := l.manager.NewSession(ctx, browser.SessionOptions{})
	if err != nil {
		return &schemas.AuthResult{Success: false, Error: "could not open login tab: " + err.Error()}, nil
	}
	defer sess.Close()

	result, state := l.authenticator.Authenticate(ctx, sess, baseURL, creds)
	if result.Success && state != nil && l.statePath != "" {
		if err := browser.SaveStorageState(l.statePath, state); err != nil {
			l.logger.Warn("Could not persist storage state", zap.Error(err))
		}
	}
	return result, state
}
