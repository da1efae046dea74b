// File: internal/executor/executor.go

// Package executor replays planner-authored flows against a live site, one
// flow at a time, across the requested viewport profiles.
package executor

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/browser"
	"github.com/flightcheck-dev/flightcheck/internal/config"
)

// defaultWaitDuration applies when a wait step's value does not parse.
const defaultWaitDuration = time.Second

// minCandidateTimeout keeps a long OR-chain from starving each candidate of
// any realistic chance to resolve.
const minCandidateTimeout = 500 * time.Millisecond

// Session is the per-flow browser surface. The concrete implementation is
// *browser.Session; tests substitute a fake.
type Session interface {
	Navigate(rawURL string) error
	Click(t browser.Target, timeout time.Duration) error
	Fill(t browser.Target, value string, timeout time.Duration) error
	WaitVisible(t browser.Target, timeout time.Duration) error
	Screenshot() ([]byte, error)
	Close()
}

// Browser opens a fresh session per (flow, viewport) combination, emulating
// the viewport and pre-seeded with the login state when one exists.
type Browser interface {
	NewFlowSession(ctx context.Context, viewport config.ViewportProfile, state *schemas.StorageState) (Session, error)
}

// Authenticator performs the single optional login before any flow runs.
type Authenticator interface {
	Login(ctx context.Context, baseURL string, creds schemas.CrawlCredentials) (*schemas.AuthResult, *schemas.StorageState)
}

// Screenshots persists captured images and reports where they landed.
type Screenshots interface {
	SaveScreenshot(name string, png []byte) (string, error)
}

type Executor struct {
	logger  *zap.Logger
	cfg     *config.Config
	browser Browser
	auth    Authenticator
	shots   Screenshots
}

func New(logger *zap.Logger, cfg *config.Config, b Browser, a Authenticator, shots Screenshots) *Executor {
	return &Executor{
		logger:  logger.Named("executor"),
		cfg:     cfg,
		browser: b,
		auth:    a,
		shots:   shots,
	}
}

// Execute runs every flow under every requested viewport, highest priority
// first, until done or the wall-clock budget runs out. Combinations beyond
// the budget are silently absent from the results, never reported as skipped.
func (e *Executor) Execute(ctx context.Context, flows []schemas.FlowPlan, baseURL string, maxDuration time.Duration, account *schemas.TestAccount, viewportNames []string) ([]schemas.ResultPayload, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("base URL %q is not absolute: %w", baseURL, err)
	}
	if maxDuration <= 0 {
		maxDuration = e.cfg.Executor.MaxDuration
	}

	viewports, unknown := e.cfg.ResolveViewports(viewportNames)
	for _, name := range unknown {
		e.logger.Warn("Ignoring unknown viewport", zap.String("viewport", name))
	}
	if len(viewports) == 0 {
		return nil, fmt.Errorf("no usable viewports among %v", viewportNames)
	}

	sorted := make([]schemas.FlowPlan, len(flows))
	copy(sorted, flows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	var state *schemas.StorageState
	if account != nil && e.auth != nil {
		if creds, ok := account.Credentials(); ok {
			result, captured := e.auth.Login(ctx, baseURL, creds)
			if result != nil && result.Success {
				state = captured
			} else if result != nil {
				e.logger.Warn("Authentication failed, executing flows anonymously", zap.String("error", result.Error))
			}
		}
	}

	start := time.Now()
	budgetSpent := func() bool { return time.Since(start) >= maxDuration }

	var results []schemas.ResultPayload
	for _, vp := range viewports {
		if budgetSpent() {
			e.logger.Warn("Time budget exhausted, skipping remaining viewports",
				zap.String("viewport", vp.Name))
			break
		}
		for _, flow := range sorted {
			if budgetSpent() {
				e.logger.Warn("Time budget exhausted, skipping remaining flows",
					zap.String("viewport", vp.Name),
					zap.String("flow", flow.Name))
				break
			}
			results = append(results, e.runFlow(ctx, flow, vp, baseURL, state))
		}
	}
	return results, nil
}

// runFlow executes one flow in a fresh session. Fail fast: the first step
// failure is recorded with a screenshot and nothing after it runs.
func (e *Executor) runFlow(ctx context.Context, flow schemas.FlowPlan, vp config.ViewportProfile, baseURL string, state *schemas.StorageState) schemas.ResultPayload {
	flowStart := time.Now()
	payload := schemas.ResultPayload{
		FlowName: flow.Name,
		Status:   schemas.FlowPassed,
		Viewport: vp.Name,
	}

	e.logger.Info("Executing flow",
		zap.String("flow", flow.Name),
		zap.String("viewport", vp.Name),
		zap.Int("steps", len(flow.Steps)))

	sess, err := e.browser.NewFlowSession(ctx, vp, state)
	if err != nil {
		payload.Status = schemas.FlowFailed
		payload.ErrorMessage = fmt.Sprintf("could not open browsing context: %v", err)
		payload.DurationMs = time.Since(flowStart).Milliseconds()
		return payload
	}
	defer sess.Close()

	for i, step := range flow.Steps {
		stepStart := time.Now()
		err := e.executeStep(sess, step, baseURL)
		result := schemas.StepResult{
			Description: step.Description,
			Status:      schemas.StepPassed,
			DurationMs:  time.Since(stepStart).Milliseconds(),
		}
		if err != nil {
			result.Status = schemas.StepFailed
			result.Error = err.Error()
			payload.Steps = append(payload.Steps, result)
			payload.Status = schemas.FlowFailed
			payload.ErrorMessage = fmt.Sprintf("step %d (%s): %v", i+1, step.Description, err)
			e.capture(&payload, sess, screenshotName(flow.ID, vp.Name, strconv.Itoa(i)))
			e.logger.Warn("Flow failed",
				zap.String("flow", flow.Name),
				zap.String("viewport", vp.Name),
				zap.Int("step", i),
				zap.Error(err))
			break
		}
		// A navigation that worked is a transition, not a check; only
		// interaction and assertion steps produce result entries.
		if step.Action != schemas.ActionNavigate {
			payload.Steps = append(payload.Steps, result)
		}
	}

	if payload.Status == schemas.FlowPassed {
		e.capture(&payload, sess, screenshotName(flow.ID, vp.Name, "final"))
	}
	payload.DurationMs = time.Since(flowStart).Milliseconds()
	return payload
}

func screenshotName(flowID, viewport, suffix string) string {
	return fmt.Sprintf("%s-%s-%s.png", flowID, viewport, suffix)
}

func (e *Executor) capture(payload *schemas.ResultPayload, sess Session, name string) {
	if e.shots == nil {
		return
	}
	png, err := sess.Screenshot()
	if err != nil {
		e.logger.Warn("Screenshot capture failed", zap.String("name", name), zap.Error(err))
		return
	}
	loc, err := e.shots.SaveScreenshot(name, png)
	if err != nil {
		e.logger.Warn("Screenshot save failed", zap.String("name", name), zap.Error(err))
		return
	}
	payload.ScreenshotURLs = append(payload.ScreenshotURLs, loc)
}

// executeStep dispatches on the closed action union. Every member is handled
// here; an unlisted action is a planner bug and fails the step.
func (e *Executor) executeStep(sess Session, step schemas.FlowStep, baseURL string) error {
	switch step.Action {
	case schemas.ActionNavigate:
		target, err := resolveNavigation(baseURL, step.Value)
		if err != nil {
			return err
		}
		return sess.Navigate(target)

	case schemas.ActionClick:
		return e.tryCandidates(step.Selector, func(t browser.Target, timeout time.Duration) error {
			return sess.Click(t, timeout)
		})

	case schemas.ActionFill:
		if step.Value == "" {
			return fmt.Errorf("fill step %q has no value", step.Selector)
		}
		return e.tryCandidates(step.Selector, func(t browser.Target, timeout time.Duration) error {
			return sess.Fill(t, step.Value, timeout)
		})

	case schemas.ActionAssert:
		return e.tryCandidates(step.Selector, func(t browser.Target, timeout time.Duration) error {
			return sess.WaitVisible(t, timeout)
		})

	case schemas.ActionWait:
		time.Sleep(parseWaitDuration(step.Value))
		return nil

	case schemas.ActionScreenshot:
		// Screenshots are owned by the flow lifecycle, not individual steps.
		return nil

	default:
		return fmt.Errorf("unknown step action %q", step.Action)
	}
}

// tryCandidates walks the resolved locator candidates in order and succeeds
// on the first one the page accepts. The step timeout is split across
// candidates so the chain as a whole stays bounded.
func (e *Executor) tryCandidates(selector string, attempt func(browser.Target, time.Duration) error) error {
	candidates := ResolveLocator(selector)
	if len(candidates) == 0 {
		return fmt.Errorf("selector %q resolved to no locator candidates", selector)
	}

	timeout := e.cfg.Network.StepTimeout / time.Duration(len(candidates))
	if timeout < minCandidateTimeout {
		timeout = minCandidateTimeout
	}

	var lastErr error
	for _, candidate := range candidates {
		if err := attempt(candidate, timeout); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("no locator candidate for %q resolved: %w", selector, lastErr)
}

func resolveNavigation(baseURL, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("navigate step has no target URL")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("navigate target %q: %w", value, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func parseWaitDuration(value string) time.Duration {
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || ms < 0 {
		return defaultWaitDuration
	}
	return time.Duration(ms) * time.Millisecond
}
