// File: internal/crawler/crawler.go

// Package crawler walks a site breadth first under a small page budget,
// producing a structural PageContext per visited page.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/flightcheck-dev/flightcheck/api/schemas"
	"github.com/flightcheck-dev/flightcheck/internal/config"
	"github.com/flightcheck-dev/flightcheck/internal/extract"
)

// Page is one open browser tab as the crawler sees it.
type Page interface {
	Navigate(rawURL string) error
	CurrentURL() (string, error)
	Title() (string, error)
	HTML() (string, error)
	Close()
}

// Browser opens page-tabs inside the shared browsing context. Tabs share the
// profile, so a login performed on any tab carries over to the rest.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
}

// Authenticator performs the single optional login attempt before crawling.
type Authenticator interface {
	Login(ctx context.Context, baseURL string, creds schemas.CrawlCredentials) *schemas.AuthResult
}

type Crawler struct {
	logger  *zap.Logger
	cfg     *config.Config
	browser Browser
	auth    Authenticator
	limiter *rate.Limiter
}

func New(logger *zap.Logger, cfg *config.Config, b Browser, a Authenticator) *Crawler {
	return &Crawler{
		logger:  logger.Named("crawler"),
		cfg:     cfg,
		browser: b,
		auth:    a,
		limiter: rate.NewLimiter(rate.Limit(cfg.Crawler.RatePerSecond), 1),
	}
}

// Crawl traverses the site starting from priority paths, then the
// authenticated landing URL, then the base URL. Per-page failures are logged
// and skipped; only a broken base URL fails the whole call.
func (c *Crawler) Crawl(ctx context.Context, baseURL string, maxPages int, priorityPaths []string, creds *schemas.CrawlCredentials) (*schemas.CrawlResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q is not absolute", baseURL)
	}
	if maxPages <= 0 {
		maxPages = c.cfg.Crawler.MaxPages
	}

	result := &schemas.CrawlResult{}

	postLoginURL := ""
	if creds != nil && c.auth != nil {
		result.Auth = c.auth.Login(ctx, baseURL, *creds)
		if result.Auth != nil && result.Auth.Success {
			postLoginURL = result.Auth.PostLoginURL
		} else if result.Auth != nil {
			c.logger.Warn("Authentication failed, crawling anonymously", zap.String("error", result.Auth.Error))
		}
	}

	queue := newSeedQueue(base, priorityPaths, postLoginURL)
	visited := make(map[string]bool)

	for len(queue.items) > 0 && len(result.Pages) < maxPages {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("Crawl cancelled", zap.Error(err))
			break
		}

		canonical := queue.pop()
		if visited[canonical] {
			continue
		}
		// Mark before fetching so a failing URL is never dequeued twice.
		visited[canonical] = true

		if err := c.limiter.Wait(ctx); err != nil {
			break
		}

		page, err := c.visit(ctx, canonical)
		if err != nil {
			c.logger.Warn("Skipping page after crawl failure",
				zap.String("url", canonical),
				zap.Error(err))
			continue
		}

		// A redirect may have landed us on a different URL. The visited set is
		// keyed by canonical form, so the landing URL has to be canonicalized
		// and deduplicated too or a redirect target that is also linked would
		// be collected twice.
		landed, ok := canonicalize(base, page.URL)
		if !ok {
			c.logger.Warn("Skipping page that redirected out of scope",
				zap.String("url", canonical),
				zap.String("landed", page.URL))
			continue
		}
		if landed != canonical {
			if visited[landed] {
				c.logger.Info("Skipping already-collected page after redirect",
					zap.String("url", canonical),
					zap.String("landed", landed))
				continue
			}
			visited[landed] = true
		}
		page.URL = landed

		result.Pages = append(result.Pages, *page)
		c.logger.Info("Crawled page",
			zap.String("url", page.URL),
			zap.Int("links", len(page.Links)),
			zap.Int("forms", len(page.Forms)))

		for _, link := range page.Links {
			next, ok := canonicalize(base, link.Href)
			if !ok || visited[next] {
				continue
			}
			queue.push(next)
		}
	}

	return result, nil
}

// visit opens a fresh tab, extracts the page, and always closes the tab.
func (c *Crawler) visit(ctx context.Context, pageURL string) (*schemas.PageContext, error) {
	tab, err := c.browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open page-tab: %w", err)
	}
	defer tab.Close()

	if err := tab.Navigate(pageURL); err != nil {
		return nil, err
	}

	// Redirects and client routing may have moved us; record where we landed.
	landedURL, err := tab.CurrentURL()
	if err != nil || landedURL == "" {
		landedURL = pageURL
	}
	title, err := tab.Title()
	if err != nil {
		return nil, err
	}
	html, err := tab.HTML()
	if err != nil {
		return nil, err
	}

	page, err := extract.PageContext(landedURL, title, html)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// seedQueue is a FIFO with membership tracking so a URL is queued at most
// once even if it keeps turning up in page links.
type seedQueue struct {
	items  []string
	queued map[string]bool
}

func newSeedQueue(base *url.URL, priorityPaths []string, postLoginURL string) *seedQueue {
	q := &seedQueue{queued: make(map[string]bool)}

	for _, p := range priorityPaths {
		if canonical, ok := canonicalize(base, p); ok {
			q.push(canonical)
		}
	}
	if postLoginURL != "" {
		if canonical, ok := canonicalize(base, postLoginURL); ok {
			q.push(canonical)
		}
	}
	if canonical, ok := canonicalize(base, base.String()); ok {
		q.push(canonical)
	}
	return q
}

func (q *seedQueue) push(canonical string) {
	if q.queued[canonical] {
		return
	}
	q.queued[canonical] = true
	q.items = append(q.items, canonical)
}

func (q *seedQueue) pop() string {
	head := q.items[0]
	q.items = q.items[1:]
	return head
}

// assetExtensions lists link targets that are downloads rather than pages.
var assetExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".css": true, ".js": true, ".map": true,
	".pdf": true, ".zip": true, ".gz": true, ".mp4": true, ".webm": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

// canonicalize resolves a raw URL or path against the base and normalizes it
// for deduplication. Only same-origin page URLs survive.
func canonicalize(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	if assetExtensions[strings.ToLower(path.Ext(u.Path))] {
		return "", false
	}

	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String(), true
}
