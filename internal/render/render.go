// Package render is the rendering collaborator: it fetches category pages
// through a ChromeDB/browserless function endpoint so the product grid is
// scripted into the DOM before parsing, and enforces the site's politeness
// policy (fixed inter-request delay, one in-flight request).
package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"tmabaso28/pnpscraper/internal/scraper"
	"tmabaso28/pnpscraper/logger"
	"tmabaso28/pnpscraper/services/cache"
)

// Options configures the rendering client.
type Options struct {
	ChromeAddr    string
	RequestDelay  time.Duration
	RenderTimeout time.Duration
	RenderSettle  time.Duration
	PageCacheTTL  time.Duration
	PageCacheSize int
}

// Client implements scraper.Renderer against a ChromeDB-compatible service
// with a direct HTTP fallback.
type Client struct {
	opts       Options
	httpClient *http.Client
	cacheSvc   cache.CacheService
	pageCache  *expirable.LRU[string, string]
	log        *logger.Logger

	mu        sync.Mutex // serializes network dispatch
	lastFetch time.Time
}

// NewClient creates a rendering client. cacheSvc may be nil; it backs the
// cross-process politeness block keys.
func NewClient(opts Options, cacheSvc cache.CacheService) *Client {
	var pageCache *expirable.LRU[string, string]
	if opts.PageCacheSize > 0 {
		pageCache = expirable.NewLRU[string, string](opts.PageCacheSize, nil, opts.PageCacheTTL)
	}

	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.RenderTimeout + 15*time.Second,
		},
		cacheSvc:  cacheSvc,
		pageCache: pageCache,
		log:       logger.ForRenderer(),
	}
}

// FetchRendered fetches one rendered page. Calls are serialized and spaced
// by the configured delay; repeat fetches of the same URL inside the cache
// TTL are served from the in-process page cache without hitting the site.
func (c *Client) FetchRendered(ctx context.Context, pageURL, waitSelector string) (*scraper.RenderedPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pageCache != nil {
		if html, ok := c.pageCache.Get(pageURL); ok {
			c.log.Debug().Str("url", pageURL).Msg("Serving page from cache")
			return c.buildPage(pageURL, html)
		}
	}

	if err := c.waitPoliteness(ctx, pageURL); err != nil {
		return nil, err
	}

	html, err := c.fetchWithChrome(ctx, pageURL, waitSelector)
	if err != nil {
		c.log.Warn().Err(err).Str("url", pageURL).Msg("Rendering service failed, trying direct fetch")
		html, err = c.fetchDirect(ctx, pageURL)
		if err != nil {
			return nil, err
		}
	}

	c.markFetched(pageURL)

	if c.pageCache != nil {
		c.pageCache.Add(pageURL, html)
	}
	return c.buildPage(pageURL, html)
}

// waitPoliteness blocks until the fixed inter-request delay has elapsed
// since the previous dispatch. A memcache block key extends the policy
// across worker processes sharing the cache.
func (c *Client) waitPoliteness(ctx context.Context, pageURL string) error {
	wait := time.Duration(0)

	if !c.lastFetch.IsZero() {
		if elapsed := time.Since(c.lastFetch); elapsed < c.opts.RequestDelay {
			wait = c.opts.RequestDelay - elapsed
		}
	} else if c.cacheSvc != nil {
		if _, err := c.cacheSvc.Get(c.blockKey(pageURL)); err == nil {
			wait = c.opts.RequestDelay
		}
	}

	if wait <= 0 {
		return nil
	}

	c.log.Debug().Dur("wait", wait).Msg("Honoring inter-request delay")
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) markFetched(pageURL string) {
	c.lastFetch = time.Now()
	if c.cacheSvc != nil {
		if err := c.cacheSvc.Set(c.blockKey(pageURL), []byte("1"), c.opts.RequestDelay); err != nil {
			c.log.Debug().Err(err).Msg("Setting politeness block key failed")
		}
	}
}

func (c *Client) blockKey(pageURL string) string {
	host := pageURL
	if parsed, err := url.Parse(pageURL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	return "render_block:" + host
}

func (c *Client) buildPage(pageURL, html string) (*scraper.RenderedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered HTML: %w", err)
	}
	return &scraper.RenderedPage{
		Status:   http.StatusOK,
		FinalURL: pageURL,
		Doc:      doc,
	}, nil
}

// looksLikeHTML guards against rendering-service error payloads being parsed
// as empty documents.
func looksLikeHTML(body string) bool {
	return strings.Contains(body, "<html") || strings.Contains(body, "<body")
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}
	return string(data), nil
}
