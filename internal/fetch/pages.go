package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly"
)

const (
	bodyKey   = "body"
	statusKey = "status"
)

// PageFetcher downloads lyrics pages through a synchronous colly collector.
type PageFetcher struct {
	collector *colly.Collector
	robots    *RobotsGate
}

// NewPageFetcher builds the collector. robots may be nil to skip robots.txt checks.
func NewPageFetcher(userAgent string, timeout time.Duration, robots *RobotsGate) *PageFetcher {
	opts := []func(*colly.Collector){colly.AllowURLRevisit()}
	if userAgent != "" {
		opts = append(opts, colly.UserAgent(userAgent))
	}
	c := colly.NewCollector(opts...)
	// robots.txt is handled by RobotsGate so the decision can be logged per song.
	c.IgnoreRobotsTxt = true
	// A saved page is never re-fetched, so it must not be truncated.
	c.MaxBodySize = 0
	if timeout > 0 {
		c.SetRequestTimeout(timeout)
	}

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(statusKey, strconv.Itoa(r.StatusCode))
		r.Ctx.Put(bodyKey, string(r.Body))
	})

	return &PageFetcher{collector: c, robots: robots}
}

// Fetch returns the body of a 200 response for pageURL.
func (p *PageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if p.robots != nil {
		allowed, err := p.robots.Allowed(ctx, pageURL)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", fmt.Errorf("fetch %s: %w", pageURL, ErrDisallowed)
		}
	}

	reqCtx := colly.NewContext()
	if err := p.collector.Request(http.MethodGet, pageURL, nil, reqCtx, nil); err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	// colly accepts 201 and 202 as well.
	if code, _ := strconv.Atoi(reqCtx.Get(statusKey)); code != http.StatusOK {
		return "", &StatusError{URL: pageURL, Code: code}
	}
	return reqCtx.Get(bodyKey), nil
}
