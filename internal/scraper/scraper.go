package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"stockwatch-telegram-bot/internal/types"
)

const maxRetries = 3

// userAgents is rotated per request; the catalog blocks repeat clients
// aggressively.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
}

// Client fetches category listings and product details from the store.
type Client struct {
	httpClient *http.Client
	rnd        *rand.Rand

	// backoffUnit scales all retry and pacing delays.
	backoffUnit time.Duration
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		backoffUnit: time.Second,
	}
}

// FetchCategory scrapes the current snapshot set for a tracked category.
// It returns a *NetworkError for transient fetch failures and a
// *ParseError when the page layout no longer matches.
func (c *Client) FetchCategory(ctx context.Context, cat types.Category) ([]types.ProductSnapshot, error) {
	body, err := c.fetch(ctx, cacheBustURL(cat.URL, c.rnd))
	if err != nil {
		return nil, err
	}

	products, err := parseListing(body, cat)
	if err != nil {
		return nil, err
	}

	// Cards without size markup need the product detail page. A size
	// fetch failure downgrades the product to "in stock, sizes unknown"
	// instead of failing the whole scrape.
	for i := range products {
		if len(products[i].Sizes) > 0 || products[i].ProductURL == "" {
			continue
		}
		c.pause(ctx)
		detail, err := c.fetch(ctx, products[i].ProductURL)
		if err != nil {
			log.Debugf("could not fetch sizes for %s: %v", products[i].ID, err)
			products[i].Sizes = defaultSizes()
			continue
		}
		sizes := parseSizes(detail)
		if len(sizes) == 0 {
			sizes = defaultSizes()
		}
		products[i].Sizes = sizes
	}

	return products, nil
}

func (c *Client) fetch(ctx context.Context, pageURL string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(5*attempt)*c.backoffUnit); err != nil {
				return "", &NetworkError{URL: pageURL, Err: err}
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return "", &NetworkError{URL: pageURL, Err: err}
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			log.Debugf("fetch attempt %d failed for %s: %v", attempt+1, pageURL, err)
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}
			return string(data), nil
		case http.StatusForbidden, http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("blocked with status %d", resp.StatusCode)
			log.Warnf("block detected on %s (status %d), backing off", pageURL, resp.StatusCode)
			if err := sleepCtx(ctx, time.Duration(10*(attempt+1))*c.backoffUnit); err != nil {
				return "", &NetworkError{URL: pageURL, Err: err}
			}
		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
	}

	return "", &NetworkError{URL: pageURL, Err: lastErr}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[c.rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Referer", "https://www.google.com/")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// pause inserts a short random delay between detail-page requests.
func (c *Client) pause(ctx context.Context) {
	delay := time.Duration(1+c.rnd.Intn(2)) * c.backoffUnit
	_ = sleepCtx(ctx, delay)
}

// cacheBustURL appends random query parameters so CDN caches are skipped.
func cacheBustURL(pageURL string, rnd *rand.Rand) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	q := u.Query()
	q.Set("v", fmt.Sprintf("%d", time.Now().Unix()))
	q.Set("r", fmt.Sprintf("%d", 1000+rnd.Intn(9000)))
	u.RawQuery = q.Encode()
	return u.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// defaultSizes marks a product as generically in stock when the size
// breakdown cannot be read. Quantity 1 per standard size keeps restock
// detection working on the 0 -> >0 edge.
func defaultSizes() map[string]int {
	return map[string]int{"S": 1, "M": 1, "L": 1, "XL": 1}
}
