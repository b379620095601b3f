// Package fetcher downloads one channel's Atom feed.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// FeedURL is the Atom endpoint for one channel id.
	FeedURL = "https://www.youtube.com/feeds/videos.xml?channel_id=%s"

	userAgent      = "tubefeed/1.0"
	requestTimeout = 30 * time.Second
)

// FetchError categorizes an HTTP or connection-level fetch failure.
type FetchError struct {
	StatusCode int
	Status     string
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher GETs feed URLs through one shared client. A global rate limiter
// keeps concurrent channel fetches polite toward the endpoint. Retry policy
// lives with the updater, not here.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	log     *logrus.Logger
}

// New creates a Fetcher. A nil client gets a default one with a request
// timeout; baseURL overrides FeedURL in tests.
func New(client *http.Client, log *logrus.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Fetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(20), 5),
		baseURL: FeedURL,
		log:     log,
	}
}

// SetBaseURL replaces the feed URL template. Test hook.
func (f *Fetcher) SetBaseURL(tmpl string) { f.baseURL = tmpl }

// Fetch returns the raw feed body for a channel id. Only HTTP 200 is
// success; anything else, including connection failures, is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, channelID string) ([]byte, error) {
	url := fmt.Sprintf(f.baseURL, channelID)

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	f.log.WithFields(logrus.Fields{"status": resp.Status, "url": url}).Debug("fetched feed")

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Status: resp.Status, URL: url, Err: err}
	}
	return body, nil
}
