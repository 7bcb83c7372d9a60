package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "combinecal/internal/log"
)

// Source represents a single remote ICS feed.
type Source struct {
	// Name is the human-friendly label; combined events carry it as a
	// summary suffix.
	Name string
	// Description is free-form metadata shown in listings.
	Description string
	// URL is the ICS endpoint.
	URL string
}

// FetchError reports a failed attempt to retrieve one feed.
// StatusCode is zero for transport-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", redactURL(e.URL), e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", redactURL(e.URL), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves raw ICS bodies over HTTP. One GET per call, no
// retries, no caching; the client timeout bounds each fetch.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose requests time out after the given
// duration. A non-positive timeout falls back to 30 seconds.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch retrieves the raw calendar document at url.
// Transport failures and non-2xx statuses return a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("empty feed URL")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	appLog.Debug("feed fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	appLog.Debug("feed fetch done", "url", redactURL(url), "bytes", len(body))
	return body, nil
}

// redactURL hides sensitive parts of a feed URL for logging purposes.
// Feed URLs routinely embed access tokens in paths or query strings.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	// Find scheme separator.
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	// Find next slash after host.
	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}

	return u[:j] + redactedSuffix
}
