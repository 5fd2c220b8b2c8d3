package vmgd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/couchcryptid/vmgd-scraper-service/internal/config"
	"github.com/couchcryptid/vmgd-scraper-service/internal/domain"
	"github.com/couchcryptid/vmgd-scraper-service/internal/observability"
)

const (
	maxRedirects = 10
	maxBackoff   = 8 * time.Second
)

var errTooManyRedirects = errors.New("stopped after too many redirects")

// Fetcher retrieves VMGD pages over HTTP. Transient failures (connection
// errors, timeouts, 5xx) are retried with exponential backoff; 4xx responses
// are definitive and returned immediately. The page must always be fresh —
// there is no caching layer.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	attempts    int
	backoffBase time.Duration
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewFetcher builds a fetcher from the retry settings in cfg.
func NewFetcher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		userAgent:   cfg.UserAgent,
		attempts:    cfg.FetchRetries,
		backoffBase: cfg.FetchBackoffBase,
		logger:      logger,
		metrics:     metrics,
	}
}

// Fetch retrieves one source document. On final failure the returned error is
// a *domain.FetchError carrying the classified cause; it never panics past
// this boundary so the pipeline can continue with other sources.
func (f *Fetcher) Fetch(ctx context.Context, src config.Source) (domain.SourceDocument, error) {
	url := src.URL()
	backoff := f.backoffBase

	var lastErr *domain.FetchError
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			f.metrics.FetchRetries.Inc()
			if !sleepWithContext(ctx, backoff) {
				return domain.SourceDocument{}, lastErr
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		doc, ferr := f.fetchOnce(ctx, url)
		if ferr == nil {
			return doc, nil
		}
		ferr.Attempts = attempt
		lastErr = ferr

		if !retryable(ferr) {
			break
		}
		f.logger.Warn("fetch failed, retrying",
			"url", url, "cause", ferr.Cause, "status", ferr.Status, "attempt", attempt)
	}
	return domain.SourceDocument{}, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (domain.SourceDocument, *domain.FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.SourceDocument{}, &domain.FetchError{URL: url, Cause: domain.FetchConnection, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.SourceDocument{}, &domain.FetchError{URL: url, Cause: classify(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Drain so the connection can be reused on retry.
		_, _ = io.Copy(io.Discard, resp.Body)
		return domain.SourceDocument{}, &domain.FetchError{
			URL: url, Cause: domain.FetchHTTPStatus, Status: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SourceDocument{}, &domain.FetchError{URL: url, Cause: classify(err), Err: err}
	}

	return domain.SourceDocument{
		URL:       url,
		Body:      body,
		Status:    resp.StatusCode,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// classify maps a transport error onto the fetch-cause taxonomy.
func classify(err error) domain.FetchCause {
	if errors.Is(err, errTooManyRedirects) {
		return domain.FetchRedirectLoop
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FetchTimeout
	}
	return domain.FetchConnection
}

// retryable reports whether another attempt could plausibly succeed.
// 4xx means the request itself is wrong, so retrying is pointless.
func retryable(e *domain.FetchError) bool {
	switch e.Cause {
	case domain.FetchTimeout, domain.FetchConnection:
		return true
	case domain.FetchHTTPStatus:
		return e.Status >= 500
	default:
		return false
	}
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
