package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roadsafe/crash-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RateLimiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns the per-host rate limiters for the known
// dataset hosts. Unknown hosts get a generous shared default.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www.data.gouv.fr":    rate.NewLimiter(5, 5),
		"static.data.gouv.fr": rate.NewLimiter(5, 5),
	}
}

// HTTPFetcher implements Fetcher using net/http with retry and rate limiting.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	limiters map[string]*rate.Limiter
	retry    resilience.RetryConfig
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "crash-cli/1.0"
	}
	limiters := make(map[string]*rate.Limiter)
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Warn("fetcher: retrying download",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
		retry:    retry,
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rate.NewLimiter(20, 20)
	}
	if lim, ok := f.limiters[u.Host]; ok {
		return lim
	}
	return rate.NewLimiter(20, 20)
}

// get performs one rate-limited GET and classifies retryable status codes
// as transient so the retry layer can act on them.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := f.limiterFor(rawURL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		_ = resp.Body.Close()
		return nil, resilience.NewTransientError(
			eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL),
			resp.StatusCode,
		)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
	}

	return resp, nil
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var resp *http.Response
	err := resilience.Do(ctx, f.retry, func(ctx context.Context) error {
		var getErr error
		resp, getErr = f.get(ctx, rawURL)
		return getErr
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to path via a temp file so a
// failed download never leaves a truncated artifact behind.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return writeToFile(body, path)
}

// writeToFile streams r into path atomically (temp file + rename).
func writeToFile(r io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrapf(err, "fetcher: create dir for %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return 0, eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, eris.Wrapf(err, "fetcher: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, eris.Wrapf(err, "fetcher: rename to %s", path)
	}
	return n, nil
}
