package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jjones-jr/parview/backoff"
)

// Fetcher downloads a dataset to its local cache path. The download
// happens at most once: when the cached file already exists with the
// expected size, Fetch is a no-op.
type Fetcher struct {
	client     *http.Client
	bo         backoff.Strategy
	maxRetries int
	logger     *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithBackoff sets the retry backoff strategy.
func WithBackoff(bo backoff.Strategy) FetcherOption {
	return func(f *Fetcher) { f.bo = bo }
}

// WithMaxRetries sets the number of retries on transient failure.
func WithMaxRetries(n int) FetcherOption {
	return func(f *Fetcher) { f.maxRetries = n }
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher with default retry behavior.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{Timeout: 10 * time.Minute},
		bo:         backoff.DefaultStrategy(),
		maxRetries: 3,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch ensures m.Path holds the dataset. An existing cache file of the
// expected size is reused without touching the network. Downloads go to
// a temp file first and are renamed into place so a crashed fetch never
// leaves a truncated cache.
func (f *Fetcher) Fetch(ctx context.Context, m *Meta) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if fi, err := os.Stat(m.Path); err == nil {
		if fi.Size() == m.ByteSize() {
			f.logger.Debug("dataset cache hit",
				slog.String("dataset", m.Name),
				slog.String("path", m.Path),
			)
			return nil
		}
		f.logger.Warn("dataset cache size mismatch, refetching",
			slog.String("dataset", m.Name),
			slog.Int64("got", fi.Size()),
			slog.Int64("want", m.ByteSize()),
		)
	}

	if m.URL == "" {
		return fmt.Errorf("dataset %q: %w", m.Name, os.ErrNotExist)
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.bo.Delay(attempt)
			f.logger.Info("retrying dataset fetch",
				slog.String("dataset", m.Name),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = f.download(ctx, m); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("dataset: fetch %q: %w", m.Name, lastErr)
}

func (f *Fetcher) download(ctx context.Context, m *Meta) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", m.URL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %s", m.URL, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.Path), filepath.Base(m.Path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if n != m.ByteSize() {
		return fmt.Errorf("downloaded %d bytes, want %d", n, m.ByteSize())
	}

	if err := os.Rename(tmp.Name(), m.Path); err != nil {
		return fmt.Errorf("rename into cache: %w", err)
	}

	f.logger.Info("dataset fetched",
		slog.String("dataset", m.Name),
		slog.String("path", m.Path),
		slog.Int64("bytes", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
