// Package fetcher downloads roster exports over HTTP.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/rs/zerolog"
)

// MaxBodySize caps a downloaded roster export
const MaxBodySize = 8 << 20

// ErrNotJSON is returned when a download is not a JSON document, typically
// an HTML login or error page
var ErrNotJSON = errors.New("download is not a JSON document")

// Fetcher downloads roster exports
type Fetcher struct {
	client  *http.Client
	retries int
	backoff time.Duration
	log     zerolog.Logger
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig, log zerolog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		backoff: time.Second,
		log:     log.With().Str("component", "fetcher").Logger(),
	}
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Fetch downloads a roster export. Server errors and network failures are
// retried with linear backoff; client errors and non-JSON bodies are not.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < f.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * f.backoff):
			}
		}

		data, err := f.download(ctx, url)
		if err == nil {
			return data, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, perm.err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		f.log.Warn().Err(err).Str("url", url).Int("attempt", i+1).Msg("roster download failed")
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d retries: %w", f.retries, lastErr)
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &permanentError{err}
	}

	req.Header.Set("User-Agent", "maa-copilot-filter/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, &permanentError{fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)}
	}

	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && mediaType == "text/html" {
		return nil, &permanentError{fmt.Errorf("%w: content type %s", ErrNotJSON, mediaType)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxBodySize {
		return nil, &permanentError{fmt.Errorf("response larger than %d bytes", MaxBodySize)}
	}

	// any content type other than HTML is fine as long as the body is JSON
	if !json.Valid(bytes.TrimSpace(data)) {
		return nil, &permanentError{ErrNotJSON}
	}
	return data, nil
}
