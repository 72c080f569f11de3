package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnyUserName/platepix/internal/raster"
)

// Fetcher defaults.
const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxBytes  = 50 << 20
	DefaultUserAgent = "platepix/1.0"
)

// Fetcher downloads remote images. It never retries; transient failures are
// the caller's to handle.
type Fetcher struct {
	Client    *http.Client
	MaxBytes  int64
	UserAgent string
}

// NewFetcher returns a Fetcher with the default timeout, size cap and UA.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: DefaultTimeout},
		MaxBytes:  DefaultMaxBytes,
		UserAgent: DefaultUserAgent,
	}
}

// Fetch GETs rawURL and returns the body. Every failure, including a bad
// status or a non-image Content-Type, is a *raster.DecodeError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	fail := func(err error) ([]byte, error) {
		return nil, &raster.DecodeError{Source: rawURL, Err: err}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fail(fmt.Errorf("invalid URL: %w", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fail(fmt.Errorf("unsupported URL scheme %q", u.Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fail(fmt.Errorf("create request: %w", err))
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "image/*")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return fail(fmt.Errorf("unreachable: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fail(fmt.Errorf("HTTP %s", resp.Status))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") &&
		!strings.HasPrefix(ct, "application/octet-stream") {
		return fail(fmt.Errorf("not an image (Content-Type: %s)", ct))
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return fail(fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > limit {
		return fail(fmt.Errorf("body exceeds %d bytes", limit))
	}
	if len(data) == 0 {
		return fail(errors.New("empty body"))
	}
	return data, nil
}
