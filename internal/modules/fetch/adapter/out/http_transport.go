package out

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	fetchout "coursedl/internal/modules/fetch/port/out"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/websession"
)

// HTTPTransport streams responses to disk. A non-nil limiter is shared by
// every download, so the limit applies to aggregate throughput.
type HTTPTransport struct {
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPTransport(client *http.Client, limiter *rate.Limiter) fetchout.Transport {
	return &HTTPTransport{client: client, limiter: limiter}
}

// NewLimiter returns a token bucket for bytesPerSecond, or nil for no limit.
func NewLimiter(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(bytesPerSecond)
	if burst < 32*1024 {
		burst = 32 * 1024
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

func (t *HTTPTransport) Download(ctx context.Context, session *websession.Session, rawURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", apperrors.ErrInvalidInput, err)
	}
	session.Decorate(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := statusError(resp.StatusCode); err != nil {
		return 0, err
	}

	file, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: create temp file: %v", apperrors.ErrIO, err)
	}
	var body io.Reader = resp.Body
	if t.limiter != nil {
		body = &throttledReader{ctx: ctx, r: resp.Body, limiter: t.limiter}
	}
	n, copyErr := io.Copy(fileWriter{file}, body)
	closeErr := file.Close()
	switch {
	case copyErr != nil && errors.Is(copyErr, apperrors.ErrIO):
		return n, copyErr
	case copyErr != nil:
		return n, fmt.Errorf("%w: read body: %v", apperrors.ErrNetwork, copyErr)
	case closeErr != nil:
		return n, fmt.Errorf("%w: close temp file: %v", apperrors.ErrIO, closeErr)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, fmt.Errorf("%w: short body: got %d of %d bytes", apperrors.ErrNetwork, n, resp.ContentLength)
	}
	return n, nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: HTTP %d", apperrors.ErrNetwork, code)
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d", apperrors.ErrAuth, code)
	default:
		return fmt.Errorf("%w: HTTP %d", apperrors.ErrNotFound, code)
	}
}

// fileWriter tags write failures so they are not mistaken for network errors.
type fileWriter struct{ f *os.File }

func (w fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: write temp file: %v", apperrors.ErrIO, err)
	}
	return n, nil
}

type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if burst := t.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
