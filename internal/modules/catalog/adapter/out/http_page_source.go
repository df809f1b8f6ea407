package out

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	catalogout "coursedl/internal/modules/catalog/port/out"
	"coursedl/internal/platform/config"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/websession"
)

const maxPageSize = 32 << 20

// HTTPPageSource fetches the lectures index with the session cookies. The
// client must not follow redirects so a bounce to the login page is seen.
type HTTPPageSource struct {
	client    *http.Client
	endpoints config.Endpoints
}

func NewHTTPPageSource(client *http.Client, endpoints config.Endpoints) catalogout.PageSource {
	return &HTTPPageSource{client: client, endpoints: endpoints}
}

func (s *HTTPPageSource) FetchLectures(ctx context.Context, session *websession.Session, courseID string) ([]byte, error) {
	target := config.Expand(s.endpoints.Lectures, courseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperrors.ErrInvalidInput, err)
	}
	session.Decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get lectures of %s: %v", apperrors.ErrNetwork, courseID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
	case code == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: session for %s expired", apperrors.ErrAuth, courseID)
	case code >= 300 && code < 400:
		location := strings.ToLower(resp.Header.Get("Location"))
		if strings.Contains(location, "login") || strings.Contains(location, "signin") || strings.Contains(location, "auth") {
			return nil, fmt.Errorf("%w: redirected to login while listing %s", apperrors.ErrAuth, courseID)
		}
		return nil, fmt.Errorf("%w: lectures of %s moved to %s", apperrors.ErrNotFound, courseID, resp.Header.Get("Location"))
	case code == http.StatusTooManyRequests || code >= 500:
		return nil, fmt.Errorf("%w: lectures of %s: HTTP %d", apperrors.ErrNetwork, courseID, code)
	default:
		return nil, fmt.Errorf("%w: course %s is not accessible (HTTP %d)", apperrors.ErrNotFound, courseID, code)
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read lectures of %s: %v", apperrors.ErrNetwork, courseID, err)
	}
	return page, nil
}
