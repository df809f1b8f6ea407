package out

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"coursedl/internal/modules/auth/domain"
	authout "coursedl/internal/modules/auth/port/out"
	"coursedl/internal/platform/config"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/websession"
)

const (
	csrfCookie  = "csrf_token"
	authCookie  = "CAUTH"
	signinPage  = "https://accounts.coursera.org/signin"
	maxErrorLen = 200
)

// HTTPAuthenticator performs the platform's cookie based login: fetch a CSRF
// token from the course page, post the credentials, then follow the course
// auth redirector to obtain the class cookies.
type HTTPAuthenticator struct {
	client    *http.Client
	endpoints config.Endpoints
}

// NewHTTPAuthenticator expects a client that does not follow redirects.
func NewHTTPAuthenticator(client *http.Client, endpoints config.Endpoints) authout.Authenticator {
	return &HTTPAuthenticator{client: client, endpoints: endpoints}
}

func (a *HTTPAuthenticator) Login(ctx context.Context, jar *websession.Jar, courseID string, creds domain.Credentials) error {
	csrf, err := a.courseCSRF(ctx, courseID)
	if err != nil {
		return err
	}
	if csrf == "" {
		return fmt.Errorf("%w: failed to find csrf cookie", apperrors.ErrAuth)
	}

	withJar := *a.client
	withJar.Jar = jar
	form := url.Values{"email": {creds.Username}, "password": {creds.Password}}
	headers := http.Header{}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("Cookie", "csrftoken="+csrf)
	headers.Set("Referer", signinPage)
	headers.Set("X-CSRFToken", csrf)
	resp, err := a.do(ctx, &withJar, http.MethodPost, a.endpoints.Login, strings.NewReader(form.Encode()), headers)
	if err != nil {
		return fmt.Errorf("%w: post login: %v", apperrors.ErrAuth, err)
	}
	body := readSnippet(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: cannot login as %s (HTTP %d): %s", apperrors.ErrAuth, creds.Username, resp.StatusCode, body)
	}
	if !jar.Has(a.endpoints.Login, authCookie) {
		return fmt.Errorf("%w: failed to authenticate as %s", apperrors.ErrAuth, creds.Username)
	}
	return a.courseAuth(ctx, jar, courseID)
}

// CourseCookies obtains the class cookies of courseID for a jar that already
// holds the account cookie, without posting credentials again.
func (a *HTTPAuthenticator) CourseCookies(ctx context.Context, jar *websession.Jar, courseID string) error {
	if _, err := a.courseCSRF(ctx, courseID); err != nil {
		return err
	}
	if !jar.Has(a.endpoints.Login, authCookie) {
		return fmt.Errorf("%w: no account cookie for %s", apperrors.ErrAuth, courseID)
	}
	return a.courseAuth(ctx, jar, courseID)
}

// courseCSRF opens the public course page. A 4xx means the course does not
// exist or is not open to the account.
func (a *HTTPAuthenticator) courseCSRF(ctx context.Context, courseID string) (string, error) {
	resp, err := a.do(ctx, a.client, http.MethodGet, config.Expand(a.endpoints.Course, courseID), nil, nil)
	if err != nil {
		return "", fmt.Errorf("%w: get course page: %v", apperrors.ErrAuth, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: could not find course %s (HTTP %d)", apperrors.ErrNotFound, courseID, resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == csrfCookie {
			return c.Value, nil
		}
	}
	return "", nil
}

// courseAuth follows the course auth redirector, which hands out the class
// cookies to a logged in account.
func (a *HTTPAuthenticator) courseAuth(ctx context.Context, jar *websession.Jar, courseID string) error {
	following := *a.client
	following.Jar = jar
	following.CheckRedirect = nil
	resp, err := a.do(ctx, &following, http.MethodGet, config.Expand(a.endpoints.Auth, courseID), nil, nil)
	if err != nil {
		return fmt.Errorf("%w: course auth redirect: %v", apperrors.ErrAuth, err)
	}
	body := readSnippet(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: cannot login on course %s (HTTP %d): %s", apperrors.ErrAuth, courseID, resp.StatusCode, body)
	}
	if !jar.Has(config.Expand(a.endpoints.Lectures, courseID), csrfCookie) {
		return fmt.Errorf("%w: did not find course cookies for %s", apperrors.ErrAuth, courseID)
	}
	return nil
}

// Validate reports whether jar still opens the course class page.
func (a *HTTPAuthenticator) Validate(ctx context.Context, jar *websession.Jar, courseID string) (bool, error) {
	if !jar.Has(config.Expand(a.endpoints.Lectures, courseID), csrfCookie) {
		return false, nil
	}
	withJar := *a.client
	withJar.Jar = jar
	resp, err := a.do(ctx, &withJar, http.MethodHead, config.Expand(a.endpoints.Class, courseID), nil, nil)
	if err != nil {
		return false, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

func (a *HTTPAuthenticator) do(ctx context.Context, client *http.Client, method, rawURL string, body io.Reader, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return client.Do(req)
}

func readSnippet(body io.ReadCloser) string {
	defer func() { _ = body.Close() }()
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorLen))
	return strings.TrimSpace(string(raw))
}
