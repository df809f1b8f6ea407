package websession

import (
	"net/http"
	"net/url"
	"strings"
)

// Session is the authenticated context for one course. It only reads from
// its jar, so a single Session can be shared by concurrent fetches.
type Session struct {
	courseID string
	username string
	jar      *Jar
}

func New(courseID, username string, jar *Jar) *Session {
	return &Session{courseID: courseID, username: username, jar: jar}
}

func (s *Session) CourseID() string { return s.courseID }
func (s *Session) Username() string { return s.username }

// CookiesFor returns the cookies that apply to rawURL.
func (s *Session) CookiesFor(rawURL string) []*http.Cookie {
	if s == nil || s.jar == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// CookieHeader renders CookiesFor as a Cookie header value.
func (s *Session) CookieHeader(rawURL string) string {
	cookies := s.CookiesFor(rawURL)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Decorate attaches the session cookies for req.URL.
func (s *Session) Decorate(req *http.Request) {
	for _, c := range s.CookiesFor(req.URL.String()) {
		req.AddCookie(c)
	}
}
