package websession_test

import (
	"net/http"
	"net/url"
	"testing"

	"coursedl/internal/platform/websession"
)

func TestJarRecordsEntriesAndSessionDecorates(t *testing.T) {
	t.Parallel()
	jar, err := websession.NewJar()
	if err != nil {
		t.Fatalf("new jar: %v", err)
	}
	u, _ := url.Parse("https://class.example.org/algo-001/auth")
	jar.SetCookies(u, []*http.Cookie{
		{Name: "csrf_token", Value: "tok", Path: "/algo-001"},
		{Name: "session", Value: "s1"},
	})
	if !jar.Has("https://class.example.org/algo-001/lecture/index", "csrf_token") {
		t.Fatalf("expected csrf_token for course path")
	}
	if jar.Has("https://class.example.org/other/lecture/index", "csrf_token") {
		t.Fatalf("csrf_token must be scoped to the course path")
	}
	if got := len(jar.Entries()); got != 2 {
		t.Fatalf("expected two recorded entries, got %d", got)
	}

	sess := websession.New("algo-001", "user@example.com", jar)
	req, _ := http.NewRequest(http.MethodGet, "https://class.example.org/algo-001/lecture/index", nil)
	sess.Decorate(req)
	if c, err := req.Cookie("csrf_token"); err != nil || c.Value != "tok" {
		t.Fatalf("expected decorated csrf_token cookie, got %v (%v)", c, err)
	}
	if header := sess.CookieHeader("https://class.example.org/algo-001/x"); header == "" {
		t.Fatalf("expected non-empty cookie header")
	}
}

func TestNilSessionHasNoCookies(t *testing.T) {
	t.Parallel()
	var sess *websession.Session
	if got := sess.CookiesFor("https://example.org"); got != nil {
		t.Fatalf("expected nil cookies, got %v", got)
	}
}
