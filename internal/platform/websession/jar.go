package websession

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Entry is a cookie together with the URL that set it.
type Entry struct {
	URL    *url.URL
	Cookie *http.Cookie
}

// Jar is a cookiejar.Jar that also remembers what it was given, so the
// cookie set can be written to a cookies.txt file.
type Jar struct {
	inner *cookiejar.Jar

	mu      sync.Mutex
	entries map[string]Entry
}

func NewJar() (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("new cookie jar: %w", err)
	}
	return &Jar{inner: inner, entries: map[string]Entry{}}, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		domain := c.Domain
		if domain == "" {
			domain = u.Hostname()
		}
		path := c.Path
		if path == "" {
			path = defaultPath(u.Path)
		}
		key := strings.ToLower(strings.TrimPrefix(domain, ".")) + ";" + path + ";" + c.Name
		if c.MaxAge < 0 {
			delete(j.entries, key)
			continue
		}
		copied := *c
		copied.Path = path
		j.entries[key] = Entry{URL: u, Cookie: &copied}
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// Entries returns the recorded cookies in a stable order.
func (j *Jar) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	keys := make([]string, 0, len(j.entries))
	for k := range j.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, j.entries[k])
	}
	return out
}

// Has reports whether a cookie with name would be sent to rawURL.
func (j *Jar) Has(rawURL, name string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, c := range j.inner.Cookies(u) {
		if c.Name == name && c.Value != "" {
			return true
		}
	}
	return false
}

func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
