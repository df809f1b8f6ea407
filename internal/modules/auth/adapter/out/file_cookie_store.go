package out

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	authout "coursedl/internal/modules/auth/port/out"
	"coursedl/internal/platform/websession"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File"
	httpOnlyPrefix = "#HttpOnly_"
)

// FileCookieStore reads and writes the Netscape cookies.txt format used by
// browsers' export extensions, curl and wget.
type FileCookieStore struct{}

func NewFileCookieStore() authout.CookieStore {
	return FileCookieStore{}
}

func (FileCookieStore) Load(_ context.Context, path string) (*websession.Jar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	jar, err := websession.NewJar()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("cookies line %d: expected 7 fields, got %d", lineNo, len(fields))
		}
		expires, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("cookies line %d: expires: %w", lineNo, err)
		}
		cookie := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if expires > 0 {
			cookie.Expires = time.Unix(int64(expires), 0)
			if cookie.Expires.Before(now) {
				continue
			}
		}
		host := strings.TrimPrefix(fields[0], ".")
		if strings.EqualFold(fields[1], "TRUE") {
			cookie.Domain = host
		}
		scheme := "http"
		if cookie.Secure {
			scheme = "https"
		}
		jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: cookie.Path}, []*http.Cookie{cookie})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan cookies: %w", err)
	}
	return jar, nil
}

func (FileCookieStore) Save(_ context.Context, path string, jar *websession.Jar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(netscapeHeader + "\n")
	for _, entry := range jar.Entries() {
		c := entry.Cookie
		domain, sub := entry.URL.Hostname(), "FALSE"
		if c.Domain != "" {
			domain, sub = "."+strings.TrimPrefix(c.Domain, "."), "TRUE"
		}
		if c.HttpOnly {
			domain = httpOnlyPrefix + domain
		}
		secure := "FALSE"
		if c.Secure {
			secure = "TRUE"
		}
		var expires int64
		if !c.Expires.IsZero() {
			expires = c.Expires.Unix()
		}
		fmt.Fprintf(&buf, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n", domain, sub, c.Path, secure, expires, c.Name, c.Value)
	}
	// Courses of one run share the per-user file, so each save gets its own temp name.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create cookies temp: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cookies: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cookies: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace cookies: %w", err)
	}
	return nil
}

func (FileCookieStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
