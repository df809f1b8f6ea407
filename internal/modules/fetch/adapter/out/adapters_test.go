package out_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
	"time"

	fetchout "coursedl/internal/modules/fetch/adapter/out"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/fakeplatform"
	"coursedl/internal/platform/httpclient"
)

func newClient(t *testing.T) *http.Client {
	t.Helper()
	client, err := httpclient.New(httpclient.Options{ConnectTimeout: 5 * time.Second, ReadTimeout: 5 * time.Second, FollowRedirects: true})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestHTTPTransportDownloadsWithSessionCookies(t *testing.T) {
	t.Parallel()
	srv := fakeplatform.New(t)
	srv.AddCourse(fakeplatform.Course{ID: "algo-001", Files: map[string][]byte{"lecture1.mp4": []byte("frames")}})
	sess := srv.NewSession(t, "algo-001", "ada@example.com")
	transport := fetchout.NewHTTPTransport(newClient(t), nil)
	dest := filepath.Join(t.TempDir(), "out.part")

	n, err := transport.Download(context.Background(), sess, srv.FileURL("algo-001", "lecture1.mp4"), dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 bytes, got %d", n)
	}
	if content, _ := os.ReadFile(dest); string(content) != "frames" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestHTTPTransportClassifiesStatus(t *testing.T) {
	t.Parallel()
	srv := fakeplatform.New(t)
	srv.AddCourse(fakeplatform.Course{ID: "algo-001", Files: map[string][]byte{"lecture1.mp4": []byte("frames")}})
	sess := srv.NewSession(t, "algo-001", "ada@example.com")
	transport := fetchout.NewHTTPTransport(newClient(t), nil)
	dest := filepath.Join(t.TempDir(), "out.part")

	cases := []struct {
		status int
		want   error
	}{
		{status: http.StatusServiceUnavailable, want: apperrors.ErrNetwork},
		{status: http.StatusTooManyRequests, want: apperrors.ErrNetwork},
		{status: http.StatusUnauthorized, want: apperrors.ErrAuth},
		{status: http.StatusForbidden, want: apperrors.ErrNotFound},
		{status: http.StatusNotFound, want: apperrors.ErrNotFound},
	}
	for _, tc := range cases {
		srv.FailNext("algo-001", "lecture1.mp4", 1, tc.status)
		_, err := transport.Download(context.Background(), sess, srv.FileURL("algo-001", "lecture1.mp4"), dest)
		if !errors.Is(err, tc.want) {
			t.Fatalf("HTTP %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}

	if _, err := transport.Download(context.Background(), sess, srv.FileURL("algo-001", "missing.mp4"), dest); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing file, got %v", err)
	}
}

func TestHTTPTransportThrottles(t *testing.T) {
	t.Parallel()
	if fetchout.NewLimiter(0) != nil {
		t.Fatalf("expected no limiter for zero rate")
	}
	srv := fakeplatform.New(t)
	payload := bytes.Repeat([]byte("x"), 96*1024)
	srv.AddCourse(fakeplatform.Course{ID: "algo-001", Files: map[string][]byte{"big.mp4": payload}})
	sess := srv.NewSession(t, "algo-001", "ada@example.com")

	limiter := fetchout.NewLimiter(64 * 1024)
	transport := fetchout.NewHTTPTransport(newClient(t), limiter)
	start := time.Now()
	n, err := transport.Download(context.Background(), sess, srv.FileURL("algo-001", "big.mp4"), filepath.Join(t.TempDir(), "big"))
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("expected %d bytes, got %d", len(payload), n)
	}
	// The bucket starts full at 64KiB, so the remaining 32KiB take ~0.5s.
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("expected throttled transfer, took %v", elapsed)
	}
}

func TestExternalTransportArgs(t *testing.T) {
	t.Parallel()
	cases := map[string][]string{
		"wget":  {"https://x/v.mp4", "-O", "/d/v", "--no-cookies", "--no-check-certificate", "--header", "Cookie: a=1"},
		"curl":  {"https://x/v.mp4", "-k", "-#", "-L", "-o", "/d/v", "--cookie", "a=1"},
		"aria2": {"https://x/v.mp4", "-o", "/d/v", "--check-certificate=false", "--log-level=notice", "--max-connection-per-server=4", "--min-split-size=1M", "--allow-overwrite=true", "--header", "Cookie: a=1"},
		"axel":  {"-o", "/d/v", "-n", "4", "-a", "https://x/v.mp4", "-H", "Cookie: a=1"},
	}
	for kind, want := range cases {
		transport, err := fetchout.NewExternalTransport(kind, "")
		if err != nil {
			t.Fatalf("new %s transport: %v", kind, err)
		}
		got := transport.(*fetchout.ExternalTransport).Args("https://x/v.mp4", "/d/v", "a=1")
		if !slices.Equal(got, want) {
			t.Fatalf("%s: expected %v, got %v", kind, want, got)
		}
	}
	if _, err := fetchout.NewExternalTransport("lynx", ""); !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected ErrConfig for unknown downloader, got %v", err)
	}
}

func TestExternalTransportRunsBinary(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("shell script downloader")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-curl")
	body := "#!/bin/sh\nwhile [ $# -gt 0 ]; do\n  if [ \"$1\" = \"-o\" ]; then shift; printf 'payload' > \"$1\"; fi\n  shift\ndone\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	failing := filepath.Join(dir, "broken-curl")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho 'curl: (7) refused' >&2\nexit 7\n"), 0o755); err != nil {
		t.Fatalf("write failing script: %v", err)
	}

	srv := fakeplatform.New(t)
	sess := srv.NewSession(t, "algo-001", "ada@example.com")
	transport, err := fetchout.NewExternalTransport("curl", script)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	dest := filepath.Join(dir, "out.part")
	n, err := transport.Download(context.Background(), sess, srv.FileURL("algo-001", "v.mp4"), dest)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if n != int64(len("payload")) {
		t.Fatalf("expected payload size, got %d", n)
	}

	broken, _ := fetchout.NewExternalTransport("curl", failing)
	_, err = broken.Download(context.Background(), sess, srv.FileURL("algo-001", "v.mp4"), dest)
	if !errors.Is(err, apperrors.ErrNetwork) {
		t.Fatalf("expected ErrNetwork for a failing downloader, got %v", err)
	}

	missing, _ := fetchout.NewExternalTransport("curl", filepath.Join(dir, "nope"))
	_, err = missing.Download(context.Background(), sess, srv.FileURL("algo-001", "v.mp4"), dest)
	if !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected ErrConfig for a missing binary, got %v", err)
	}
}

// minimalPDF assembles a one-page document with a correct xref table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFChecker(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	good := filepath.Join(dir, "notes.pdf")
	bad := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(good, minimalPDF(), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	if err := os.WriteFile(bad, []byte("<html>login required</html>"), 0o644); err != nil {
		t.Fatalf("write broken pdf: %v", err)
	}
	checker := fetchout.NewPDFChecker()

	pages, err := checker.Pages(context.Background(), good)
	if err != nil {
		t.Fatalf("check pdf: %v", err)
	}
	if pages != 1 {
		t.Fatalf("expected one page, got %d", pages)
	}
	if _, err := checker.Pages(context.Background(), bad); err == nil {
		t.Fatalf("expected html masquerading as pdf to fail")
	}
}
