package out_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	runout "coursedl/internal/modules/run/adapter/out"
	"coursedl/internal/modules/run/domain"
)

func newLedger(t *testing.T) *runout.SQLiteLedger {
	t.Helper()
	ledger, err := runout.NewSQLiteLedger(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestSQLiteLedgerUpsertsByPath(t *testing.T) {
	t.Parallel()
	ledger := newLedger(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := domain.Entry{RunID: "r1", CourseID: "algo", Name: "intro (mp4)", URL: "https://x/1", DestPath: "/dl/algo/01.mp4", Status: domain.StatusFailed, Error: "timeout", UpdatedAt: at}
	if err := ledger.Record(ctx, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	second := first
	second.RunID, second.Status, second.Bytes, second.Error = "r2", domain.StatusDone, 42, ""
	second.UpdatedAt = at.Add(time.Hour)
	if err := ledger.Record(ctx, second); err != nil {
		t.Fatalf("record again: %v", err)
	}

	entries, err := ledger.List(ctx, domain.Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one row per path, got %d", len(entries))
	}
	got := entries[0]
	if got.RunID != "r2" || got.Status != domain.StatusDone || got.Bytes != 42 || got.Error != "" || !got.UpdatedAt.Equal(second.UpdatedAt) {
		t.Fatalf("unexpected entry %+v", got)
	}
}

func TestSQLiteLedgerFilters(t *testing.T) {
	t.Parallel()
	ledger := newLedger(t)
	ctx := context.Background()
	rows := []domain.Entry{
		{CourseID: "algo", DestPath: "/dl/algo/a", Status: domain.StatusDone},
		{CourseID: "algo", DestPath: "/dl/algo/b", Status: domain.StatusFailed, Error: "404"},
		{CourseID: "algo", DestPath: "/dl/algo/c", Status: domain.StatusSkipped},
		{CourseID: "ml", DestPath: "/dl/ml/a", Status: domain.StatusFailed},
	}
	for _, e := range rows {
		e.UpdatedAt = time.Now()
		if err := ledger.Record(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.DestPath, err)
		}
	}

	cases := []struct {
		name  string
		query domain.Query
		want  []string
	}{
		{name: "all", query: domain.Query{}, want: []string{"/dl/algo/a", "/dl/algo/b", "/dl/algo/c", "/dl/ml/a"}},
		{name: "course", query: domain.Query{CourseID: "ml"}, want: []string{"/dl/ml/a"}},
		{name: "failed", query: domain.Query{FailedOnly: true}, want: []string{"/dl/algo/b", "/dl/ml/a"}},
		{name: "statuses", query: domain.Query{CourseID: "algo", Statuses: []string{domain.StatusDone, domain.StatusSkipped}}, want: []string{"/dl/algo/a", "/dl/algo/c"}},
		{name: "limit", query: domain.Query{Limit: 2}, want: []string{"/dl/algo/a", "/dl/algo/b"}},
	}
	for _, tc := range cases {
		entries, err := ledger.List(ctx, tc.query)
		if err != nil {
			t.Fatalf("%s: list: %v", tc.name, err)
		}
		if len(entries) != len(tc.want) {
			t.Fatalf("%s: expected %d entries, got %d", tc.name, len(tc.want), len(entries))
		}
		for i, e := range entries {
			if e.DestPath != tc.want[i] {
				t.Fatalf("%s: entry %d expected %s, got %s", tc.name, i, tc.want[i], e.DestPath)
			}
		}
	}
}

func TestSQLiteLedgerPersistsAcrossOpens(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.db")
	ledger, err := runout.NewSQLiteLedger(path)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := ledger.Record(context.Background(), domain.Entry{CourseID: "algo", DestPath: "/dl/a", Status: domain.StatusDone, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := runout.NewSQLiteLedger(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.List(context.Background(), domain.Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected persisted entry, got %d", len(entries))
	}
}

func TestM3UWriter(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "01_week-1", "01_week-1.m3u")
	err := runout.NewM3UWriter().Write(context.Background(), domain.Playlist{
		Path:    path,
		Entries: []string{"01_intro.mp4", "02_merge.mp4"},
	})
	if err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read playlist: %v", err)
	}
	if string(raw) != "#EXTM3U\n01_intro.mp4\n02_merge.mp4\n" {
		t.Fatalf("unexpected playlist %q", raw)
	}
}

func TestShellHookRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	t.Parallel()
	dir := t.TempDir()
	var stdout bytes.Buffer
	hooks := runout.NewShellHookRunner(&stdout, &bytes.Buffer{})

	if err := hooks.Run(context.Background(), dir, "pwd && echo done > marker"); err != nil {
		t.Fatalf("run hook: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Fatalf("expected hook to run in %s: %v", dir, err)
	}
	if stdout.Len() == 0 {
		t.Fatalf("expected hook output to be forwarded")
	}
	if err := hooks.Run(context.Background(), dir, "exit 3"); err == nil {
		t.Fatalf("expected failing hook to return an error")
	}
}
