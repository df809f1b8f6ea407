package out_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	catalogout "coursedl/internal/modules/catalog/adapter/out"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/fakeplatform"
	"coursedl/internal/platform/httpclient"
)

const pageURL = "https://class.example.org/algo-001/lecture/index"

func TestGoqueryParserReadsSectionsAndLinks(t *testing.T) {
	t.Parallel()
	page := fakeplatform.LecturesPage([]fakeplatform.Section{
		{Name: "Week 1: Introduction", Lectures: []fakeplatform.Lecture{
			{Name: "Why Study Algorithms?  (4 min)", Resources: []fakeplatform.Link{
				{Href: "https://cdn.example.org/lecture1.mp4", Title: "Video (MP4)"},
				{Href: "/algo-001/lecture/subtitles?q=1_en&format=srt", Title: "Subtitles (srt)"},
				{Href: "/algo-001/lecture/download?lecture_id=1", Title: "Video (MP4)"},
				{Href: "/algo-001/lecture/view?lecture_id=1", Title: "Discuss"},
			}},
			{Name: "Course Logistics", Resources: []fakeplatform.Link{
				{Href: "notes1.pdf", Title: "Lecture Notes"},
			}},
		}},
		{Name: "Week 2", Lectures: []fakeplatform.Lecture{
			{Name: "Merge Sort", Resources: nil},
		}},
	})

	sections, err := catalogout.NewGoqueryParser().Parse([]byte(page), pageURL)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	first := sections[0]
	if first.Index != 1 || first.Name != "Week 1: Introduction" {
		t.Fatalf("unexpected section %d %q", first.Index, first.Name)
	}
	if len(first.Lectures) != 2 || first.Lectures[0].Name != "Why Study Algorithms? (4 min)" {
		t.Fatalf("unexpected lectures %+v", first.Lectures)
	}
	links := first.Lectures[0].Links
	if len(links) != 3 {
		t.Fatalf("expected 3 usable links, got %d: %+v", len(links), links)
	}
	wantExt := []string{"mp4", "srt", "mp4"}
	for i, link := range links {
		if link.Ext != wantExt[i] {
			t.Fatalf("link %d: expected ext %s, got %s", i, wantExt[i], link.Ext)
		}
	}
	if links[1].URL != "https://class.example.org/algo-001/lecture/subtitles?q=1_en&format=srt" {
		t.Fatalf("expected resolved subtitle url, got %s", links[1].URL)
	}
	if got := first.Lectures[1].Links[0].URL; got != "https://class.example.org/algo-001/lecture/notes1.pdf" {
		t.Fatalf("expected relative link resolved against page, got %s", got)
	}
	if len(sections[1].Lectures) != 1 || len(sections[1].Lectures[0].Links) != 0 {
		t.Fatalf("expected empty lecture in second section")
	}
}

func TestGoqueryParserHonorCodePageHasNoSections(t *testing.T) {
	t.Parallel()
	sections, err := catalogout.NewGoqueryParser().Parse([]byte("<html><body><h2>Please accept the Honor Code</h2></body></html>"), pageURL)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("expected no sections, got %d", len(sections))
	}
}

func TestHTTPPageSourceStatusMapping(t *testing.T) {
	t.Parallel()
	srv := fakeplatform.New(t)
	srv.AddCourse(fakeplatform.Course{ID: "algo-001", Sections: []fakeplatform.Section{{Name: "Week 1"}}})
	client, err := httpclient.New(httpclient.Options{ConnectTimeout: 5 * time.Second, ReadTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	source := catalogout.NewHTTPPageSource(client, srv.Endpoints())
	sess := srv.NewSession(t, "algo-001", "ada@example.com")

	page, err := source.FetchLectures(context.Background(), sess, "algo-001")
	if err != nil {
		t.Fatalf("fetch lectures: %v", err)
	}
	if len(page) == 0 {
		t.Fatalf("expected page body")
	}

	if _, err := source.FetchLectures(context.Background(), sess, "missing-001"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown course, got %v", err)
	}

	srv.ExpireSessions()
	if _, err := source.FetchLectures(context.Background(), sess, "algo-001"); !errors.Is(err, apperrors.ErrAuth) {
		t.Fatalf("expected ErrAuth for expired session, got %v", err)
	}
}

func TestFilePageCache(t *testing.T) {
	t.Parallel()
	cache := catalogout.NewFilePageCache()
	path := filepath.Join(t.TempDir(), "pages", "algo.html")

	if _, ok, err := cache.Load(context.Background(), path); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Store(context.Background(), path, []byte("<html></html>")); err != nil {
		t.Fatalf("store page: %v", err)
	}
	page, ok, err := cache.Load(context.Background(), path)
	if err != nil || !ok || string(page) != "<html></html>" {
		t.Fatalf("expected cached page, got %q ok=%v err=%v", page, ok, err)
	}
}
