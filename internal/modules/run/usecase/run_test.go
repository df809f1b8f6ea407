package usecase_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	authout "coursedl/internal/modules/auth/adapter/out"
	authport "coursedl/internal/modules/auth/port/out"
	authservice "coursedl/internal/modules/auth/service"
	authusecase "coursedl/internal/modules/auth/usecase"
	catalogout "coursedl/internal/modules/catalog/adapter/out"
	catalogdto "coursedl/internal/modules/catalog/dto"
	catalogservice "coursedl/internal/modules/catalog/service"
	catalogusecase "coursedl/internal/modules/catalog/usecase"
	fetchout "coursedl/internal/modules/fetch/adapter/out"
	fetchservice "coursedl/internal/modules/fetch/service"
	fetchusecase "coursedl/internal/modules/fetch/usecase"
	runout "coursedl/internal/modules/run/adapter/out"
	"coursedl/internal/modules/run/domain"
	"coursedl/internal/modules/run/dto"
	runin "coursedl/internal/modules/run/port/in"
	runport "coursedl/internal/modules/run/port/out"
	"coursedl/internal/modules/run/service"
	"coursedl/internal/modules/run/usecase"
	"coursedl/internal/platform/clock"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/fakeplatform"
	"coursedl/internal/platform/httpclient"
	"coursedl/internal/platform/id"
	"coursedl/internal/platform/logging"
)

const course = "algo-2012-001"

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	tasks    int
	finished []string
	events   []string
}

func (o *recordingObserver) CourseStarted(courseID string, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, courseID)
	o.events = append(o.events, "started "+courseID)
}

func (o *recordingObserver) TaskFinished(domain.TaskResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks++
}

func (o *recordingObserver) CourseFinished(result domain.CourseResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, result.CourseID+":"+result.Outcome())
	o.events = append(o.events, "finished "+result.CourseID)
}

// recordingPrompter logs into the observer's event stream so tests can see
// whether a prompt happened before any course event.
type recordingPrompter struct {
	observer *recordingObserver
	password string
	calls    int
}

func (p *recordingPrompter) Prompt(context.Context, string) (string, error) {
	p.observer.mu.Lock()
	defer p.observer.mu.Unlock()
	p.calls++
	p.observer.events = append(p.observer.events, "prompt")
	return p.password, nil
}

type harness struct {
	srv      *fakeplatform.Server
	runner   runin.Usecase
	observer *recordingObserver
	prompter *recordingPrompter
	dest     string
}

func newHarness(t *testing.T, parallel int) *harness {
	t.Helper()
	srv := fakeplatform.New(t)
	srv.AddUser("ada@example.com", "secret")
	srv.AddCourse(fakeplatform.Course{
		ID: course,
		Sections: []fakeplatform.Section{
			{Name: "Week 1", Lectures: []fakeplatform.Lecture{
				{Name: "Lecture 1", Resources: []fakeplatform.Link{
					{Href: srv.FileURL(course, "lecture1.mp4"), Title: "Video (MP4)"},
					{Href: srv.FileURL(course, "handout1.txt"), Title: "Handout"},
				}},
			}},
		},
		Files: map[string][]byte{
			"lecture1.mp4": []byte("not really a video"),
			"handout1.txt": []byte("read me"),
		},
	})

	root := t.TempDir()
	ledger, err := runout.NewSQLiteLedger(filepath.Join(root, "state", "ledger.db"))
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	observer := &recordingObserver{}
	prompter := &recordingPrompter{observer: observer, password: "secret"}
	runner := wire(t, srv, ledger, observer, prompter, filepath.Join(root, "cache"), parallel)
	return &harness{srv: srv, runner: runner, observer: observer, prompter: prompter, dest: filepath.Join(root, "dl")}
}

func wire(t *testing.T, srv *fakeplatform.Server, ledger *runout.SQLiteLedger, observer *recordingObserver, prompter authport.PasswordPrompter, cacheDir string, parallel int) runin.Usecase {
	t.Helper()
	pages := newClient(t, false)
	files := newClient(t, true)
	log := logging.Discard()

	auth := authusecase.NewInteractor(authservice.NewAuthService(
		authout.NewNetrcCredentialFile(),
		authout.NewFileCookieStore(),
		authout.NewHTTPAuthenticator(pages, srv.Endpoints()),
		prompter,
		cacheDir,
		"coursedl",
		log,
	))
	catalog := catalogusecase.NewInteractor(catalogservice.NewCatalogService(
		catalogout.NewHTTPPageSource(pages, srv.Endpoints()),
		catalogout.NewGoqueryParser(),
		catalogout.NewFilePageCache(),
		srv.Endpoints(),
		log,
	))
	fetch := fetchusecase.NewInteractor(fetchservice.NewFetchService(
		fetchout.NewHTTPTransport(files, nil),
		fetchout.NewPDFChecker(),
		id.RandomHex{},
		fetchservice.Options{Retries: 1, RetryInterval: time.Millisecond},
		log,
	))

	var ledgerPort runport.Ledger
	if ledger != nil {
		ledgerPort = ledger
	}
	svc := service.NewRunService(
		clock.SystemClock{},
		id.UUID{},
		ledgerPort,
		runout.NewM3UWriter(),
		runout.NewShellHookRunner(io.Discard, io.Discard),
		nil,
		observer,
		log,
	)
	return usecase.NewInteractor(svc, auth, catalog, fetch, parallel, log)
}

func newClient(t *testing.T, follow bool) *http.Client {
	t.Helper()
	client, err := httpclient.New(httpclient.Options{ConnectTimeout: 5 * time.Second, ReadTimeout: 5 * time.Second, FollowRedirects: follow})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func (h *harness) input(courses ...string) dto.RunInput {
	return dto.RunInput{
		CourseIDs: courses,
		Username:  "ada@example.com",
		Password:  "secret",
		DestRoot:  h.dest,
	}
}

func TestRunDownloadsThenSkipsOnRerun(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)

	first, err := h.runner.Run(context.Background(), h.input(course))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if first.Failed() || first.Courses[0].Done != 2 || first.Courses[0].Planned != 2 {
		t.Fatalf("unexpected first summary %+v", first.Courses[0])
	}
	video := filepath.Join(h.dest, course, "01_week-1", "01_lecture-1.mp4")
	raw, err := os.ReadFile(video)
	if err != nil {
		t.Fatalf("read video: %v", err)
	}
	if string(raw) != "not really a video" {
		t.Fatalf("unexpected video body %q", raw)
	}
	if _, err := os.Stat(filepath.Join(h.dest, course, "01_week-1", "01_lecture-1.txt")); err != nil {
		t.Fatalf("expected handout: %v", err)
	}

	second, err := h.runner.Run(context.Background(), h.input(course))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Failed() || second.Courses[0].Skipped != 2 || second.Courses[0].Done != 0 {
		t.Fatalf("unexpected second summary %+v", second.Courses[0])
	}
	if h.srv.ResourceHits() != 2 {
		t.Fatalf("expected no resource requests on rerun, got %d total", h.srv.ResourceHits())
	}
	if h.srv.LoginHits() != 1 {
		t.Fatalf("expected cached session reuse, got %d logins", h.srv.LoginHits())
	}
	if first.RunID == second.RunID {
		t.Fatalf("expected distinct run ids")
	}

	history, err := h.runner.History(context.Background(), dto.HistoryInput{CourseID: course})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Status != domain.StatusSkipped || history[0].RunID != second.RunID {
		t.Fatalf("expected two upserted entries from the second run, got %+v", history)
	}
}

func TestRunInvalidCredentialsStopsBeforeListing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	in := h.input(course)
	in.Password = "wrong"

	summary, err := h.runner.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !summary.Failed() || !errors.Is(summary.Courses[0].Err, apperrors.ErrAuth) {
		t.Fatalf("expected auth failure in summary, got %+v", summary.Courses[0])
	}
	if h.srv.ListingHits() != 0 || h.srv.ResourceHits() != 0 {
		t.Fatalf("expected no listing or resource requests, got %d/%d", h.srv.ListingHits(), h.srv.ResourceHits())
	}
	if len(h.observer.finished) != 1 || h.observer.finished[0] != course+":error" {
		t.Fatalf("expected aborted course event, got %v", h.observer.finished)
	}
}

func TestRunRecordsFailedResourceAndContinues(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 2)
	h.srv.FailNext(course, "handout1.txt", 5, http.StatusNotFound)

	summary, err := h.runner.Run(context.Background(), h.input(course))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := summary.Courses[0]
	if got.Done != 1 || got.Failed != 1 || len(got.FailedTasks) != 1 || !summary.Failed() {
		t.Fatalf("expected one done and one failed, got %+v", got)
	}
	if !strings.HasSuffix(got.FailedTasks[0].DestPath, "01_lecture-1.txt") || got.FailedTasks[0].Error == "" {
		t.Fatalf("unexpected failed task %+v", got.FailedTasks[0])
	}
	if h.srv.FileHits(course, "handout1.txt") != 1 {
		t.Fatalf("expected 404 not to be retried, got %d hits", h.srv.FileHits(course, "handout1.txt"))
	}

	failed, err := h.runner.History(context.Background(), dto.HistoryInput{FailedOnly: true})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(failed) != 1 || failed[0].Error == "" {
		t.Fatalf("expected one failed ledger entry, got %+v", failed)
	}
	if len(h.observer.finished) != 1 || h.observer.finished[0] != course+":partial" {
		t.Fatalf("expected partial outcome, got %v", h.observer.finished)
	}
}

func TestRunWritesPlaylistAndRunsHooks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("hook uses sh")
	}
	t.Parallel()
	h := newHarness(t, 1)
	in := h.input(course)
	in.Playlist = true
	in.Hooks = []string{"touch hook-ran"}

	if _, err := h.runner.Run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	courseRoot := filepath.Join(h.dest, course)
	if _, err := os.Stat(filepath.Join(courseRoot, "hook-ran")); err != nil {
		t.Fatalf("expected hook to run in course dir: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(courseRoot, "01_week-1", "01_week-1.m3u"))
	if err != nil {
		t.Fatalf("read playlist: %v", err)
	}
	if string(raw) != "#EXTM3U\n01_lecture-1.mp4\n" {
		t.Fatalf("unexpected playlist %q", raw)
	}
}

func TestRunSkipDownloadOnlyPlans(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	in := h.input(course)
	in.SkipDownload = true

	summary, err := h.runner.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Courses[0].Planned != 2 || summary.Courses[0].Done != 0 || summary.Failed() {
		t.Fatalf("unexpected summary %+v", summary.Courses[0])
	}
	if h.srv.ResourceHits() != 0 {
		t.Fatalf("expected no downloads, got %d", h.srv.ResourceHits())
	}
	if _, err := os.Stat(filepath.Join(h.dest, course)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no course dir, got %v", err)
	}
}

func TestRunKeepsGoingAfterUnknownCourse(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 4)

	summary, err := h.runner.Run(context.Background(), h.input("gone-001", course))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Courses) != 2 || summary.Courses[0].CourseID != "gone-001" || summary.Courses[1].CourseID != course {
		t.Fatalf("expected courses in input order, got %+v", summary.Courses)
	}
	if !errors.Is(summary.Courses[0].Err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown course, got %v", summary.Courses[0].Err)
	}
	if summary.Courses[1].Done != 2 {
		t.Fatalf("expected second course to download, got %+v", summary.Courses[1])
	}
	if h.observer.tasks != 2 || len(h.observer.started) != 1 {
		t.Fatalf("unexpected observer counts tasks=%d started=%v", h.observer.tasks, h.observer.started)
	}
}

func TestRunPromptsOnceBeforeAnyCourseEvent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	in := h.input(course, "gone-001")
	in.Password = ""

	summary, err := h.runner.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.prompter.calls != 1 {
		t.Fatalf("expected a single prompt for the whole run, got %d", h.prompter.calls)
	}
	if len(h.observer.events) == 0 || h.observer.events[0] != "prompt" {
		t.Fatalf("expected the prompt before any course event, got %v", h.observer.events)
	}
	if summary.Courses[0].Done != 2 || !errors.Is(summary.Courses[1].Err, apperrors.ErrNotFound) {
		t.Fatalf("unexpected summary %+v", summary.Courses)
	}
	if h.srv.LoginHits() != 1 {
		t.Fatalf("expected the cached account to serve the second course, got %d logins", h.srv.LoginHits())
	}
}

func TestRunCredentialFailureAbortsEveryCourse(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	in := h.input(course, "gone-001")
	in.Username = ""

	summary, err := h.runner.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, c := range summary.Courses {
		if !errors.Is(c.Err, apperrors.ErrConfig) {
			t.Fatalf("expected config error for %s, got %v", c.CourseID, c.Err)
		}
	}
	if len(summary.Courses) != 2 || h.srv.LoginHits() != 0 || h.prompter.calls != 0 {
		t.Fatalf("unexpected run: courses=%d logins=%d prompts=%d", len(summary.Courses), h.srv.LoginHits(), h.prompter.calls)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	cases := []dto.RunInput{
		{DestRoot: h.dest},
		{CourseIDs: []string{course}},
	}
	for _, in := range cases {
		if _, err := h.runner.Run(context.Background(), in); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", in, err)
		}
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := h.runner.Run(ctx, h.input(course))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(summary.Courses) != 0 || h.srv.LoginHits() != 0 {
		t.Fatalf("expected nothing to run, got %+v", summary)
	}
}

func TestVerifyFindsBrokenFiles(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	if _, err := h.runner.Run(context.Background(), h.input(course)); err != nil {
		t.Fatalf("run: %v", err)
	}
	video := filepath.Join(h.dest, course, "01_week-1", "01_lecture-1.mp4")
	if err := os.Truncate(video, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	out, err := h.runner.Verify(context.Background(), dto.VerifyInput{CourseID: course})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if out.Checked != 2 || out.Broken != 1 {
		t.Fatalf("expected 1 of 2 broken, got %+v", out)
	}
	for _, r := range out.Results {
		if r.DestPath == video && (r.OK || r.Reason != "empty") {
			t.Fatalf("expected empty video to be reported, got %+v", r)
		}
	}
}

func TestHistoryWithoutLedger(t *testing.T) {
	t.Parallel()
	srv := fakeplatform.New(t)
	runner := wire(t, srv, nil, &recordingObserver{}, nil, t.TempDir(), 1)
	if _, err := runner.History(context.Background(), dto.HistoryInput{}); !errors.Is(err, apperrors.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestRunAppliesFilter(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 1)
	in := h.input(course)
	in.Filter = catalogdto.FilterInput{Formats: []string{"mp4"}}

	summary, err := h.runner.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Courses[0].Planned != 1 || h.srv.FileHits(course, "handout1.txt") != 0 {
		t.Fatalf("expected only the video, got %+v", summary.Courses[0])
	}
}
