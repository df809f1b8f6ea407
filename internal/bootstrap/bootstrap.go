package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	authinadapter "coursedl/internal/modules/auth/adapter/in"
	authoutadapter "coursedl/internal/modules/auth/adapter/out"
	authservice "coursedl/internal/modules/auth/service"
	authusecase "coursedl/internal/modules/auth/usecase"
	catalogoutadapter "coursedl/internal/modules/catalog/adapter/out"
	catalogservice "coursedl/internal/modules/catalog/service"
	catalogusecase "coursedl/internal/modules/catalog/usecase"
	fetchout "coursedl/internal/modules/fetch/adapter/out"
	fetchport "coursedl/internal/modules/fetch/port/out"
	fetchservice "coursedl/internal/modules/fetch/service"
	fetchusecase "coursedl/internal/modules/fetch/usecase"
	runinadapter "coursedl/internal/modules/run/adapter/in"
	runoutadapter "coursedl/internal/modules/run/adapter/out"
	runport "coursedl/internal/modules/run/port/out"
	runservice "coursedl/internal/modules/run/service"
	runusecase "coursedl/internal/modules/run/usecase"
	"coursedl/internal/platform/clock"
	"coursedl/internal/platform/config"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/httpclient"
	"coursedl/internal/platform/id"
	"coursedl/internal/platform/logging"
	"coursedl/internal/platform/metrics"
	"coursedl/internal/ui/progress"
)

// Options are per-invocation switches that are not part of the config file.
type Options struct {
	NoCache   bool
	Overwrite bool
	TUI       bool
	Stdin     *os.File
	Stdout    io.Writer
	Stderr    io.Writer
}

type App struct {
	RunCLI   runinadapter.CLIHandler
	AuthCLI  authinadapter.CLIHandler
	Metrics  *metrics.Recorder
	Progress *progress.Program
	Log      *logrus.Logger

	closers []io.Closer
}

func New(cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	app := &App{Metrics: metrics.New()}

	// The progress view owns the terminal, so logs go to a file beside the ledger.
	logOut := opts.Stderr
	if opts.TUI {
		f, err := openLogFile(filepath.Join(cfg.CacheDir, "coursedl.log"))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, f)
		logOut = f
		app.Progress = progress.NewProgram(opts.Stdout)
	}
	app.Log = logging.New(logOut, cfg.LogLevel)

	pages, err := httpclient.New(httpclient.Options{
		Proxy:          cfg.Proxy,
		UserAgent:      cfg.UserAgent,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}
	files, err := httpclient.New(httpclient.Options{
		Proxy:           cfg.Proxy,
		UserAgent:       cfg.UserAgent,
		ConnectTimeout:  cfg.ConnectTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		FollowRedirects: true,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}

	clk := clock.SystemClock{}
	cookieCache := cfg.CacheDir
	if opts.NoCache {
		cookieCache = ""
	}
	authUC := authusecase.NewInteractor(authservice.NewAuthService(
		authoutadapter.NewNetrcCredentialFile(),
		authoutadapter.NewFileCookieStore(),
		authoutadapter.NewHTTPAuthenticator(pages, cfg.Endpoints),
		authoutadapter.NewTermPrompter(opts.Stdin, opts.Stderr),
		cookieCache,
		cfg.NetrcMachine,
		app.Log.WithField("module", "auth"),
	))

	catalogUC := catalogusecase.NewInteractor(catalogservice.NewCatalogService(
		catalogoutadapter.NewHTTPPageSource(pages, cfg.Endpoints),
		catalogoutadapter.NewGoqueryParser(),
		catalogoutadapter.NewFilePageCache(),
		cfg.Endpoints,
		app.Log.WithField("module", "catalog"),
	))

	transport, err := newTransport(cfg, files)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	fetchUC := fetchusecase.NewInteractor(fetchservice.NewFetchService(
		transport,
		fetchout.NewPDFChecker(),
		id.RandomHex{},
		fetchservice.Options{Retries: cfg.Retries, RetryInterval: cfg.RetryInterval, Overwrite: opts.Overwrite},
		app.Log.WithField("module", "fetch"),
	))

	ledger, err := runoutadapter.NewSQLiteLedger(cfg.LedgerPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("%w: open ledger: %v", apperrors.ErrIO, err)
	}
	app.closers = append(app.closers, ledger)

	var observer runport.Observer
	if app.Progress != nil {
		observer = runoutadapter.NewProgressObserver(app.Progress)
	}
	runSvc := runservice.NewRunService(
		clk,
		id.UUID{},
		ledger,
		runoutadapter.NewM3UWriter(),
		runoutadapter.NewShellHookRunner(opts.Stderr, opts.Stderr),
		app.Metrics,
		observer,
		app.Log.WithField("module", "run"),
	)
	runUC := runusecase.NewInteractor(runSvc, authUC, catalogUC, fetchUC, cfg.Parallel, app.Log.WithField("module", "run"))

	app.RunCLI = runinadapter.NewCLIHandler(runUC)
	app.AuthCLI = authinadapter.NewCLIHandler(authUC)
	return app, nil
}

func newTransport(cfg config.Config, client *http.Client) (fetchport.Transport, error) {
	if cfg.Downloader != "" && cfg.Downloader != "native" {
		transport, err := fetchout.NewExternalTransport(cfg.Downloader, cfg.DownloaderBin)
		if err != nil {
			return nil, err
		}
		return transport, nil
	}
	return fetchout.NewHTTPTransport(client, fetchout.NewLimiter(cfg.RateLimit)), nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create log dir: %v", apperrors.ErrIO, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open log file: %v", apperrors.ErrIO, err)
	}
	return f, nil
}

// Close releases the ledger and log file.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
