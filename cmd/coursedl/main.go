package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"coursedl/internal/bootstrap"
	catalogdto "coursedl/internal/modules/catalog/dto"
	rundto "coursedl/internal/modules/run/dto"
	"coursedl/internal/platform/config"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/ui/progress"
)

var version = "dev"

// errFailed marks a run that completed but left failures behind; the summary
// already explains them.
var errFailed = errors.New("run finished with failures")

const netrcDefault = "default"

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err == nil {
		return
	}
	if !errors.Is(err, errFailed) {
		_, _ = fmt.Fprintln(os.Stderr, "coursedl:", err)
	}
	os.Exit(1)
}

type globalFlags struct {
	configPath string
	debug      bool
	quiet      bool
}

type runFlags struct {
	username       string
	password       string
	netrc          string
	dest           string
	cookies        string
	parallel       int
	retries        int
	limit          string
	downloader     string
	downloaderBin  string
	proxy          string
	overwrite      bool
	skipDownload   bool
	playlist       bool
	hooks          []string
	tui            bool
	metricsFile    string
	clearCache     bool
	noCache        bool
	sections       string
	formats        string
	skipFormats    string
	sectionFilter  string
	lectureFilter  string
	resourceFilter string
	reverse        bool
	lecturesPage   string
	about          bool
	maxFilename    int
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	f := &runFlags{}

	root := &cobra.Command{
		Use:           "coursedl <course_id>...",
		Short:         "Download the lecture resources of online courses",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, g, f, args)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/coursedl/config.yaml)")
	pf.BoolVar(&g.debug, "debug", false, "log debug details")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "log errors only and skip the summary")

	fl := root.Flags()
	fl.StringVarP(&f.username, "username", "u", "", "account e-mail")
	fl.StringVarP(&f.password, "password", "p", "", "account password (prompted when missing)")
	fl.StringVarP(&f.netrc, "netrc", "n", "", "read credentials from netrc; use --netrc=FILE for a custom path")
	fl.Lookup("netrc").NoOptDefVal = netrcDefault
	fl.StringVarP(&f.dest, "path", "d", "", "destination directory")
	fl.StringVar(&f.cookies, "cookies", "", "Netscape cookies.txt to use instead of logging in")
	fl.IntVar(&f.parallel, "parallel", 0, "concurrent downloads per course")
	fl.IntVar(&f.retries, "retries", -1, "retries per resource on network errors")
	fl.StringVar(&f.limit, "limit", "", "bandwidth limit, e.g. 500KB or 2MB (per second)")
	fl.StringVar(&f.downloader, "downloader", "", "native|wget|curl|aria2|axel")
	fl.StringVar(&f.downloaderBin, "downloader-bin", "", "path to the external downloader binary")
	fl.StringVar(&f.proxy, "proxy", "", "HTTP proxy URL")
	fl.BoolVar(&f.overwrite, "overwrite", false, "download files that already exist")
	fl.BoolVar(&f.skipDownload, "skip-download", false, "list what would be downloaded")
	fl.BoolVar(&f.playlist, "playlist", false, "write an M3U playlist per section")
	fl.StringArrayVar(&f.hooks, "hook", nil, "shell command to run in the course directory afterwards (repeatable)")
	fl.BoolVar(&f.tui, "tui", false, "show a live progress view")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")
	fl.BoolVar(&f.clearCache, "clear-cache", false, "forget cached session cookies first")
	fl.BoolVar(&f.noCache, "no-cache", false, "do not read or write cached session cookies")
	fl.StringVar(&f.sections, "sections", "", `section numbers to keep, e.g. "1 3"`)
	fl.StringVarP(&f.formats, "formats", "f", "", `file extensions to keep, e.g. "mp4 pdf"`)
	fl.StringVar(&f.skipFormats, "skip-formats", "", "file extensions to drop")
	fl.StringVar(&f.sectionFilter, "section-filter", "", "regex that section names must match")
	fl.StringVar(&f.lectureFilter, "lecture-filter", "", "regex that lecture names must match")
	fl.StringVar(&f.resourceFilter, "resource-filter", "", "regex that resource URLs must match")
	fl.BoolVar(&f.reverse, "reverse", false, "process sections in reverse order")
	fl.StringVar(&f.lecturesPage, "lectures-page", "", "cache file for the lectures page; {course} expands to the id")
	fl.BoolVar(&f.about, "about", false, "also save the course's about.json")
	fl.IntVar(&f.maxFilename, "max-filename-length", 0, "truncate each path component to this many characters")

	root.AddCommand(newHistoryCmd(g))
	root.AddCommand(newVerifyCmd(g))
	root.AddCommand(newLogoutCmd(g))
	root.AddCommand(newVersionCmd())
	return root
}

func loadConfig(g *globalFlags) (config.Config, error) {
	cfg, err := config.Load(config.Options{Path: g.configPath, EnvFile: ".env"})
	if err != nil {
		return config.Config{}, err
	}
	switch {
	case g.debug:
		cfg.LogLevel = "debug"
	case g.quiet:
		cfg.LogLevel = "error"
	}
	return cfg, nil
}

// apply lays explicitly set flags over the loaded config.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("path") {
		cfg.DestRoot = f.dest
	}
	if changed("username") {
		cfg.Username = f.username
	}
	if changed("password") {
		cfg.Password = f.password
	}
	if changed("parallel") {
		cfg.Parallel = f.parallel
	}
	if changed("retries") {
		cfg.Retries = f.retries
	}
	if changed("limit") {
		limit, err := config.ParseRate(f.limit)
		if err != nil {
			return fmt.Errorf("%w: --limit %q: %v", apperrors.ErrInvalidInput, f.limit, err)
		}
		cfg.RateLimit = limit
	}
	if changed("downloader") {
		cfg.Downloader = f.downloader
	}
	if changed("downloader-bin") {
		cfg.DownloaderBin = f.downloaderBin
	}
	if changed("proxy") {
		cfg.Proxy = f.proxy
	}
	if changed("max-filename-length") {
		cfg.MaxFilenameLength = f.maxFilename
	}
	return nil
}

func (f *runFlags) input(cmd *cobra.Command, cfg config.Config, courses []string) (rundto.RunInput, error) {
	sections, err := parseSections(f.sections)
	if err != nil {
		return rundto.RunInput{}, err
	}
	in := rundto.RunInput{
		CourseIDs:   courses,
		Username:    cfg.Username,
		Password:    cfg.Password,
		CookiesFile: f.cookies,
		ClearCache:  f.clearCache,
		DestRoot:    cfg.DestRoot,
		Filter: catalogdto.FilterInput{
			Sections:        sections,
			Formats:         splitList(f.formats),
			SkipFormats:     splitList(f.skipFormats),
			SectionPattern:  f.sectionFilter,
			LecturePattern:  f.lectureFilter,
			ResourcePattern: f.resourceFilter,
			Reverse:         f.reverse,
		},
		LecturesPage:      f.lecturesPage,
		About:             f.about,
		MaxFilenameLength: cfg.MaxFilenameLength,
		SkipDownload:      f.skipDownload,
		Playlist:          f.playlist,
		Hooks:             f.hooks,
	}
	if cmd.Flags().Changed("netrc") {
		in.UseNetrc = true
		if f.netrc != netrcDefault {
			in.NetrcPath = f.netrc
		}
	}
	return in, nil
}

func runDownload(cmd *cobra.Command, g *globalFlags, f *runFlags, courses []string) error {
	if len(courses) == 0 {
		return fmt.Errorf("%w: at least one course id is required", apperrors.ErrInvalidInput)
	}
	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	if err := f.apply(cmd, &cfg); err != nil {
		return err
	}
	input, err := f.input(cmd, cfg, courses)
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cfg, bootstrap.Options{
		NoCache:   f.noCache,
		Overwrite: f.overwrite,
		TUI:       f.tui,
		Stdout:    cmd.OutOrStdout(),
		Stderr:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if app.Progress != nil {
		app.Progress.Start(stop)
	}
	summary, runErr := app.RunCLI.Run(ctx, input)
	if app.Progress != nil {
		if err := app.Progress.Stop(); err != nil {
			app.Log.WithError(err).Warn("progress view failed")
		}
	}

	if f.metricsFile != "" {
		if err := app.Metrics.WriteFile(f.metricsFile); err != nil {
			app.Log.WithError(err).Warn("could not write metrics")
		}
	}
	if !g.quiet && len(summary.Courses) > 0 {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), progress.RenderSummary(summary))
	}
	if runErr != nil {
		return runErr
	}
	if summary.Failed() {
		return errFailed
	}
	return nil
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		courseID   string
		failedOnly bool
		limit      int
	)
	history := &cobra.Command{
		Use:   "history",
		Short: "List recorded download outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			entries, err := app.RunCLI.History(cmd.Context(), courseID, failedOnly, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no downloads recorded")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s", e.UpdatedAt.Local().Format(time.DateTime), e.CourseID, e.Status, humanize.Bytes(uint64(e.Bytes)), e.DestPath)
				if e.Error != "" {
					line += "\t" + e.Error
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	history.Flags().StringVar(&courseID, "course", "", "only this course")
	history.Flags().BoolVar(&failedOnly, "failed", false, "only failed downloads")
	history.Flags().IntVar(&limit, "limit", 0, "maximum rows")
	return history
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	var courseID string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Re-check recorded downloads on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			out, err := app.RunCLI.Verify(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			for _, r := range out.Results {
				if !r.OK {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "broken\t%s\t%s\n", r.DestPath, r.Reason)
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "checked %d, broken %d\n", out.Checked, out.Broken)
			if out.Broken > 0 {
				return errFailed
			}
			return nil
		},
	}
	verify.Flags().StringVar(&courseID, "course", "", "only this course")
	return verify
}

func newLogoutCmd(g *globalFlags) *cobra.Command {
	var username string
	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget cached session cookies for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(username) == "" {
				return fmt.Errorf("%w: --username is required", apperrors.ErrInvalidInput)
			}
			app, err := loadApp(cmd, g)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			if err := app.AuthCLI.ClearCache(cmd.Context(), username); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cleared cached session for %s\n", username)
			return nil
		},
	}
	logout.Flags().StringVarP(&username, "username", "u", "", "account e-mail")
	return logout
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "coursedl "+version)
		},
	}
}

func loadApp(cmd *cobra.Command, g *globalFlags) (*bootstrap.App, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg, bootstrap.Options{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
}

func parseSections(s string) ([]int, error) {
	var out []int
	for _, field := range splitList(s) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: section %q is not a positive number", apperrors.ErrInvalidInput, field)
		}
		out = append(out, n)
	}
	return out, nil
}
