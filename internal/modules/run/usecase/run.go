package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	authdto "coursedl/internal/modules/auth/dto"
	authin "coursedl/internal/modules/auth/port/in"
	catalogdto "coursedl/internal/modules/catalog/dto"
	catalogin "coursedl/internal/modules/catalog/port/in"
	fetchdto "coursedl/internal/modules/fetch/dto"
	fetchin "coursedl/internal/modules/fetch/port/in"
	"coursedl/internal/modules/run/domain"
	"coursedl/internal/modules/run/dto"
	runin "coursedl/internal/modules/run/port/in"
	"coursedl/internal/modules/run/service"
	"coursedl/internal/platform/clock"
	"coursedl/internal/platform/config"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/websession"
)

type Interactor struct {
	svc      *service.RunService
	auth     authin.Usecase
	catalog  catalogin.Usecase
	fetch    fetchin.Usecase
	parallel int
	log      logrus.FieldLogger
}

func NewInteractor(svc *service.RunService, auth authin.Usecase, catalog catalogin.Usecase, fetch fetchin.Usecase, parallel int, log logrus.FieldLogger) runin.Usecase {
	if parallel < 1 {
		parallel = 1
	}
	return &Interactor{svc: svc, auth: auth, catalog: catalog, fetch: fetch, parallel: parallel, log: log}
}

// Run processes each course in turn. Per-course failures land in the
// summary; the returned error is reserved for bad input and cancellation.
func (i *Interactor) Run(ctx context.Context, input dto.RunInput) (dto.SummaryOutput, error) {
	if len(input.CourseIDs) == 0 {
		return dto.SummaryOutput{}, fmt.Errorf("%w: at least one course id is required", apperrors.ErrInvalidInput)
	}
	if strings.TrimSpace(input.DestRoot) == "" {
		return dto.SummaryOutput{}, fmt.Errorf("%w: destination is required", apperrors.ErrInvalidInput)
	}

	summary := domain.Summary{RunID: i.svc.NewRunID(), StartedAt: i.svc.Clock().Now()}
	log := i.log.WithField("run", summary.RunID)

	// Credentials are settled once, before any course event, so a password
	// prompt never competes with the progress view for the terminal.
	input, credErr := i.resolveCredentials(ctx, input)
	if credErr != nil {
		log.WithError(credErr).WithField("kind", apperrors.Kind(credErr)).Error("could not resolve credentials")
	}
	if input.ClearCache && input.Username != "" {
		if err := i.auth.ClearCache(ctx, authdto.ClearCacheInput{Username: input.Username}); err != nil {
			log.WithError(err).Warn("could not clear cookie cache")
		}
	}

	var runErr error
	for _, courseID := range input.CourseIDs {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if credErr != nil {
			result := domain.CourseResult{CourseID: courseID, Err: credErr}
			i.svc.AbortCourse(result)
			summary.Courses = append(summary.Courses, result)
			continue
		}
		summary.Courses = append(summary.Courses, i.runCourse(ctx, summary.RunID, courseID, input))
	}
	summary.FinishedAt = i.svc.Clock().Now()
	return toSummaryOutput(summary), runErr
}

func (i *Interactor) resolveCredentials(ctx context.Context, input dto.RunInput) (dto.RunInput, error) {
	if input.CookiesFile != "" {
		return input, nil
	}
	creds, err := i.auth.ResolveCredentials(ctx, authdto.CredentialsInput{
		Username:  input.Username,
		Password:  input.Password,
		UseNetrc:  input.UseNetrc,
		NetrcPath: input.NetrcPath,
	})
	if err != nil {
		return input, err
	}
	input.Username, input.Password = creds.Username, creds.Password
	input.UseNetrc, input.NetrcPath = false, ""
	return input, nil
}

func (i *Interactor) runCourse(ctx context.Context, runID, courseID string, input dto.RunInput) domain.CourseResult {
	log := i.log.WithField("course", courseID)
	result := domain.CourseResult{CourseID: courseID}
	started := i.svc.Clock().Now()

	session, err := i.auth.Authenticate(ctx, authdto.AuthenticateInput{
		CourseID:    courseID,
		Username:    input.Username,
		Password:    input.Password,
		UseNetrc:    input.UseNetrc,
		NetrcPath:   input.NetrcPath,
		CookiesFile: input.CookiesFile,
	})
	if err != nil {
		log.WithError(err).WithField("kind", apperrors.Kind(err)).Error("authentication failed")
		result.Err = err
		i.svc.AbortCourse(result)
		return result
	}
	log.WithField("origin", session.Origin).Debug("authenticated")

	lecturesPage := ""
	if input.LecturesPage != "" {
		lecturesPage = config.Expand(input.LecturesPage, courseID)
	}
	listing, err := i.catalog.ListResources(ctx, session.Session, catalogdto.ListInput{
		CourseID:          courseID,
		Filter:            input.Filter,
		LecturesPage:      lecturesPage,
		About:             input.About,
		MaxFilenameLength: input.MaxFilenameLength,
	})
	if err != nil {
		log.WithError(err).WithField("kind", apperrors.Kind(err)).Error("listing failed")
		result.Err = err
		i.svc.AbortCourse(result)
		return result
	}

	var items []domain.Item
	for r := range listing.All() {
		items = append(items, domain.Item{Name: r.Name, URL: r.URL, Kind: r.Kind, RelPath: r.RelPath, SectionIndex: r.SectionIndex})
	}
	courseRoot := filepath.Join(input.DestRoot, courseID)
	tasks := i.svc.Plan(courseRoot, items)
	result.Planned = len(tasks)
	i.svc.CourseStarted(courseID, len(tasks))

	if input.SkipDownload {
		for _, task := range tasks {
			log.WithFields(logrus.Fields{"resource": task.Name, "path": task.DestPath}).Info("planned")
		}
		i.svc.FinishCourse(ctx, result, nil, nil, service.FinishOptions{CourseRoot: courseRoot})
		return result
	}

	results := i.fetchAll(ctx, runID, session.Session, courseID, tasks)
	for _, r := range results {
		result.Add(r)
	}
	log.WithFields(logrus.Fields{
		"done":    result.Done,
		"skipped": result.Skipped,
		"failed":  result.Failed,
		"elapsed": clock.Since(i.svc.Clock(), started),
	}).Info("course finished")
	i.svc.FinishCourse(ctx, result, tasks, results, service.FinishOptions{
		CourseRoot: courseRoot,
		Playlist:   input.Playlist,
		Hooks:      input.Hooks,
	})
	return result
}

// fetchAll runs up to parallel fetches at once. Destinations are distinct by
// construction of the plan.
func (i *Interactor) fetchAll(ctx context.Context, runID string, session *websession.Session, courseID string, tasks []domain.PlannedTask) []domain.TaskResult {
	results := make([]domain.TaskResult, len(tasks))
	var group errgroup.Group
	group.SetLimit(i.parallel)
	for idx, task := range tasks {
		group.Go(func() error {
			out, _ := i.fetch.Fetch(ctx, session, fetchdto.FetchInput{
				CourseID: courseID,
				Name:     task.Name,
				URL:      task.URL,
				Kind:     task.Kind,
				DestPath: task.DestPath,
			})
			res := domain.TaskResult{
				CourseID: courseID,
				Name:     task.Name,
				URL:      task.URL,
				Kind:     task.Kind,
				DestPath: task.DestPath,
				Status:   out.Status,
				Bytes:    out.Bytes,
				Attempts: out.Attempts,
				Err:      out.Err,
			}
			results[idx] = res
			i.svc.Record(ctx, runID, res)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (i *Interactor) History(ctx context.Context, input dto.HistoryInput) ([]dto.EntryOutput, error) {
	entries, err := i.svc.History(ctx, domain.Query{CourseID: input.CourseID, FailedOnly: input.FailedOnly, Limit: input.Limit})
	if err != nil {
		return nil, err
	}
	out := make([]dto.EntryOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.EntryOutput{
			RunID:     e.RunID,
			CourseID:  e.CourseID,
			Name:      e.Name,
			URL:       e.URL,
			DestPath:  e.DestPath,
			Status:    e.Status,
			Bytes:     e.Bytes,
			Error:     e.Error,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return out, nil
}

// Verify re-checks every file the ledger believes is on disk.
func (i *Interactor) Verify(ctx context.Context, input dto.VerifyInput) (dto.VerifyOutput, error) {
	entries, err := i.svc.Downloaded(ctx, input.CourseID)
	if err != nil {
		return dto.VerifyOutput{}, err
	}
	var out dto.VerifyOutput
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		v, err := i.fetch.Verify(ctx, fetchdto.VerifyInput{Path: e.DestPath})
		if err != nil {
			return out, err
		}
		out.Checked++
		if !v.OK {
			out.Broken++
		}
		out.Results = append(out.Results, dto.VerifyResult{CourseID: e.CourseID, DestPath: e.DestPath, OK: v.OK, Pages: v.Pages, Reason: v.Reason})
	}
	return out, nil
}

func toSummaryOutput(s domain.Summary) dto.SummaryOutput {
	out := dto.SummaryOutput{RunID: s.RunID, Duration: s.FinishedAt.Sub(s.StartedAt)}
	for _, c := range s.Courses {
		course := dto.CourseOutput{
			CourseID: c.CourseID,
			Planned:  c.Planned,
			Done:     c.Done,
			Skipped:  c.Skipped,
			Failed:   c.Failed,
			Bytes:    c.Bytes,
			Err:      c.Err,
		}
		if c.Err != nil {
			course.Error = c.Err.Error()
		}
		for _, t := range c.FailedTasks {
			task := dto.TaskOutput{Name: t.Name, URL: t.URL, DestPath: t.DestPath, Status: t.Status, Bytes: t.Bytes, Attempts: t.Attempts}
			if t.Err != nil {
				task.Error = t.Err.Error()
			}
			course.FailedTasks = append(course.FailedTasks, task)
		}
		out.Courses = append(out.Courses, course)
	}
	return out
}
