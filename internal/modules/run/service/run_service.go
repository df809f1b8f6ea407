package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"coursedl/internal/modules/run/domain"
	runout "coursedl/internal/modules/run/port/out"
	"coursedl/internal/platform/clock"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/id"
)

type RunService struct {
	clock     clock.Clock
	idGen     id.Generator
	ledger    runout.Ledger
	playlists runout.PlaylistWriter
	hooks     runout.HookRunner
	metrics   runout.Metrics
	observer  runout.Observer
	log       logrus.FieldLogger
}

func NewRunService(
	clock clock.Clock,
	idGen id.Generator,
	ledger runout.Ledger,
	playlists runout.PlaylistWriter,
	hooks runout.HookRunner,
	metrics runout.Metrics,
	observer runout.Observer,
	log logrus.FieldLogger,
) *RunService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &RunService{
		clock:     clock,
		idGen:     idGen,
		ledger:    ledger,
		playlists: playlists,
		hooks:     hooks,
		metrics:   metrics,
		observer:  observer,
		log:       log,
	}
}

func (s *RunService) NewRunID() string { return s.idGen.New() }

func (s *RunService) Clock() clock.Clock { return s.clock }

func (s *RunService) Plan(courseRoot string, items []domain.Item) []domain.PlannedTask {
	return domain.Plan(courseRoot, items)
}

func (s *RunService) CourseStarted(courseID string, tasks int) {
	s.observer.CourseStarted(courseID, tasks)
}

// Record persists one task outcome. A ledger failure is logged and does not
// fail the task.
func (s *RunService) Record(ctx context.Context, runID string, task domain.TaskResult) {
	s.metrics.Task(task.CourseID, task.Status, task.Bytes)
	s.observer.TaskFinished(task)
	if s.ledger == nil {
		return
	}
	entry := domain.Entry{
		RunID:     runID,
		CourseID:  task.CourseID,
		Name:      task.Name,
		URL:       task.URL,
		DestPath:  task.DestPath,
		Status:    task.Status,
		Bytes:     task.Bytes,
		UpdatedAt: s.clock.Now(),
	}
	if task.Err != nil {
		entry.Error = task.Err.Error()
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"course": task.CourseID, "path": task.DestPath}).Warn("could not record download")
	}
}

type FinishOptions struct {
	CourseRoot string
	Playlist   bool
	Hooks      []string
}

// FinishCourse writes playlists, runs hooks and reports the course result.
func (s *RunService) FinishCourse(ctx context.Context, result domain.CourseResult, tasks []domain.PlannedTask, results []domain.TaskResult, opts FinishOptions) {
	log := s.log.WithField("course", result.CourseID)
	if opts.Playlist && s.playlists != nil {
		for _, playlist := range domain.Playlists(tasks, results) {
			if err := s.playlists.Write(ctx, playlist); err != nil {
				log.WithError(err).WithField("path", playlist.Path).Warn("could not write playlist")
			}
		}
	}
	if s.hooks != nil && result.Err == nil {
		for _, hook := range opts.Hooks {
			if err := s.hooks.Run(ctx, opts.CourseRoot, hook); err != nil {
				log.WithError(err).WithField("hook", hook).Warn("hook failed")
			}
		}
	}
	s.metrics.Course(result.Outcome())
	s.observer.CourseFinished(result)
}

func (s *RunService) AbortCourse(result domain.CourseResult) {
	s.metrics.Course(result.Outcome())
	s.observer.CourseFinished(result)
}

func (s *RunService) History(ctx context.Context, query domain.Query) ([]domain.Entry, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("%w: ledger is not configured", apperrors.ErrConfig)
	}
	return s.ledger.List(ctx, query)
}

// Downloaded returns ledger entries whose file should exist on disk.
func (s *RunService) Downloaded(ctx context.Context, courseID string) ([]domain.Entry, error) {
	return s.History(ctx, domain.Query{CourseID: courseID, Statuses: []string{domain.StatusDone, domain.StatusSkipped}})
}

type noopMetrics struct{}

func (noopMetrics) Task(string, string, int64) {}
func (noopMetrics) Course(string)              {}

type noopObserver struct{}

func (noopObserver) CourseStarted(string, int)          {}
func (noopObserver) TaskFinished(domain.TaskResult)     {}
func (noopObserver) CourseFinished(domain.CourseResult) {}
