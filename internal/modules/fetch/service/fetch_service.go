package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"coursedl/internal/modules/fetch/domain"
	fetchout "coursedl/internal/modules/fetch/port/out"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/id"
	"coursedl/internal/platform/websession"
)

type Options struct {
	Retries       int
	RetryInterval time.Duration
	Overwrite     bool
}

type FetchService struct {
	transport fetchout.Transport
	checker   fetchout.DocumentChecker
	idGen     id.Generator
	opts      Options
	log       logrus.FieldLogger
}

func NewFetchService(transport fetchout.Transport, checker fetchout.DocumentChecker, idGen id.Generator, opts Options, log logrus.FieldLogger) *FetchService {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &FetchService{transport: transport, checker: checker, idGen: idGen, opts: opts, log: log}
}

// Fetch downloads task.URL to task.DestPath through a temporary sibling file.
// An existing non-empty destination is skipped without touching the network
// unless overwrite is set.
func (s *FetchService) Fetch(ctx context.Context, session *websession.Session, task domain.Task) domain.Task {
	log := s.log.WithFields(logrus.Fields{"course": task.CourseID, "resource": task.Name, "path": task.DestPath})
	if err := task.Validate(); err != nil {
		task.Fail(fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return task
	}

	if !s.opts.Overwrite {
		info, err := os.Stat(task.DestPath)
		switch {
		case err == nil && info.IsDir():
			task.Fail(fmt.Errorf("%w: %s is a directory", apperrors.ErrIO, task.DestPath))
			return task
		case err == nil && info.Size() > 0:
			log.Debug("already downloaded")
			task.Skip(info.Size())
			return task
		case err != nil && !errors.Is(err, os.ErrNotExist):
			task.Fail(fmt.Errorf("%w: stat destination: %v", apperrors.ErrIO, err))
			return task
		}
	}

	dir := filepath.Dir(task.DestPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		task.Fail(fmt.Errorf("%w: create directory: %v", apperrors.ErrIO, err))
		return task
	}
	tmp := filepath.Join(dir, "."+filepath.Base(task.DestPath)+".part-"+s.idGen.New())
	defer func() { _ = os.Remove(tmp) }()

	var written int64
	operation := func() error {
		task.Attempts++
		n, err := s.transport.Download(ctx, session, task.URL, tmp)
		if err == nil {
			written = n
			return nil
		}
		if errors.Is(err, apperrors.ErrNetwork) && ctx.Err() == nil {
			log.WithError(err).WithField("attempt", task.Attempts).Warn("transfer failed")
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(operation, s.policy(ctx)); err != nil {
		if ctx.Err() != nil && !errors.Is(err, apperrors.ErrNetwork) {
			err = fmt.Errorf("%w: %v", apperrors.ErrNetwork, err)
		}
		log.WithError(err).WithFields(logrus.Fields{"attempt": task.Attempts, "kind": apperrors.Kind(err)}).Error("download failed")
		task.Fail(err)
		return task
	}

	if err := os.Rename(tmp, task.DestPath); err != nil {
		err = fmt.Errorf("%w: move into place: %v", apperrors.ErrIO, err)
		log.WithError(err).WithField("kind", apperrors.Kind(err)).Error("download failed")
		task.Fail(err)
		return task
	}
	log.WithField("bytes", written).Info("downloaded")
	task.Done(written)
	return task
}

func (s *FetchService) policy(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.opts.RetryInterval
	expo.MaxInterval = 30 * s.opts.RetryInterval
	expo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(s.opts.Retries)), ctx)
}

// Verify checks a downloaded file: it must be non-empty, and documents the
// checker understands must open with at least one page.
func (s *FetchService) Verify(ctx context.Context, path string) (domain.Verification, error) {
	result := domain.Verification{Path: path}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		result.Reason = "missing"
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("%w: stat %s: %v", apperrors.ErrIO, path, err)
	}
	result.Bytes = info.Size()
	if info.Size() == 0 {
		result.Reason = "empty"
		return result, nil
	}
	if s.checker != nil && strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := s.checker.Pages(ctx, path)
		if err != nil {
			result.Reason = err.Error()
			return result, nil
		}
		if pages == 0 {
			result.Reason = "no pages"
			return result, nil
		}
		result.Pages = pages
	}
	result.OK = true
	return result, nil
}
