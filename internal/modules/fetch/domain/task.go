package domain

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusDone, StatusSkipped, StatusFailed:
		return nil
	default:
		return fmt.Errorf("unsupported task status %q", string(s))
	}
}

// Task is one resource bound to its destination. Only the fetcher moves it
// out of pending.
type Task struct {
	CourseID string
	Name     string
	URL      string
	Kind     string
	DestPath string
	Status   Status
	Bytes    int64
	Attempts int
	Err      error
}

func NewTask(courseID, name, url, kind, destPath string) Task {
	return Task{CourseID: courseID, Name: name, URL: url, Kind: kind, DestPath: destPath, Status: StatusPending}
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.URL) == "" {
		return fmt.Errorf("task url is required")
	}
	if strings.TrimSpace(t.DestPath) == "" {
		return fmt.Errorf("task destination is required")
	}
	return t.Status.Validate()
}

func (t *Task) Done(bytes int64) {
	t.Status, t.Bytes, t.Err = StatusDone, bytes, nil
}

func (t *Task) Skip(bytes int64) {
	t.Status, t.Bytes, t.Err = StatusSkipped, bytes, nil
}

func (t *Task) Fail(err error) {
	t.Status, t.Err = StatusFailed, err
}

// ErrText is the failure message or "" when the task did not fail.
func (t Task) ErrText() string {
	if t.Err == nil {
		return ""
	}
	return t.Err.Error()
}

// Verification is the outcome of re-checking a downloaded file.
type Verification struct {
	Path   string
	Bytes  int64
	Pages  int
	OK     bool
	Reason string
}
