package out

import (
	"context"

	"coursedl/internal/modules/run/domain"
)

// Ledger persists the last outcome per destination path.
type Ledger interface {
	Record(ctx context.Context, entry domain.Entry) error
	List(ctx context.Context, query domain.Query) ([]domain.Entry, error)
}

type PlaylistWriter interface {
	Write(ctx context.Context, playlist domain.Playlist) error
}

// HookRunner runs a shell command in dir.
type HookRunner interface {
	Run(ctx context.Context, dir, command string) error
}

type Metrics interface {
	Task(course, status string, bytes int64)
	Course(outcome string)
}

// Observer is told about progress as it happens. Calls may come from
// several goroutines.
type Observer interface {
	CourseStarted(courseID string, tasks int)
	TaskFinished(task domain.TaskResult)
	CourseFinished(result domain.CourseResult)
}
