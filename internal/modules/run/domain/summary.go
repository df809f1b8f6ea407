package domain

import "time"

type TaskResult struct {
	CourseID string
	Name     string
	URL      string
	Kind     string
	DestPath string
	Status   string
	Bytes    int64
	Attempts int
	Err      error
}

type CourseResult struct {
	CourseID    string
	Planned     int
	Done        int
	Skipped     int
	Failed      int
	Bytes       int64
	FailedTasks []TaskResult
	Err         error
}

// Add counts one finished task.
func (c *CourseResult) Add(task TaskResult) {
	switch task.Status {
	case StatusDone:
		c.Done++
		c.Bytes += task.Bytes
	case StatusSkipped:
		c.Skipped++
	case StatusFailed:
		c.Failed++
		c.FailedTasks = append(c.FailedTasks, task)
	}
}

func (c CourseResult) Outcome() string {
	switch {
	case c.Err != nil:
		return "error"
	case c.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}

type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Courses    []CourseResult
}

// Failed reports whether any course aborted or any task failed.
func (s Summary) Failed() bool {
	for _, c := range s.Courses {
		if c.Err != nil || c.Failed > 0 {
			return true
		}
	}
	return false
}
