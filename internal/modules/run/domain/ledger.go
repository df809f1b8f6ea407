package domain

import "time"

const (
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// Entry is the last known outcome for one destination path.
type Entry struct {
	RunID     string
	CourseID  string
	Name      string
	URL       string
	DestPath  string
	Status    string
	Bytes     int64
	Error     string
	UpdatedAt time.Time
}

type Query struct {
	CourseID   string
	FailedOnly bool
	Statuses   []string
	Limit      int
}
