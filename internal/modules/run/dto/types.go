package dto

import (
	"time"

	catalogdto "coursedl/internal/modules/catalog/dto"
)

type RunInput struct {
	CourseIDs         []string
	Username          string
	Password          string
	UseNetrc          bool
	NetrcPath         string
	CookiesFile       string
	ClearCache        bool
	DestRoot          string
	Filter            catalogdto.FilterInput
	LecturesPage      string
	About             bool
	MaxFilenameLength int
	SkipDownload      bool
	Playlist          bool
	Hooks             []string
}

type TaskOutput struct {
	Name     string
	URL      string
	DestPath string
	Status   string
	Bytes    int64
	Attempts int
	Error    string
}

type CourseOutput struct {
	CourseID    string
	Planned     int
	Done        int
	Skipped     int
	Failed      int
	Bytes       int64
	Error       string
	Err         error
	FailedTasks []TaskOutput
}

type SummaryOutput struct {
	RunID    string
	Duration time.Duration
	Courses  []CourseOutput
}

// Failed reports whether the process should exit non-zero.
func (s SummaryOutput) Failed() bool {
	for _, c := range s.Courses {
		if c.Err != nil || c.Failed > 0 {
			return true
		}
	}
	return false
}

type HistoryInput struct {
	CourseID   string
	FailedOnly bool
	Limit      int
}

type EntryOutput struct {
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

type VerifyInput struct {
	CourseID string
}

type VerifyResult struct {
	CourseID string
	DestPath string
	OK       bool
	Pages    int
	Reason   string
}

type VerifyOutput struct {
	Checked int
	Broken  int
	Results []VerifyResult
}
