package dto

type FetchInput struct {
	CourseID string
	Name     string
	URL      string
	Kind     string
	DestPath string
}

type TaskOutput struct {
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

type VerifyInput struct {
	Path string
}

type VerifyOutput struct {
	Path   string
	Bytes  int64
	Pages  int
	OK     bool
	Reason string
}
