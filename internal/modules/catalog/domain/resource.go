package domain

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
	KindSubtitle Kind = "subtitle"
	KindMetadata Kind = "metadata"
	KindOther    Kind = "other"
)

// KindForExt classifies a resource by its file extension.
func KindForExt(ext string) Kind {
	switch strings.ToLower(ext) {
	case "mp4", "webm", "flv", "mkv", "avi", "mov", "m4v", "ogv":
		return KindVideo
	case "pdf", "ppt", "pptx", "doc", "docx", "txt", "html", "zip", "xls", "xlsx", "epub":
		return KindDocument
	case "srt", "vtt", "sub", "sbv":
		return KindSubtitle
	case "json", "xml":
		return KindMetadata
	default:
		return KindOther
	}
}

// Link is one downloadable anchor under a lecture, as found on the page.
type Link struct {
	URL   string
	Title string
	Ext   string
}

type Lecture struct {
	Index int
	Name  string
	Links []Link
}

type Section struct {
	Index    int
	Name     string
	Lectures []Lecture
}

type CourseResource struct {
	Name         string
	URL          string
	RelPath      string
	Kind         Kind
	Ext          string
	SectionIndex int
	SectionName  string
	LectureIndex int
	LectureName  string
}

func (r CourseResource) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("resource url is required")
	}
	if strings.TrimSpace(r.RelPath) == "" {
		return fmt.Errorf("resource path is required")
	}
	if strings.HasPrefix(r.RelPath, "/") || strings.Contains(r.RelPath, "..") {
		return fmt.Errorf("resource path %q escapes the course directory", r.RelPath)
	}
	return nil
}
