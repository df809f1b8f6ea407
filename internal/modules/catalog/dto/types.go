package dto

import "iter"

type FilterInput struct {
	Sections        []int
	Formats         []string
	SkipFormats     []string
	SectionPattern  string
	LecturePattern  string
	ResourcePattern string
	Reverse         bool
}

type ListInput struct {
	CourseID          string
	Filter            FilterInput
	LecturesPage      string
	About             bool
	MaxFilenameLength int
}

type ResourceOutput struct {
	Name         string
	URL          string
	RelPath      string
	Kind         string
	Ext          string
	SectionIndex int
	SectionName  string
	LectureIndex int
	LectureName  string
}

type SectionOutput struct {
	Index    int
	Name     string
	Lectures []string
}

// Listing is the ordered resource list of a course.
type Listing struct {
	CourseID  string
	Resources []ResourceOutput
	Tree      []SectionOutput
}

func (l Listing) All() iter.Seq[ResourceOutput] {
	return func(yield func(ResourceOutput) bool) {
		for _, r := range l.Resources {
			if !yield(r) {
				return
			}
		}
	}
}

func (l Listing) Sections() []SectionOutput {
	return l.Tree
}
