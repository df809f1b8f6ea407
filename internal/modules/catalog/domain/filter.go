package domain

import (
	"regexp"
	"slices"
	"strings"
)

// Filter narrows a parsed course. Zero values keep everything.
type Filter struct {
	Sections      []int
	Formats       []string
	SkipFormats   []string
	SectionRegex  *regexp.Regexp
	LectureRegex  *regexp.Regexp
	ResourceRegex *regexp.Regexp
	Reverse       bool
}

// Apply returns the sections that survive the filter. Lectures left without
// links and sections left without lectures are dropped. Indices are kept, so
// filtered runs name files the same way unfiltered runs do.
func (f Filter) Apply(sections []Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, section := range sections {
		if len(f.Sections) > 0 && !slices.Contains(f.Sections, section.Index) {
			continue
		}
		if f.SectionRegex != nil && !f.SectionRegex.MatchString(section.Name) {
			continue
		}
		kept := Section{Index: section.Index, Name: section.Name}
		for _, lecture := range section.Lectures {
			if f.LectureRegex != nil && !f.LectureRegex.MatchString(lecture.Name) {
				continue
			}
			links := make([]Link, 0, len(lecture.Links))
			for _, link := range lecture.Links {
				if f.keepLink(link) {
					links = append(links, link)
				}
			}
			if len(links) == 0 {
				continue
			}
			kept.Lectures = append(kept.Lectures, Lecture{Index: lecture.Index, Name: lecture.Name, Links: links})
		}
		if len(kept.Lectures) == 0 {
			continue
		}
		out = append(out, kept)
	}
	if f.Reverse {
		slices.Reverse(out)
	}
	return out
}

func (f Filter) keepLink(link Link) bool {
	ext := strings.ToLower(link.Ext)
	if len(f.Formats) > 0 && !containsFold(f.Formats, ext) {
		return false
	}
	if containsFold(f.SkipFormats, ext) {
		return false
	}
	if f.ResourceRegex != nil && !f.ResourceRegex.MatchString(link.URL) {
		return false
	}
	return true
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(strings.TrimPrefix(candidate, "."), v) {
			return true
		}
	}
	return false
}
