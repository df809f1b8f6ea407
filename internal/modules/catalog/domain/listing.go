package domain

import (
	"fmt"
	"iter"
	"net/url"
	"path"
	"strings"

	"coursedl/internal/platform/slug"
)

// Listing is the flattened, ordered resource list of one course. It is
// immutable; All can be ranged over any number of times.
type Listing struct {
	courseID  string
	sections  []Section
	resources []CourseResource
	rejected  []error
}

// NewListing flattens sections into resources. extra resources (course
// metadata) follow the lecture resources. maxName bounds each path component.
func NewListing(courseID string, sections []Section, extra []CourseResource, maxName int) Listing {
	var (
		resources []CourseResource
		rejected  []error
	)
	for _, r := range append(Flatten(sections, maxName), extra...) {
		if err := r.Validate(); err != nil {
			rejected = append(rejected, err)
			continue
		}
		resources = append(resources, r)
	}
	return Listing{courseID: courseID, sections: sections, resources: resources, rejected: rejected}
}

func (l Listing) CourseID() string { return l.courseID }

func (l Listing) Len() int { return len(l.resources) }

// Rejected lists why resources were left out of the listing.
func (l Listing) Rejected() []error { return l.rejected }

func (l Listing) Sections() []Section {
	out := make([]Section, len(l.sections))
	copy(out, l.sections)
	return out
}

func (l Listing) All() iter.Seq[CourseResource] {
	return func(yield func(CourseResource) bool) {
		for _, r := range l.resources {
			if !yield(r) {
				return
			}
		}
	}
}

const (
	// nameMax is the common filesystem limit on one path component, in bytes.
	nameMax = 255
	// tempOverhead is what a download adds to the file name while it is in
	// flight: a leading dot and ".part-" followed by 16 hex digits.
	tempOverhead = 1 + len(".part-") + 16
)

// Flatten names every link NN_section/NN_lecture.ext. A second link with an
// extension already used by the same lecture gets its title appended.
// maxName bounds each final path component including the extension; file
// names also keep room for their in-flight temp name.
func Flatten(sections []Section, maxName int) []CourseResource {
	var out []CourseResource
	for _, section := range sections {
		dir := slug.Truncate(component(section.Index, section.Name), dirBudget(maxName))
		for _, lecture := range section.Lectures {
			base := component(lecture.Index, lecture.Name)
			seen := map[string]bool{}
			for _, link := range lecture.Links {
				ext := strings.ToLower(link.Ext)
				name := base
				if seen[ext] {
					name = base + "_" + linkSlug(link)
				}
				seen[ext] = true
				name = slug.Truncate(name, fileBudget(maxName, ext))
				out = append(out, CourseResource{
					Name:         fmt.Sprintf("%s (%s)", lecture.Name, ext),
					URL:          link.URL,
					RelPath:      path.Join(dir, name+"."+ext),
					Kind:         KindForExt(ext),
					Ext:          ext,
					SectionIndex: section.Index,
					SectionName:  section.Name,
					LectureIndex: lecture.Index,
					LectureName:  lecture.Name,
				})
			}
		}
	}
	return out
}

func component(index int, name string) string {
	return fmt.Sprintf("%02d_%s", index, slug.Make(name))
}

func dirBudget(maxName int) int {
	if maxName > 0 && maxName < nameMax {
		return maxName
	}
	return nameMax
}

// fileBudget is the room left for a file name before ".ext". It never drops
// below the two digit index prefix.
func fileBudget(maxName int, ext string) int {
	limit := nameMax - tempOverhead
	if maxName > 0 && maxName < limit {
		limit = maxName
	}
	return max(limit-len(ext)-1, 2)
}

func linkSlug(link Link) string {
	if strings.TrimSpace(link.Title) != "" {
		return slug.Make(link.Title)
	}
	if u, err := url.Parse(link.URL); err == nil {
		base := path.Base(u.Path)
		return slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	}
	return "resource"
}
