package out

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"coursedl/internal/modules/catalog/domain"
	catalogout "coursedl/internal/modules/catalog/port/out"
)

var (
	titleExt   = regexp.MustCompile(`\(([A-Za-z0-9]{2,5})\)\s*$`)
	plainExt   = regexp.MustCompile(`^[a-z0-9]{1,5}$`)
	whitespace = regexp.MustCompile(`\s+`)
)

// GoqueryParser reads the classic lecture index markup: a header per
// section followed by a list of lectures, each carrying resource anchors.
type GoqueryParser struct{}

func NewGoqueryParser() catalogout.PageParser {
	return GoqueryParser{}
}

func (GoqueryParser) Parse(page []byte, baseURL string) ([]domain.Section, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var sections []domain.Section
	doc.Find(".course-item-list-header").Each(func(_ int, header *goquery.Selection) {
		section := domain.Section{
			Index: len(sections) + 1,
			Name:  cleanText(header.Find("h3").First().Text()),
		}
		list := header.NextAllFiltered("ul.course-item-list-section-list").First()
		list.Find("li").Each(func(_ int, item *goquery.Selection) {
			lecture := domain.Lecture{
				Index: len(section.Lectures) + 1,
				Name:  cleanText(item.Find("a.lecture-link").First().Text()),
			}
			item.Find(".course-lecture-item-resource a[href]").Each(func(_ int, anchor *goquery.Selection) {
				href, _ := anchor.Attr("href")
				link, ok := resolveLink(base, href, anchor.AttrOr("title", ""))
				if ok {
					lecture.Links = append(lecture.Links, link)
				}
			})
			section.Lectures = append(section.Lectures, lecture)
		})
		sections = append(sections, section)
	})
	return sections, nil
}

func resolveLink(base *url.URL, href, title string) (domain.Link, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return domain.Link{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return domain.Link{}, false
	}
	abs := base.ResolveReference(ref)
	ext := extension(abs, title)
	if ext == "" {
		return domain.Link{}, false
	}
	return domain.Link{URL: abs.String(), Title: cleanText(title), Ext: ext}, true
}

// extension prefers an explicit format query parameter, then the path
// extension, then a "(MP4)" style hint in the anchor title.
func extension(u *url.URL, title string) string {
	if format := strings.ToLower(u.Query().Get("format")); plainExt.MatchString(format) {
		return format
	}
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), ".")); plainExt.MatchString(ext) {
		return ext
	}
	if m := titleExt.FindStringSubmatch(strings.TrimSpace(title)); m != nil {
		return strings.ToLower(m[1])
	}
	return ""
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
