package usecase

import (
	"context"
	"fmt"
	"regexp"

	"coursedl/internal/modules/catalog/domain"
	"coursedl/internal/modules/catalog/dto"
	catalogin "coursedl/internal/modules/catalog/port/in"
	"coursedl/internal/modules/catalog/service"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/websession"
)

type Interactor struct {
	svc *service.CatalogService
}

func NewInteractor(svc *service.CatalogService) catalogin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) ListResources(ctx context.Context, session *websession.Session, input dto.ListInput) (dto.Listing, error) {
	filter, err := toFilter(input.Filter)
	if err != nil {
		return dto.Listing{}, err
	}
	listing, err := i.svc.ListResources(ctx, session, service.Request{
		CourseID:          input.CourseID,
		Filter:            filter,
		LecturesPage:      input.LecturesPage,
		About:             input.About,
		MaxFilenameLength: input.MaxFilenameLength,
	})
	if err != nil {
		return dto.Listing{}, err
	}

	out := dto.Listing{CourseID: listing.CourseID()}
	for r := range listing.All() {
		out.Resources = append(out.Resources, dto.ResourceOutput{
			Name:         r.Name,
			URL:          r.URL,
			RelPath:      r.RelPath,
			Kind:         string(r.Kind),
			Ext:          r.Ext,
			SectionIndex: r.SectionIndex,
			SectionName:  r.SectionName,
			LectureIndex: r.LectureIndex,
			LectureName:  r.LectureName,
		})
	}
	for _, section := range listing.Sections() {
		s := dto.SectionOutput{Index: section.Index, Name: section.Name}
		for _, lecture := range section.Lectures {
			s.Lectures = append(s.Lectures, lecture.Name)
		}
		out.Tree = append(out.Tree, s)
	}
	return out, nil
}

func toFilter(in dto.FilterInput) (domain.Filter, error) {
	filter := domain.Filter{
		Sections:    in.Sections,
		Formats:     in.Formats,
		SkipFormats: in.SkipFormats,
		Reverse:     in.Reverse,
	}
	var err error
	if filter.SectionRegex, err = compile("section filter", in.SectionPattern); err != nil {
		return domain.Filter{}, err
	}
	if filter.LectureRegex, err = compile("lecture filter", in.LecturePattern); err != nil {
		return domain.Filter{}, err
	}
	if filter.ResourceRegex, err = compile("resource filter", in.ResourcePattern); err != nil {
		return domain.Filter{}, err
	}
	return filter, nil
}

func compile(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidInput, name, err)
	}
	return re, nil
}
