package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"coursedl/internal/modules/catalog/domain"
	catalogout "coursedl/internal/modules/catalog/port/out"
	"coursedl/internal/platform/config"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/websession"
)

const aboutFile = "about.json"

type Request struct {
	CourseID          string
	Filter            domain.Filter
	LecturesPage      string
	About             bool
	MaxFilenameLength int
}

type CatalogService struct {
	source    catalogout.PageSource
	parser    catalogout.PageParser
	cache     catalogout.PageCache
	endpoints config.Endpoints
	log       logrus.FieldLogger
}

func NewCatalogService(source catalogout.PageSource, parser catalogout.PageParser, cache catalogout.PageCache, endpoints config.Endpoints, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{source: source, parser: parser, cache: cache, endpoints: endpoints, log: log}
}

func (s *CatalogService) ListResources(ctx context.Context, session *websession.Session, req Request) (domain.Listing, error) {
	if strings.TrimSpace(req.CourseID) == "" {
		return domain.Listing{}, fmt.Errorf("%w: course id is required", apperrors.ErrInvalidInput)
	}
	log := s.log.WithField("course", req.CourseID)

	page, err := s.lecturesPage(ctx, session, req, log)
	if err != nil {
		return domain.Listing{}, err
	}
	sections, err := s.parser.Parse(page, config.Expand(s.endpoints.Lectures, req.CourseID))
	if err != nil {
		return domain.Listing{}, fmt.Errorf("%w: parse lectures of %s: %v", apperrors.ErrNotFound, req.CourseID, err)
	}
	if len(sections) == 0 {
		return domain.Listing{}, fmt.Errorf("%w: no sections found for %s, has the honor code been accepted?", apperrors.ErrNotFound, req.CourseID)
	}

	var extra []domain.CourseResource
	if req.About && s.endpoints.About != "" {
		extra = append(extra, domain.CourseResource{
			Name:    "about",
			URL:     config.Expand(s.endpoints.About, req.CourseID),
			RelPath: aboutFile,
			Kind:    domain.KindMetadata,
			Ext:     "json",
		})
	}
	listing := domain.NewListing(req.CourseID, req.Filter.Apply(sections), extra, req.MaxFilenameLength)
	for _, err := range listing.Rejected() {
		log.WithError(err).Warn("skipping resource")
	}
	log.WithField("resources", listing.Len()).Debug("listed course")
	return listing, nil
}

func (s *CatalogService) lecturesPage(ctx context.Context, session *websession.Session, req Request, log logrus.FieldLogger) ([]byte, error) {
	if req.LecturesPage != "" && s.cache != nil {
		page, ok, err := s.cache.Load(ctx, req.LecturesPage)
		if err != nil {
			return nil, fmt.Errorf("%w: read lectures page: %v", apperrors.ErrIO, err)
		}
		if ok {
			log.WithField("path", req.LecturesPage).Debug("using cached lectures page")
			return page, nil
		}
	}
	page, err := s.source.FetchLectures(ctx, session, req.CourseID)
	if err != nil {
		return nil, err
	}
	if req.LecturesPage != "" && s.cache != nil {
		if err := s.cache.Store(ctx, req.LecturesPage, page); err != nil {
			log.WithError(err).Warn("could not cache lectures page")
		}
	}
	return page, nil
}
