package out

import (
	"context"

	"coursedl/internal/modules/catalog/domain"
	"coursedl/internal/platform/websession"
)

// PageSource downloads the raw lectures index of a course.
type PageSource interface {
	FetchLectures(ctx context.Context, session *websession.Session, courseID string) ([]byte, error)
}

// PageParser turns a lectures index into sections. baseURL resolves
// relative links.
type PageParser interface {
	Parse(page []byte, baseURL string) ([]domain.Section, error)
}

// PageCache keeps a copy of the lectures index on disk.
type PageCache interface {
	Load(ctx context.Context, path string) ([]byte, bool, error)
	Store(ctx context.Context, path string, page []byte) error
}
