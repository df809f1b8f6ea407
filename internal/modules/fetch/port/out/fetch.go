package out

import (
	"context"

	"coursedl/internal/platform/websession"
)

// Transport downloads rawURL into the file at dest, replacing its content,
// and reports the bytes written. Retryable failures wrap ErrNetwork.
type Transport interface {
	Download(ctx context.Context, session *websession.Session, rawURL, dest string) (int64, error)
}

// DocumentChecker inspects a document format and returns its page count.
type DocumentChecker interface {
	Pages(ctx context.Context, path string) (int, error)
}
