package out

import (
	"context"

	"coursedl/internal/modules/auth/domain"
	"coursedl/internal/platform/websession"
)

// CredentialFile looks up a machine entry in a netrc-style file. An empty
// path means the platform default location.
type CredentialFile interface {
	Lookup(ctx context.Context, path, machine string) (domain.Credentials, error)
}

// CookieStore reads and writes cookies.txt files.
type CookieStore interface {
	Load(ctx context.Context, path string) (*websession.Jar, error)
	Save(ctx context.Context, path string, jar *websession.Jar) error
	Remove(ctx context.Context, path string) error
}

// Authenticator talks to the remote platform.
type Authenticator interface {
	Login(ctx context.Context, jar *websession.Jar, courseID string, creds domain.Credentials) error
	Validate(ctx context.Context, jar *websession.Jar, courseID string) (bool, error)
	// CourseCookies adds the class cookies of courseID to a jar that already
	// holds a logged in account. Unknown courses wrap ErrNotFound.
	CourseCookies(ctx context.Context, jar *websession.Jar, courseID string) error
}

type PasswordPrompter interface {
	Prompt(ctx context.Context, username string) (string, error)
}
