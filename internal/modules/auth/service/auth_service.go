package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"coursedl/internal/modules/auth/domain"
	authout "coursedl/internal/modules/auth/port/out"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/slug"
	"coursedl/internal/platform/websession"
)

type Request struct {
	CourseID    string
	Credentials domain.Credentials
	UseNetrc    bool
	NetrcPath   string
	CookiesFile string
}

type AuthService struct {
	credentials  authout.CredentialFile
	cookies      authout.CookieStore
	remote       authout.Authenticator
	prompter     authout.PasswordPrompter
	cacheDir     string
	netrcMachine string
	log          logrus.FieldLogger
}

func NewAuthService(
	credentials authout.CredentialFile,
	cookies authout.CookieStore,
	remote authout.Authenticator,
	prompter authout.PasswordPrompter,
	cacheDir, netrcMachine string,
	log logrus.FieldLogger,
) *AuthService {
	return &AuthService{
		credentials:  credentials,
		cookies:      cookies,
		remote:       remote,
		prompter:     prompter,
		cacheDir:     cacheDir,
		netrcMachine: netrcMachine,
		log:          log,
	}
}

func (s *AuthService) Authenticate(ctx context.Context, req Request) (*websession.Session, domain.Origin, error) {
	if strings.TrimSpace(req.CourseID) == "" {
		return nil, "", fmt.Errorf("%w: course id is required", apperrors.ErrInvalidInput)
	}
	log := s.log.WithField("course", req.CourseID)

	if req.CookiesFile != "" {
		jar, err := s.cookies.Load(ctx, req.CookiesFile)
		if err != nil {
			return nil, "", fmt.Errorf("%w: cookies file %s: %v", apperrors.ErrConfig, req.CookiesFile, err)
		}
		ok, err := s.remote.Validate(ctx, jar, req.CourseID)
		if err != nil {
			return nil, "", fmt.Errorf("%w: validate cookies: %v", apperrors.ErrAuth, err)
		}
		if !ok {
			if err := s.remote.CourseCookies(ctx, jar, req.CourseID); err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil, "", err
				}
				return nil, "", fmt.Errorf("%w: cookies in %s are not valid for %s: %v", apperrors.ErrAuth, req.CookiesFile, req.CourseID, err)
			}
			log.Debug("fetched course cookies with the account cookie")
		}
		log.Debug("using cookies file")
		return websession.New(req.CourseID, "", jar), domain.OriginCookies, nil
	}

	creds, err := s.ResolveCredentials(ctx, req)
	if err != nil {
		return nil, "", err
	}
	log = log.WithField("user", creds.Username)

	cachePath := s.cachePath(creds.Username)
	if cachePath != "" {
		if jar, err := s.cookies.Load(ctx, cachePath); err == nil {
			sess, err := s.reuse(ctx, jar, req.CourseID, creds.Username, cachePath, log)
			if err != nil {
				return nil, "", err
			}
			if sess != nil {
				return sess, domain.OriginCache, nil
			}
			log.Debug("cached session is stale")
		}
	}

	jar, err := websession.NewJar()
	if err != nil {
		return nil, "", err
	}
	if err := s.remote.Login(ctx, jar, req.CourseID, creds); err != nil {
		if errors.Is(err, apperrors.ErrAuth) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", apperrors.ErrAuth, err)
	}
	log.Info("logged in")

	if cachePath != "" {
		if err := s.cookies.Save(ctx, cachePath, jar); err != nil {
			log.WithError(err).Warn("could not cache session cookies")
		}
	}
	return websession.New(req.CourseID, creds.Username, jar), domain.OriginLogin, nil
}

// reuse returns a session built from the cached jar, topping it up with the
// course cookies when only the account cookie is still good. A nil session
// with a nil error means the cache is stale.
func (s *AuthService) reuse(ctx context.Context, jar *websession.Jar, courseID, username, cachePath string, log logrus.FieldLogger) (*websession.Session, error) {
	ok, err := s.remote.Validate(ctx, jar, courseID)
	if err == nil && ok {
		log.Debug("reusing cached session")
		return websession.New(courseID, username, jar), nil
	}
	err = s.remote.CourseCookies(ctx, jar, courseID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		log.WithError(err).Debug("cached account cookie rejected")
		return nil, nil
	}
	log.Debug("reused cached account for a new course")
	if err := s.cookies.Save(ctx, cachePath, jar); err != nil {
		log.WithError(err).Warn("could not cache session cookies")
	}
	return websession.New(courseID, username, jar), nil
}

func (s *AuthService) ClearCache(ctx context.Context, username string) error {
	path := s.cachePath(username)
	if path == "" {
		return nil
	}
	if err := s.cookies.Remove(ctx, path); err != nil {
		return fmt.Errorf("%w: clear cookie cache: %v", apperrors.ErrIO, err)
	}
	return nil
}

// ResolveCredentials merges the request, the netrc entry and an interactive
// prompt into a username and password.
func (s *AuthService) ResolveCredentials(ctx context.Context, req Request) (domain.Credentials, error) {
	creds := req.Credentials
	if req.UseNetrc {
		found, err := s.credentials.Lookup(ctx, req.NetrcPath, s.netrcMachine)
		if err != nil {
			if errors.Is(err, apperrors.ErrConfig) {
				return domain.Credentials{}, err
			}
			return domain.Credentials{}, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
		}
		creds = found
	}
	if strings.TrimSpace(creds.Username) == "" {
		return domain.Credentials{}, fmt.Errorf("%w: provide a username with -u or a netrc file with -n", apperrors.ErrConfig)
	}
	if creds.Password == "" {
		if s.prompter == nil {
			return domain.Credentials{}, fmt.Errorf("%w: password is required", apperrors.ErrConfig)
		}
		pw, err := s.prompter.Prompt(ctx, creds.Username)
		if err != nil {
			return domain.Credentials{}, fmt.Errorf("%w: read password: %v", apperrors.ErrConfig, err)
		}
		creds.Password = pw
	}
	if err := creds.Validate(); err != nil {
		return domain.Credentials{}, fmt.Errorf("%w: %v", apperrors.ErrConfig, err)
	}
	return creds, nil
}

func (s *AuthService) cachePath(username string) string {
	if s.cacheDir == "" || strings.TrimSpace(username) == "" {
		return ""
	}
	return filepath.Join(s.cacheDir, "cookies", slug.Make(username)+".txt")
}
