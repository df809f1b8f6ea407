package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bgentry/go-netrc/netrc"

	"coursedl/internal/modules/auth/domain"
	authout "coursedl/internal/modules/auth/port/out"
	apperrors "coursedl/internal/platform/errors"
)

type NetrcCredentialFile struct{}

func NewNetrcCredentialFile() authout.CredentialFile {
	return NetrcCredentialFile{}
}

func (NetrcCredentialFile) Lookup(_ context.Context, path, machine string) (domain.Credentials, error) {
	candidates := []string{path}
	if path == "" {
		candidates = defaultNetrcPaths()
	}
	var lastErr error
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			lastErr = err
			continue
		}
		m, err := netrc.FindMachine(candidate, machine)
		if err != nil {
			return domain.Credentials{}, fmt.Errorf("%w: parse %s: %v", apperrors.ErrConfig, candidate, err)
		}
		if m == nil || (m.IsDefault() && m.Login == "") {
			lastErr = fmt.Errorf("no machine %q in %s", machine, candidate)
			continue
		}
		return domain.Credentials{Username: m.Login, Password: m.Password}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no netrc file found")
	}
	return domain.Credentials{}, fmt.Errorf("%w: %v", apperrors.ErrConfig, lastErr)
}

func defaultNetrcPaths() []string {
	if env := os.Getenv("NETRC"); env != "" {
		return []string{env}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	if runtime.GOOS == "windows" {
		return []string{filepath.Join(home, "_netrc"), filepath.Join(home, ".netrc")}
	}
	return []string{filepath.Join(home, ".netrc")}
}
