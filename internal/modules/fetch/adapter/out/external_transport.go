package out

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	fetchout "coursedl/internal/modules/fetch/port/out"
	apperrors "coursedl/internal/platform/errors"
	"coursedl/internal/platform/websession"
)

var defaultBinaries = map[string]string{
	"wget":  "wget",
	"curl":  "curl",
	"aria2": "aria2c",
	"axel":  "axel",
}

// ExternalTransport hands the transfer to wget, curl, aria2c or axel. The
// session cookies travel as a header on the command line.
type ExternalTransport struct {
	kind string
	bin  string
}

func NewExternalTransport(kind, bin string) (fetchout.Transport, error) {
	def, ok := defaultBinaries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported downloader %q", apperrors.ErrConfig, kind)
	}
	if bin == "" {
		bin = def
	}
	return &ExternalTransport{kind: kind, bin: bin}, nil
}

// Args builds the command line for one download, without the binary.
func (t *ExternalTransport) Args(rawURL, dest, cookies string) []string {
	var args []string
	switch t.kind {
	case "wget":
		args = []string{rawURL, "-O", dest, "--no-cookies", "--no-check-certificate"}
		if cookies != "" {
			args = append(args, "--header", "Cookie: "+cookies)
		}
	case "curl":
		args = []string{rawURL, "-k", "-#", "-L", "-o", dest}
		if cookies != "" {
			args = append(args, "--cookie", cookies)
		}
	case "aria2":
		args = []string{rawURL, "-o", dest, "--check-certificate=false", "--log-level=notice",
			"--max-connection-per-server=4", "--min-split-size=1M", "--allow-overwrite=true"}
		if cookies != "" {
			args = append(args, "--header", "Cookie: "+cookies)
		}
	case "axel":
		args = []string{"-o", dest, "-n", "4", "-a", rawURL}
		if cookies != "" {
			args = append(args, "-H", "Cookie: "+cookies)
		}
	}
	return args
}

func (t *ExternalTransport) Download(ctx context.Context, session *websession.Session, rawURL, dest string) (int64, error) {
	// axel and aria2c refuse to write over an existing file.
	_ = os.Remove(dest)

	cmd := exec.CommandContext(ctx, t.bin, t.Args(rawURL, dest, session.CookieHeader(rawURL))...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("%w: %s exited with %d: %s", apperrors.ErrNetwork, t.bin, exitErr.ExitCode(), lastLine(stderr.String()))
		}
		return 0, fmt.Errorf("%w: run %s: %v", apperrors.ErrConfig, t.bin, err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: %s produced no file: %v", apperrors.ErrIO, t.bin, err)
	}
	return info.Size(), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
