package out

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	authout "coursedl/internal/modules/auth/port/out"
)

type TermPrompter struct {
	in  *os.File
	out io.Writer
}

func NewTermPrompter(in *os.File, out io.Writer) authout.PasswordPrompter {
	return TermPrompter{in: in, out: out}
}

func (p TermPrompter) Prompt(_ context.Context, username string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	_, _ = fmt.Fprintf(p.out, "Password for %s: ", username)
	raw, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
