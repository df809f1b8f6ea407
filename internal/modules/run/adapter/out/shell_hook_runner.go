package out

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	runout "coursedl/internal/modules/run/port/out"
)

// ShellHookRunner runs hooks through the platform shell so users can pass
// pipelines and arguments in one string.
type ShellHookRunner struct {
	stdout io.Writer
	stderr io.Writer
}

func NewShellHookRunner(stdout, stderr io.Writer) runout.HookRunner {
	return ShellHookRunner{stdout: stdout, stderr: stderr}
}

func (r ShellHookRunner) Run(ctx context.Context, dir, command string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run hook %q: %w", command, err)
	}
	return nil
}
