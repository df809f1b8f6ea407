package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"coursedl/internal/modules/run/domain"
	runout "coursedl/internal/modules/run/port/out"
)

type M3UWriter struct{}

func NewM3UWriter() runout.PlaylistWriter {
	return M3UWriter{}
}

func (M3UWriter) Write(_ context.Context, playlist domain.Playlist) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, entry := range playlist.Entries {
		b.WriteString(filepath.ToSlash(entry))
		b.WriteString("\n")
	}
	if err := os.MkdirAll(filepath.Dir(playlist.Path), 0o755); err != nil {
		return fmt.Errorf("create playlist dir: %w", err)
	}
	if err := os.WriteFile(playlist.Path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}
	return nil
}
