package out

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	catalogout "coursedl/internal/modules/catalog/port/out"
)

type FilePageCache struct{}

func NewFilePageCache() catalogout.PageCache {
	return FilePageCache{}
}

func (FilePageCache) Load(_ context.Context, path string) ([]byte, bool, error) {
	page, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return page, len(page) > 0, nil
}

func (FilePageCache) Store(_ context.Context, path string, page []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create page dir: %w", err)
		}
	}
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return nil
}
