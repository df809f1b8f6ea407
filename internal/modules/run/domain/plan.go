package domain

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Item is a listed resource as the planner sees it.
type Item struct {
	Name         string
	URL          string
	Kind         string
	RelPath      string
	SectionIndex int
}

// PlannedTask binds an item to an absolute destination.
type PlannedTask struct {
	Item
	DestPath string
}

// Plan lays items out under courseRoot. Colliding destinations get -2, -3,
// ... before the extension, in listing order, so re-runs agree on paths.
func Plan(courseRoot string, items []Item) []PlannedTask {
	used := make(map[string]bool, len(items))
	out := make([]PlannedTask, 0, len(items))
	for _, item := range items {
		rel := item.RelPath
		for n := 2; used[strings.ToLower(rel)]; n++ {
			rel = numbered(item.RelPath, n)
		}
		used[strings.ToLower(rel)] = true
		item.RelPath = rel
		out = append(out, PlannedTask{Item: item, DestPath: filepath.Join(courseRoot, filepath.FromSlash(rel))})
	}
	return out
}

func numbered(rel string, n int) string {
	ext := path.Ext(rel)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(rel, ext), n, ext)
}
