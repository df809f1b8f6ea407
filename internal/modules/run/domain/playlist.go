package domain

import (
	"path/filepath"
	"sort"
)

// Playlist is an M3U file for one section directory. Entries are relative to
// the playlist's own directory.
type Playlist struct {
	Path    string
	Entries []string
}

// Playlists groups finished video tasks by section directory.
func Playlists(tasks []PlannedTask, results []TaskResult) []Playlist {
	byDir := map[string][]string{}
	var dirs []string
	for i, task := range tasks {
		if task.Kind != "video" || i >= len(results) {
			continue
		}
		if s := results[i].Status; s != StatusDone && s != StatusSkipped {
			continue
		}
		dir := filepath.Dir(task.DestPath)
		if _, ok := byDir[dir]; !ok {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], filepath.Base(task.DestPath))
	}
	sort.Strings(dirs)
	out := make([]Playlist, 0, len(dirs))
	for _, dir := range dirs {
		out = append(out, Playlist{
			Path:    filepath.Join(dir, filepath.Base(dir)+".m3u"),
			Entries: byDir[dir],
		})
	}
	return out
}
