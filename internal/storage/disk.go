// Package storage reports how much disk the local data files use.
package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// PathUsage is the size of one named data path.
type PathUsage struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// Usage sizes each named path (a file or a directory, summed recursively) and returns the
// entries sorted by name with their total. Empty and missing paths count as zero.
func Usage(paths map[string]string) ([]PathUsage, int64, error) {
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]PathUsage, 0, len(names))
	var total int64
	for _, name := range names {
		n, err := sizeOf(paths[name])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, PathUsage{Name: name, Path: paths[name], Bytes: n})
		total += n
	}
	return out, total, nil
}

func sizeOf(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		total += fi.Size()
		return nil
	})
	return total, err
}
