package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// PathUsage is the on-disk size of one storage path.
type PathUsage struct {
	Path    string
	Bytes   int64
	Missing bool
}

// DiskUsage reports the size of each non-empty path. Directories such as the
// Bleve index are summed recursively; SQLite's -wal and -shm side files are
// counted with the database file they belong to.
func DiskUsage(paths ...string) ([]PathUsage, error) {
	out := make([]PathUsage, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if errors.Is(err, fs.ErrNotExist) {
			out = append(out, PathUsage{Path: p, Missing: true})
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, side := range []string{p + "-wal", p + "-shm"} {
			if info, err := os.Stat(side); err == nil && !info.IsDir() {
				n += info.Size()
			}
		}
		out = append(out, PathUsage{Path: p, Bytes: n})
	}
	return out, nil
}

// TotalBytes sums the sizes in usage.
func TotalBytes(usage []PathUsage) int64 {
	var total int64
	for _, u := range usage {
		total += u.Bytes
	}
	return total
}

func pathSize(p string) (int64, error) {
	info, err := os.Stat(p)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
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
