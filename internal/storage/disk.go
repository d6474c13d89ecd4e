package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage is the on-disk footprint of each store, in bytes.
type DiskUsage struct {
	Database int64 `json:"database"`
	Keyword  int64 `json:"keyword"`
	Vectors  int64 `json:"vectors"`
	Total    int64 `json:"total"`
}

// MeasureDiskUsage sizes the SQLite database (with its WAL and shared-memory
// sidecars), the Bleve index directory and the vector index root.
func MeasureDiskUsage(dbPath, keywordPath, vectorPath string) (*DiskUsage, error) {
	var u DiskUsage
	var err error
	if dbPath != "" {
		if u.Database, err = DiskUsageBytes(dbPath, dbPath+"-wal", dbPath+"-shm"); err != nil {
			return nil, err
		}
	}
	if u.Keyword, err = DiskUsageBytes(keywordPath); err != nil {
		return nil, err
	}
	if u.Vectors, err = DiskUsageBytes(vectorPath); err != nil {
		return nil, err
	}
	u.Total = u.Database + u.Keyword + u.Vectors
	return &u, nil
}

// DiskUsageBytes sums the sizes of files and directory trees. Empty and missing
// paths count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := treeSize(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}
