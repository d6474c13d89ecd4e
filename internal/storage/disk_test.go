package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func writeBytes(t *testing.T, path string, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "codelens.db")
	writeBytes(t, file, 5)
	sub := filepath.Join(dir, "vectors")
	writeBytes(t, filepath.Join(sub, "repo-1", "code_index.vec"), 2)
	writeBytes(t, filepath.Join(sub, "repo-2", "id_mapping.gob"), 1)

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"single file", []string{file}, 5},
		{"nested dir", []string{sub}, 3},
		{"file and dir", []string{file, sub}, 8},
		{"missing skipped", []string{file, filepath.Join(dir, "nonexistent"), sub}, 8},
		{"empty skipped", []string{"", file}, 5},
		{"none", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d bytes, want %d", got, tt.want)
			}
		})
	}
}

func TestMeasureDiskUsage(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db", "codelens.db")
	writeBytes(t, db, 10)
	writeBytes(t, db+"-wal", 4)
	bleveDir := filepath.Join(dir, "indices", "bleve")
	writeBytes(t, filepath.Join(bleveDir, "store", "root.bolt"), 7)
	vecDir := filepath.Join(dir, "indices", "vectors")

	u, err := MeasureDiskUsage(db, bleveDir, vecDir)
	if err != nil {
		t.Fatal(err)
	}
	want := DiskUsage{Database: 14, Keyword: 7, Vectors: 0, Total: 21}
	if *u != want {
		t.Errorf("usage = %+v, want %+v", *u, want)
	}

	u, err = MeasureDiskUsage("", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if u.Total != 0 {
		t.Errorf("empty paths total = %d", u.Total)
	}
}
