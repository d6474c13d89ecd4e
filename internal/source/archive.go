package source

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidArchive is returned for archives that cannot be read or contain unsafe entries.
var ErrInvalidArchive = errors.New("invalid archive")

// MaxArchiveBytes bounds the total uncompressed size ExtractArchive will write.
const MaxArchiveBytes = 1 << 30

// ExtractArchive unpacks the zip file at archivePath into destDir. Entries with
// absolute paths or ".." segments are rejected before anything is written.
func ExtractArchive(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer r.Close()

	names := make([]string, len(r.File))
	var total uint64
	for i, f := range r.File {
		name := sanitizeArchivePath(f.Name)
		if name == "" && !isRootEntry(f.Name) {
			return fmt.Errorf("%w: unsafe entry %q", ErrInvalidArchive, f.Name)
		}
		if f.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: symlink entry %q", ErrInvalidArchive, f.Name)
		}
		total += f.UncompressedSize64
		if total > MaxArchiveBytes {
			return fmt.Errorf("%w: uncompressed size exceeds %d bytes", ErrInvalidArchive, MaxArchiveBytes)
		}
		names[i] = name
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", destDir, err)
	}
	for i, f := range r.File {
		if names[i] == "" {
			continue
		}
		target := filepath.Join(destDir, names[i])
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, f.Name, err)
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(rc, int64(f.UncompressedSize64)+1)); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, f.Name, err)
	}
	return out.Close()
}

func isRootEntry(name string) bool {
	n := strings.ReplaceAll(name, "\\", "/")
	return n == "./" || n == "." || n == "/"
}

// sanitizeArchivePath rejects absolute paths and traversal sequences in archive entries.
func sanitizeArchivePath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || (len(name) > 1 && name[1] == ':') {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return ""
		}
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." {
		return ""
	}
	return clean
}
