// Package source finds source files in a repository tree and unpacks uploaded archives.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the file extensions indexed when none are configured.
var DefaultExtensions = []string{".java"}

// skippedDirs are build output and dependency directories never worth indexing.
var skippedDirs = map[string]struct{}{
	"target":       {},
	"build":        {},
	"out":          {},
	"node_modules": {},
}

// File is one source file found under a repository root.
type File struct {
	// Path is relative to the root, slash separated.
	Path     string
	AbsPath  string
	Language string
	Size     int64
	Content  string
}

// LanguageFor returns the language of path by extension, or "" when unknown.
func LanguageFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".java":
		return "java"
	default:
		return ""
	}
}

// ExtensionAllowed reports whether path has one of exts (case-insensitive, leading dot optional).
func ExtensionAllowed(path string, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return false
	}
	for _, a := range exts {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory with this base name is excluded from walks.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	_, ok := skippedDirs[name]
	return ok
}

// Walk returns the regular files under root whose extension is in exts, sorted by Path.
// Hidden directories and build output directories are skipped. Symlinks are not followed.
func Walk(root string, exts []string) ([]File, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absRoot)
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absRoot && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !ExtensionAllowed(path, exts) {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:     filepath.ToSlash(rel),
			AbsPath:  path,
			Language: LanguageFor(path),
			Size:     int64(len(content)),
			Content:  string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
