// Package fileid derives deterministic keys from filesystem paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const repoPrefix = "repo:"

// RepoKey returns a stable key for a repository rooted at the given absolute path.
// Re-indexing the same root finds the same repository row.
func RepoKey(absoluteRoot string) string {
	normalized := filepath.Clean(absoluteRoot)
	hash := sha256.Sum256([]byte(normalized))
	return repoPrefix + hex.EncodeToString(hash[:16])
}

const archivePrefix = "archive:"

// ArchiveKey returns the key of a repository uploaded as an archive under name.
// Uploading again under the same name replaces that repository.
func ArchiveKey(name string) string {
	hash := sha256.Sum256([]byte(name))
	return archivePrefix + hex.EncodeToString(hash[:16])
}
