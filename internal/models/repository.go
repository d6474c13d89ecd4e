// Package models defines core data structures for repositories, code chunks, queries, and search results.
package models

import "time"

// Repository is an ingested source tree.
type Repository struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
	RootKey     string `json:"root_key,omitempty" db:"root_key"`
	// RootPath is the indexed directory; empty for uploaded archives.
	RootPath  string    `json:"root_path,omitempty" db:"root_path"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RepositoryInput is the input for indexing a repository from a local directory.
type RepositoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Root        string `json:"path"`
}

// SourceFile is one file of a repository that went through chunk extraction.
type SourceFile struct {
	ID           int64  `json:"id" db:"id"`
	RepositoryID int64  `json:"repo_id" db:"repo_id"`
	Path         string `json:"file_path" db:"file_path"`
	Language     string `json:"language,omitempty" db:"language"`
	Size         int64  `json:"size" db:"size"`
}

// IndexReport summarizes one full rebuild of a repository.
type IndexReport struct {
	Repository     *Repository `json:"repository"`
	Files          int         `json:"files"`
	Chunks         int         `json:"chunks"`
	DegradedChunks int         `json:"degraded_chunks"`
	VectorCount    int         `json:"vector_count"`
	DurationMillis int64       `json:"duration_ms"`
}
