// Package storage persists repositories, source files and code chunks.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/codelens/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines repository, file and chunk persistence operations.
type Storage interface {
	// Repository operations
	CreateRepository(ctx context.Context, repo *models.Repository) error
	GetRepository(ctx context.Context, id int64) (*models.Repository, error)
	GetRepositoryByKey(ctx context.Context, rootKey string) (*models.Repository, error)
	ListRepositories(ctx context.Context) ([]*models.Repository, error)
	DeleteRepository(ctx context.Context, id int64) error
	// ClearRepository removes every file and chunk of a repository but keeps the repository row.
	ClearRepository(ctx context.Context, id int64) error

	// File and chunk operations
	CreateFile(ctx context.Context, file *models.SourceFile) error
	BatchCreateChunks(ctx context.Context, chunks []*models.CodeChunk) error
	GetChunk(ctx context.Context, id int64) (*models.CodeChunk, error)
	GetChunksByIDs(ctx context.Context, ids []int64) (map[int64]*models.CodeChunk, error)
	GetChunksByRepository(ctx context.Context, repoID int64, offset, limit int) ([]*models.CodeChunk, error)
	GetChunkIDsByRepository(ctx context.Context, repoID int64) ([]int64, error)

	// Stats
	CountRepositories(ctx context.Context) (int64, error)
	CountFiles(ctx context.Context, repoID int64) (int64, error)
	CountChunks(ctx context.Context, repoID int64) (int64, error)

	Close() error
}
