// Package keyword provides lexical (BM25-style) search over code chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/codelens/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// MemberBoost multiplies matches in the method name field. Use 1.0 for no boost.
	MemberBoost float64
	// FuzzyEnabled matches identifier pieces within Fuzziness edits of the query terms.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 1.
	Fuzziness int
}

// KeywordIndex defines keyword search operations. Every document belongs to one repository
// and searches never cross repositories.
type KeywordIndex interface {
	Index(ctx context.Context, chunk *models.CodeChunk) error
	IndexBatch(ctx context.Context, chunks []*models.CodeChunk) error
	Search(ctx context.Context, query string, repoID int64, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// DeleteRepository removes every document of a repository.
	DeleteRepository(ctx context.Context, repoID int64) error
	// DocCount returns the total number of documents in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit. ID is the chunk ID.
type KeywordResult struct {
	ID    int64
	Score float64
}
