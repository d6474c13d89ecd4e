package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery is returned by Validate for queries that cannot be run.
var ErrInvalidQuery = errors.New("invalid query")

// SearchQuery is a free-text query against one repository.
type SearchQuery struct {
	Query           string  `json:"query"`
	RepositoryID    int64   `json:"repo_id"`
	Limit           int     `json:"limit,omitempty"`
	KeywordEnabled  bool    `json:"keyword_enabled,omitempty"`
	SemanticEnabled bool    `json:"semantic_enabled,omitempty"`
	MinScore        float64 `json:"min_score,omitempty"`
	// Weights of zero are filled from config.
	KeywordWeight  float64 `json:"keyword_weight,omitempty"`
	SemanticWeight float64 `json:"semantic_weight,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns an error if the query is empty or names no repository; otherwise normalizes
// limit and enables semantic search when neither search type is enabled.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.RepositoryID <= 0 {
		return fmt.Errorf("%w: repo_id must be positive", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if !q.KeywordEnabled && !q.SemanticEnabled {
		q.SemanticEnabled = true
	}
	return nil
}
