package search

import (
	"github.com/hyperjump/codelens/internal/config"
	"github.com/hyperjump/codelens/internal/models"
)

// ProcessQuery applies configured defaults, validates the query, and resolves the
// fusion weights. A disabled search type gets weight zero and the remaining weights
// are scaled to sum to one.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	if cfg != nil {
		if query.Limit <= 0 {
			query.Limit = cfg.DefaultLimit
		}
		if !query.KeywordEnabled && !query.SemanticEnabled {
			query.KeywordEnabled = cfg.DefaultKeywordEnabled
			query.SemanticEnabled = cfg.DefaultSemanticEnabled
		}
		if query.KeywordWeight == 0 && query.SemanticWeight == 0 {
			query.KeywordWeight = cfg.DefaultKeywordWeight
			query.SemanticWeight = cfg.DefaultSemanticWeight
		}
	}
	if err := query.Validate(); err != nil {
		return err
	}
	if cfg != nil && cfg.MaxLimit > 0 && query.Limit > cfg.MaxLimit {
		query.Limit = cfg.MaxLimit
	}

	if !query.KeywordEnabled {
		query.KeywordWeight = 0
	}
	if !query.SemanticEnabled {
		query.SemanticWeight = 0
	}
	if query.KeywordWeight < 0 {
		query.KeywordWeight = 0
	}
	if query.SemanticWeight < 0 {
		query.SemanticWeight = 0
	}
	sum := query.KeywordWeight + query.SemanticWeight
	if sum == 0 {
		// Weights were not given for the enabled types; split evenly.
		if query.KeywordEnabled {
			query.KeywordWeight = 1
		}
		if query.SemanticEnabled {
			query.SemanticWeight = 1
		}
		sum = query.KeywordWeight + query.SemanticWeight
	}
	query.KeywordWeight /= sum
	query.SemanticWeight /= sum
	return nil
}
