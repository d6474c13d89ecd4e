// Package search provides the main hybrid search engine.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/codelens/internal/config"
	"github.com/hyperjump/codelens/internal/embedding"
	"github.com/hyperjump/codelens/internal/keyword"
	"github.com/hyperjump/codelens/internal/models"
	"github.com/hyperjump/codelens/internal/storage"
	"github.com/hyperjump/codelens/internal/vector"
	"go.uber.org/zap"
)

// Engine runs hybrid (keyword + semantic) search over one repository at a time.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectors      *vector.Registry
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	logger       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectors *vector.Registry,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
	opts ...EngineOption,
) *Engine {
	if cfg == nil {
		var c config.Config
		config.ApplyDefaults(&c)
		cfg = &c.Search
	}
	e := &Engine{
		storage:      storage,
		embedder:     embedder,
		vectors:      vectors,
		keywordIndex: keywordIndex,
		config:       cfg,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs hybrid search and returns chunk-level results for query.RepositoryID.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}
	if _, err := e.storage.GetRepository(ctx, query.RepositoryID); err != nil {
		return nil, err
	}

	candidates := e.config.TopKCandidates
	if candidates < query.Limit {
		candidates = query.Limit
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if query.KeywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opts := &keyword.SearchOptions{
				MemberBoost:  e.config.MemberNameBoost,
				FuzzyEnabled: e.config.FuzzyEnabled,
			}
			results, err := e.keywordIndex.Search(ctx, query.Query, query.RepositoryID, candidates, opts)
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if query.SemanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryEmbedding, err := e.embedder.Embed(ctx, query.Query)
			if err != nil {
				errChan <- fmt.Errorf("embedding failed: %w", err)
				return
			}
			results, err := e.vectors.Search(ctx, query.RepositoryID, queryEmbedding, candidates)
			if err != nil {
				errChan <- fmt.Errorf("vector search failed: %w", err)
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(
		NormalizeKeywordScores(keywordResults),
		NormalizeSemanticScores(semanticResults),
		query.KeywordWeight, query.SemanticWeight,
	)
	fused = FilterMinScore(fused, query.MinScore)

	// Look up a little more than a page so stale ids do not shorten it.
	lookup := fused
	if len(lookup) > query.Limit*2 {
		lookup = lookup[:query.Limit*2]
	}
	ids := make([]int64, len(lookup))
	for i, r := range lookup {
		ids[i] = r.ChunkID
	}
	chunks, err := e.storage.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	response := &models.SearchResponse{
		Results:      make([]*models.SearchResult, 0, query.Limit),
		Query:        query.Query,
		RepositoryID: query.RepositoryID,
	}
	stale := 0
	for _, r := range lookup {
		if len(response.Results) == query.Limit {
			break
		}
		chunk, ok := chunks[r.ChunkID]
		if !ok || chunk.RepositoryID != query.RepositoryID {
			stale++
			continue
		}
		response.Results = append(response.Results, &models.SearchResult{
			Chunk:         chunk,
			Score:         r.Score,
			KeywordScore:  r.KeywordScore,
			SemanticScore: r.SemanticScore,
			Snippet:       Snippet(chunk.Content, query.Query, e.config.SnippetLength),
			Rank:          len(response.Results) + 1,
		})
	}
	if stale > 0 {
		e.logger.Warn("search skipped chunks missing from storage",
			zap.Int64("repo_id", query.RepositoryID), zap.Int("count", stale))
	}
	response.Total = len(fused) - stale
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}
