// Package indexer builds a repository's chunks, keyword documents and vector index from source.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/codelens/internal/chunker"
	"github.com/hyperjump/codelens/internal/config"
	"github.com/hyperjump/codelens/internal/embedding"
	"github.com/hyperjump/codelens/internal/fileid"
	"github.com/hyperjump/codelens/internal/keyword"
	"github.com/hyperjump/codelens/internal/models"
	"github.com/hyperjump/codelens/internal/source"
	"github.com/hyperjump/codelens/internal/storage"
	"github.com/hyperjump/codelens/internal/vector"
	"go.uber.org/zap"
)

var (
	// ErrInvalidInput is returned for a missing name or a path that is not a readable directory.
	ErrInvalidInput = errors.New("invalid repository input")
	// ErrNoSourceRoot is returned when reindexing a repository that was uploaded as an archive.
	ErrNoSourceRoot = errors.New("repository has no source directory")
)

const defaultBatchSize = 32

// Indexer indexes repositories into storage, the keyword index, and per-repository vector indices.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectors      *vector.Registry
	keywordIndex keyword.KeywordIndex
	extractor    *chunker.JavaExtractor
	extensions   []string
	batchSize    int
	workspace    string
	logger       *zap.Logger // optional; when set, logs debug events

	// mu serializes rebuilds; concurrent searches are not blocked.
	mu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file indexed, repository deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
// cfg may be nil; extensions, batch size and the upload workspace then use defaults.
func NewIndexer(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectors *vector.Registry,
	keywordIndex keyword.KeywordIndex,
	cfg *config.Config,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:      storage,
		embedder:     embedder,
		vectors:      vectors,
		keywordIndex: keywordIndex,
		extractor:    chunker.NewJavaExtractor(),
		extensions:   source.DefaultExtensions,
		batchSize:    defaultBatchSize,
		workspace:    os.TempDir(),
	}
	if cfg != nil {
		if len(cfg.Index.Extensions) > 0 {
			idx.extensions = cfg.Index.Extensions
		}
		if cfg.Embedding.BatchSize > 0 {
			idx.batchSize = cfg.Embedding.BatchSize
		}
		if cfg.Storage.WorkspacePath != "" {
			idx.workspace = cfg.Storage.WorkspacePath
		}
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Extensions returns the file extensions this indexer reads.
func (idx *Indexer) Extensions() []string {
	return idx.extensions
}

// IndexRepository indexes the directory input.Root. The repository row is found by the
// root's key, so indexing the same directory again replaces its previous contents.
func (idx *Indexer) IndexRepository(ctx context.Context, input *models.RepositoryInput) (*models.IndexReport, error) {
	if input == nil || input.Root == "" {
		return nil, fmt.Errorf("%w: repository path is required", ErrInvalidInput)
	}
	absRoot, err := filepath.Abs(input.Root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidInput, absRoot)
	}
	name := input.Name
	if name == "" {
		name = filepath.Base(absRoot)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	repo, err := idx.findOrCreate(ctx, &models.Repository{
		Name:        name,
		Description: input.Description,
		RootKey:     fileid.RepoKey(absRoot),
		RootPath:    absRoot,
	})
	if err != nil {
		return nil, err
	}
	return idx.rebuild(ctx, repo, absRoot)
}

// IndexArchive extracts the zip at archivePath into a scratch workspace, indexes it as
// the repository called name, and removes the workspace. Uploading under the same name
// again replaces that repository.
func (idx *Indexer) IndexArchive(ctx context.Context, name, description, archivePath string) (*models.IndexReport, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: repository name is required", ErrInvalidInput)
	}
	dir := filepath.Join(idx.workspace, uuid.New().String())
	defer func() {
		if err := os.RemoveAll(dir); err != nil && idx.logger != nil {
			idx.logger.Warn("failed to remove upload workspace", zap.String("dir", dir), zap.Error(err))
		}
	}()
	if err := source.ExtractArchive(archivePath, dir); err != nil {
		return nil, err
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	repo, err := idx.findOrCreate(ctx, &models.Repository{
		Name:        name,
		Description: description,
		RootKey:     fileid.ArchiveKey(name),
	})
	if err != nil {
		return nil, err
	}
	return idx.rebuild(ctx, repo, dir)
}

// ReindexRepository rebuilds a repository from its source directory.
func (idx *Indexer) ReindexRepository(ctx context.Context, id int64) (*models.IndexReport, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	repo, err := idx.storage.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	if repo.RootPath == "" {
		return nil, fmt.Errorf("repository %d: %w", id, ErrNoSourceRoot)
	}
	return idx.rebuild(ctx, repo, repo.RootPath)
}

// ReindexRoot rebuilds the repository indexed from root, if there is one.
// It returns storage.ErrNotFound when root was never indexed.
func (idx *Indexer) ReindexRoot(ctx context.Context, root string) (*models.IndexReport, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	repo, err := idx.storage.GetRepositoryByKey(ctx, fileid.RepoKey(absRoot))
	if err != nil {
		return nil, err
	}
	return idx.ReindexRepository(ctx, repo.ID)
}

func (idx *Indexer) findOrCreate(ctx context.Context, want *models.Repository) (*models.Repository, error) {
	repo, err := idx.storage.GetRepositoryByKey(ctx, want.RootKey)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up repository: %w", err)
	}
	if err := idx.storage.CreateRepository(ctx, want); err != nil {
		return nil, err
	}
	if idx.logger != nil {
		idx.logger.Info("repository created", zap.Int64("repo_id", want.ID), zap.String("name", want.Name))
	}
	return want, nil
}

// rebuild replaces everything indexed for repo with the chunks found under root.
// Sources are walked, extracted and embedded before anything indexed is cleared, so
// a walk or embedding failure leaves the previous index searchable. Caller must hold idx.mu.
func (idx *Indexer) rebuild(ctx context.Context, repo *models.Repository, root string) (*models.IndexReport, error) {
	start := time.Now()
	report := &models.IndexReport{Repository: repo}

	files, err := source.Walk(root, idx.extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to walk sources: %w", err)
	}
	extracted := make([]extractedFile, len(files))
	var chunks []*models.CodeChunk
	for i, f := range files {
		extracted[i] = idx.extractFile(repo.ID, f)
		chunks = append(chunks, extracted[i].chunks...)
	}
	if err := idx.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	if err := idx.keywordIndex.DeleteRepository(ctx, repo.ID); err != nil {
		return nil, fmt.Errorf("failed to clear keyword index: %w", err)
	}
	if err := idx.storage.ClearRepository(ctx, repo.ID); err != nil {
		return nil, fmt.Errorf("failed to clear repository: %w", err)
	}
	for _, ef := range extracted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := idx.storeFile(ctx, ef); err != nil {
			return nil, err
		}
		report.Files++
	}
	if err := idx.keywordIndex.IndexBatch(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to index keywords: %w", err)
	}

	ids := make([]int64, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		vecs[i] = c.Embedding
		if c.Degraded {
			report.DegradedChunks++
		}
	}
	if err := idx.vectors.Rebuild(ctx, repo.ID, ids, vecs); err != nil {
		return nil, fmt.Errorf("failed to rebuild vector index: %w", err)
	}

	report.Chunks = len(chunks)
	report.VectorCount = len(ids)
	report.DurationMillis = time.Since(start).Milliseconds()
	if idx.logger != nil {
		idx.logger.Info("repository indexed",
			zap.Int64("repo_id", repo.ID),
			zap.Int("files", report.Files),
			zap.Int("chunks", report.Chunks),
			zap.Int("degraded", report.DegradedChunks),
			zap.Int64("duration_ms", report.DurationMillis))
	}
	return report, nil
}

// extractedFile is a scanned source file and its chunks, not yet stored.
type extractedFile struct {
	file   *models.SourceFile
	chunks []*models.CodeChunk
}

func (idx *Indexer) extractFile(repoID int64, f source.File) extractedFile {
	records := idx.extractor.Extract(f.Content)
	chunks := make([]*models.CodeChunk, len(records))
	for i, r := range records {
		chunks[i] = &models.CodeChunk{
			RepositoryID: repoID,
			FilePath:     f.Path,
			ChunkRecord:  r,
		}
	}
	return extractedFile{
		file:   &models.SourceFile{RepositoryID: repoID, Path: f.Path, Language: f.Language, Size: f.Size},
		chunks: chunks,
	}
}

// storeFile stores one file row and its chunks, which receive their IDs. Files
// without methods are still recorded so file counts reflect what was scanned.
func (idx *Indexer) storeFile(ctx context.Context, ef extractedFile) error {
	if err := idx.storage.CreateFile(ctx, ef.file); err != nil {
		return fmt.Errorf("failed to store file %s: %w", ef.file.Path, err)
	}
	for _, c := range ef.chunks {
		c.FileID = ef.file.ID
	}
	if err := idx.storage.BatchCreateChunks(ctx, ef.chunks); err != nil {
		return fmt.Errorf("failed to store chunks of %s: %w", ef.file.Path, err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer file indexed", zap.String("path", ef.file.Path), zap.Int("chunks", len(ef.chunks)))
	}
	return nil
}

// embedChunks fills chunk embeddings in batches and checks every vector can be
// indexed, so a bad embedding is caught before the old index is cleared.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []*models.CodeChunk) error {
	dims := idx.embedder.Dimensions()
	for start := 0; start < len(chunks); start += idx.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.EmbeddingText()
		}
		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
		}
		for i, e := range embeddings {
			c := chunks[start+i]
			if len(e) != dims {
				return fmt.Errorf("embedding for %s: %w: got %d, expected %d",
					c.QualifiedName(), vector.ErrDimensionMismatch, len(e), dims)
			}
			if _, err := vector.Normalize(e); err != nil {
				return fmt.Errorf("embedding for %s: %w", c.QualifiedName(), err)
			}
			c.Embedding = e
		}
	}
	return nil
}

// DeleteRepository removes a repository from all indices and storage.
func (idx *Indexer) DeleteRepository(ctx context.Context, id int64) error {
	if idx.logger != nil {
		idx.logger.Debug("indexer deleting repository", zap.Int64("repo_id", id))
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, err := idx.storage.GetRepository(ctx, id); err != nil {
		return err
	}
	if err := idx.keywordIndex.DeleteRepository(ctx, id); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := idx.vectors.Drop(id); err != nil {
		return fmt.Errorf("failed to delete vector index: %w", err)
	}
	if err := idx.storage.DeleteRepository(ctx, id); err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer repository deleted", zap.Int64("repo_id", id))
	}
	return nil
}
