package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/codelens/internal/models"
)

// maxInParams bounds the number of placeholders in one IN (...) query.
const maxInParams = 500

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		root_key TEXT UNIQUE,
		root_path TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		language TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_files_repo_id ON files(repo_id);

	CREATE TABLE IF NOT EXISTS code_chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id INTEGER NOT NULL,
		repo_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		class_name TEXT,
		method_name TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_repo_id ON code_chunks(repo_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_file_id ON code_chunks(file_id);
	`
	_, err := db.Exec(schema)
	return err
}

// nullableKey stores an empty root key as NULL so UNIQUE does not apply to uploads.
func nullableKey(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateRepository inserts a repository and sets its ID and CreatedAt.
func (s *SQLiteStorage) CreateRepository(ctx context.Context, repo *models.Repository) error {
	repo.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO repositories (name, description, root_key, root_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		repo.Name, repo.Description, nullableKey(repo.RootKey), repo.RootPath, repo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	repo.ID, err = res.LastInsertId()
	return err
}

const repositoryColumns = `id, name, COALESCE(description, ''), COALESCE(root_key, ''), COALESCE(root_path, ''), created_at`

func scanRepository(row interface{ Scan(...any) error }) (*models.Repository, error) {
	var repo models.Repository
	if err := row.Scan(&repo.ID, &repo.Name, &repo.Description, &repo.RootKey, &repo.RootPath, &repo.CreatedAt); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetRepository returns a repository by ID.
func (s *SQLiteStorage) GetRepository(ctx context.Context, id int64) (*models.Repository, error) {
	repo, err := scanRepository(s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository %d: %w", id, ErrNotFound)
	}
	return repo, err
}

// GetRepositoryByKey returns the repository indexed from the root identified by rootKey.
func (s *SQLiteStorage) GetRepositoryByKey(ctx context.Context, rootKey string) (*models.Repository, error) {
	repo, err := scanRepository(s.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE root_key = ?`, rootKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("repository with key %s: %w", rootKey, ErrNotFound)
	}
	return repo, err
}

// ListRepositories returns all repositories ordered by ID.
func (s *SQLiteStorage) ListRepositories(ctx context.Context) ([]*models.Repository, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+repositoryColumns+` FROM repositories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	repos := make([]*models.Repository, 0)
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

// DeleteRepository removes a repository with its files and chunks.
func (s *SQLiteStorage) DeleteRepository(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := clearRepositoryTx(ctx, tx, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("repository %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// ClearRepository removes every file and chunk of a repository.
func (s *SQLiteStorage) ClearRepository(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := clearRepositoryTx(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func clearRepositoryTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM code_chunks WHERE repo_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE repo_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

// CreateFile inserts a source file and sets its ID.
func (s *SQLiteStorage) CreateFile(ctx context.Context, file *models.SourceFile) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (repo_id, file_path, language, size) VALUES (?, ?, ?, ?)`,
		file.RepositoryID, file.Path, file.Language, file.Size,
	)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", file.Path, err)
	}
	file.ID, err = res.LastInsertId()
	return err
}

// BatchCreateChunks inserts multiple chunks in a transaction and sets their IDs in order.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO code_chunks (file_id, repo_id, content, class_name, method_name, start_line, end_line, degraded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ids := make([]int64, len(chunks))
	for i, c := range chunks {
		var className sql.NullString
		if c.TypeName != nil {
			className = sql.NullString{String: *c.TypeName, Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			c.FileID, c.RepositoryID, c.Content, className, c.MemberName, c.StartLine, c.EndLine, c.Degraded)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.MemberName, err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	for i, c := range chunks {
		c.ID = ids[i]
	}
	return nil
}

const chunkSelect = `SELECT c.id, c.file_id, c.repo_id, f.file_path, c.content, c.class_name, c.method_name,
	c.start_line, c.end_line, c.degraded
	FROM code_chunks c JOIN files f ON f.id = c.file_id`

func scanChunk(row interface{ Scan(...any) error }) (*models.CodeChunk, error) {
	var c models.CodeChunk
	var className sql.NullString
	if err := row.Scan(&c.ID, &c.FileID, &c.RepositoryID, &c.FilePath, &c.Content, &className,
		&c.MemberName, &c.StartLine, &c.EndLine, &c.Degraded); err != nil {
		return nil, err
	}
	if className.Valid {
		name := className.String
		c.TypeName = &name
	}
	return &c, nil
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id int64) (*models.CodeChunk, error) {
	c, err := scanChunk(s.db.QueryRowContext(ctx, chunkSelect+` WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %d: %w", id, ErrNotFound)
	}
	return c, err
}

// GetChunksByIDs returns the chunks that exist among ids, keyed by ID.
func (s *SQLiteStorage) GetChunksByIDs(ctx context.Context, ids []int64) (map[int64]*models.CodeChunk, error) {
	out := make(map[int64]*models.CodeChunk, len(ids))
	for start := 0; start < len(ids); start += maxInParams {
		end := start + maxInParams
		if end > len(ids) {
			end = len(ids)
		}
		part := ids[start:end]
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(part)), ",")
		rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE c.id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			c, err := scanChunk(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[c.ID] = c
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetChunksByRepository returns a page of a repository's chunks ordered by file and line.
// A limit of zero or less returns every chunk.
func (s *SQLiteStorage) GetChunksByRepository(ctx context.Context, repoID int64, offset, limit int) ([]*models.CodeChunk, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		chunkSelect+` WHERE c.repo_id = ? ORDER BY f.file_path, c.start_line, c.id LIMIT ? OFFSET ?`,
		repoID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]*models.CodeChunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunkIDsByRepository returns the IDs of a repository's chunks in ascending order.
func (s *SQLiteStorage) GetChunkIDsByRepository(ctx context.Context, repoID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM code_chunks WHERE repo_id = ? ORDER BY id`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountRepositories returns the total number of repositories.
func (s *SQLiteStorage) CountRepositories(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM repositories`).Scan(&count)
	return count, err
}

// CountFiles returns the number of files of a repository, or of all repositories when repoID is 0.
func (s *SQLiteStorage) CountFiles(ctx context.Context, repoID int64) (int64, error) {
	return s.count(ctx, "files", repoID)
}

// CountChunks returns the number of chunks of a repository, or of all repositories when repoID is 0.
func (s *SQLiteStorage) CountChunks(ctx context.Context, repoID int64) (int64, error) {
	return s.count(ctx, "code_chunks", repoID)
}

func (s *SQLiteStorage) count(ctx context.Context, table string, repoID int64) (int64, error) {
	var count int64
	var err error
	if repoID == 0 {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE repo_id = ?`, repoID).Scan(&count)
	}
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
