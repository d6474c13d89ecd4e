package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/codelens/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func seedRepository(t *testing.T, store *SQLiteStorage, key string) (*models.Repository, *models.SourceFile) {
	t.Helper()
	ctx := context.Background()
	repo := &models.Repository{Name: "demo", Description: "demo repo", RootKey: key}
	if err := store.CreateRepository(ctx, repo); err != nil {
		t.Fatal(err)
	}
	file := &models.SourceFile{RepositoryID: repo.ID, Path: "src/Greeter.java", Language: "java", Size: 120}
	if err := store.CreateFile(ctx, file); err != nil {
		t.Fatal(err)
	}
	return repo, file
}

func TestSQLiteStorage_Repositories(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	repo := &models.Repository{Name: "alpha", Description: "first", RootKey: "key-a", RootPath: "/src/alpha"}
	if err := store.CreateRepository(ctx, repo); err != nil {
		t.Fatal(err)
	}
	if repo.ID == 0 {
		t.Fatal("ID should be assigned")
	}
	if repo.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetRepository(ctx, repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "alpha" || got.Description != "first" || got.RootKey != "key-a" || got.RootPath != "/src/alpha" {
		t.Errorf("got %+v", got)
	}

	byKey, err := store.GetRepositoryByKey(ctx, "key-a")
	if err != nil {
		t.Fatal(err)
	}
	if byKey.ID != repo.ID {
		t.Errorf("GetRepositoryByKey id=%d, want %d", byKey.ID, repo.ID)
	}

	// Uploaded repositories have no root key; several may coexist.
	for i := 0; i < 2; i++ {
		if err := store.CreateRepository(ctx, &models.Repository{Name: "upload"}); err != nil {
			t.Fatalf("create keyless repository %d: %v", i, err)
		}
	}
	if err := store.CreateRepository(ctx, &models.Repository{Name: "dup", RootKey: "key-a"}); err == nil {
		t.Error("expected unique violation for duplicate root key")
	}

	list, err := store.ListRepositories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 repositories, got %d", len(list))
	}
	n, _ := store.CountRepositories(ctx)
	if n != 3 {
		t.Errorf("CountRepositories=%d, want 3", n)
	}

	if _, err := store.GetRepository(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRepository missing: err=%v, want ErrNotFound", err)
	}
	if _, err := store.GetRepositoryByKey(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRepositoryByKey missing: err=%v, want ErrNotFound", err)
	}
	if err := store.DeleteRepository(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRepository missing: err=%v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_Chunks(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	repo, file := seedRepository(t, store, "k1")

	chunks := []*models.CodeChunk{
		{FileID: file.ID, RepositoryID: repo.ID, ChunkRecord: models.ChunkRecord{
			TypeName: strPtr("Greeter"), MemberName: "greet", Content: "public String greet() {\n}", StartLine: 3, EndLine: 4,
		}},
		{FileID: file.ID, RepositoryID: repo.ID, ChunkRecord: models.ChunkRecord{
			MemberName: "helper", Content: "private int helper() {", StartLine: 9, EndLine: 12, Degraded: true,
		}},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if chunks[0].ID == 0 || chunks[1].ID <= chunks[0].ID {
		t.Fatalf("IDs not assigned in order: %d, %d", chunks[0].ID, chunks[1].ID)
	}

	got, err := store.GetChunk(ctx, chunks[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TypeName == nil || *got.TypeName != "Greeter" {
		t.Errorf("TypeName=%v, want Greeter", got.TypeName)
	}
	if got.FilePath != "src/Greeter.java" || got.StartLine != 3 || got.EndLine != 4 {
		t.Errorf("got %+v", got)
	}

	got2, _ := store.GetChunk(ctx, chunks[1].ID)
	if got2.TypeName != nil {
		t.Errorf("TypeName=%q, want nil", *got2.TypeName)
	}
	if !got2.Degraded {
		t.Error("Degraded flag not persisted")
	}

	byIDs, err := store.GetChunksByIDs(ctx, []int64{chunks[1].ID, 424242, chunks[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(byIDs) != 2 || byIDs[chunks[0].ID] == nil || byIDs[chunks[1].ID] == nil {
		t.Errorf("GetChunksByIDs=%v", byIDs)
	}

	list, err := store.GetChunksByRepository(ctx, repo.ID, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].MemberName != "greet" {
		t.Errorf("GetChunksByRepository=%v", list)
	}
	page, _ := store.GetChunksByRepository(ctx, repo.ID, 1, 1)
	if len(page) != 1 || page[0].MemberName != "helper" {
		t.Errorf("second page=%v", page)
	}

	ids, _ := store.GetChunkIDsByRepository(ctx, repo.ID)
	if len(ids) != 2 || ids[0] != chunks[0].ID {
		t.Errorf("GetChunkIDsByRepository=%v", ids)
	}

	if _, err := store.GetChunk(ctx, 424242); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetChunk missing: err=%v, want ErrNotFound", err)
	}
}

func TestSQLiteStorage_ClearAndDelete(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	repoA, fileA := seedRepository(t, store, "a")
	repoB, fileB := seedRepository(t, store, "b")

	for _, pair := range []struct {
		repo *models.Repository
		file *models.SourceFile
	}{{repoA, fileA}, {repoB, fileB}} {
		err := store.BatchCreateChunks(ctx, []*models.CodeChunk{{
			FileID: pair.file.ID, RepositoryID: pair.repo.ID,
			ChunkRecord: models.ChunkRecord{MemberName: "m", Content: "x", StartLine: 1, EndLine: 1},
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := store.ClearRepository(ctx, repoA.ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountChunks(ctx, repoA.ID); n != 0 {
		t.Errorf("chunks of cleared repository=%d, want 0", n)
	}
	if n, _ := store.CountFiles(ctx, repoA.ID); n != 0 {
		t.Errorf("files of cleared repository=%d, want 0", n)
	}
	if _, err := store.GetRepository(ctx, repoA.ID); err != nil {
		t.Errorf("cleared repository row should remain: %v", err)
	}
	if n, _ := store.CountChunks(ctx, repoB.ID); n != 1 {
		t.Errorf("other repository chunks=%d, want 1", n)
	}

	if err := store.DeleteRepository(ctx, repoB.ID); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountChunks(ctx, 0); n != 0 {
		t.Errorf("total chunks=%d, want 0", n)
	}
	if n, _ := store.CountFiles(ctx, 0); n != 0 {
		t.Errorf("total files=%d, want 0", n)
	}
	if n, _ := store.CountRepositories(ctx); n != 1 {
		t.Errorf("repositories=%d, want 1", n)
	}
}
