package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	roots []string
}

func (r *recorder) onChange(root string) {
	r.mu.Lock()
	r.roots = append(r.roots, root)
	r.mu.Unlock()
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roots...)
}

// waitFor polls until at least n callbacks arrived or the deadline passes.
func (r *recorder) waitFor(n int, d time.Duration) []string {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if c := r.calls(); len(c) >= n {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	return r.calls()
}

func startWatcher(t *testing.T, roots []string, rec *recorder) *Watcher {
	t.Helper()
	w := NewWatcher(roots, []string{".java"}, rec.onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, nil, rec)

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || dirs[0] != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
	if err := w.AddDirectory(filepath.Join(dir, "missing"), false); err == nil {
		t.Error("expected error for a missing root")
	}
}

func TestWatcher_AddDirectoryWithRebuild(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, nil, rec)
	if err := w.AddDirectory(dir, true); err != nil {
		t.Fatal(err)
	}
	if got := rec.waitFor(1, 2*time.Second); len(got) != 1 || got[0] != filepath.Clean(dir) {
		t.Errorf("callbacks = %v", got)
	}
}

func TestWatcher_AddDirectoryBeforeStart(t *testing.T) {
	w := NewWatcher(nil, nil, nil)
	if err := w.AddDirectory(t.TempDir(), false); err == nil {
		t.Error("expected error before Start")
	}
}

func TestWatcher_DebouncesPerRoot(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "src")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	for i := 0; i < 5; i++ {
		if err := writeFile(filepath.Join(sub, "A.java"), "class A {}"); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(sub, "B.java"), "class B {}"); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(1, 2*time.Second)
	time.Sleep(200 * time.Millisecond)
	got := rec.calls()
	if len(got) != 1 {
		t.Fatalf("expected one debounced rebuild, got %v", got)
	}
	if got[0] != filepath.Clean(dir) {
		t.Errorf("rebuild root = %q, want %q", got[0], dir)
	}
}

func TestWatcher_IgnoresOtherExtensionsAndSkippedDirs(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := mkdirAll(target); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	if err := writeFile(filepath.Join(dir, "notes.md"), "x"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(target, "Gen.java"), "class Gen {}"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := rec.calls(); len(got) != 0 {
		t.Errorf("expected no rebuilds, got %v", got)
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	// Let the creation rebuild fire and the new directories get watched.
	rec.waitFor(1, 2*time.Second)
	time.Sleep(100 * time.Millisecond)
	before := len(rec.calls())

	if err := writeFile(filepath.Join(nested, "Deep.java"), "class Deep {}"); err != nil {
		t.Fatal(err)
	}
	if got := rec.waitFor(before+1, 2*time.Second); len(got) < before+1 {
		t.Errorf("write in new nested directory did not trigger a rebuild: %v", got)
	}
}

func TestWatcher_RemoveTriggersRebuild(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "Gone.java")
	if err := writeFile(f, "class Gone {}"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)
	if err := os.Remove(f); err != nil {
		t.Fatal(err)
	}
	if got := rec.waitFor(1, 2*time.Second); len(got) != 1 {
		t.Errorf("remove should trigger a rebuild, got %v", got)
	}
}

func TestWatcher_RebuildAll(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{a, b}, nil, rec.onChange)
	w.RebuildAll()
	got := rec.calls()
	if len(got) != 2 || got[0] != filepath.Clean(a) || got[1] != filepath.Clean(b) {
		t.Errorf("RebuildAll callbacks = %v", got)
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/B.java", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestSkippedPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/r/src/A.java", false},
		{"/r/target/A.java", true},
		{"/r/.git/HEAD", true},
		{"/r/src/build/x/A.java", true},
		{"/r", false},
	}
	for _, tt := range tests {
		if got := skippedPath("/r", tt.path); got != tt.want {
			t.Errorf("skippedPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
