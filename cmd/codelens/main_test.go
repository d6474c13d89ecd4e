package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/codelens/internal/models"
)

const orderSrc = `package shop;

public class OrderService {
    public Order placeOrder(Cart cart) {
        return new Order(cart.items());
    }

    public void cancelOrder(long id) {
        orders.remove(id);
    }
}
`

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"placeOrder"}, "placeOrder"},
		{"multiple words", []string{"place", "order"}, "place order"},
		{"single quoted phrase", []string{"place order"}, "place order"},
		{"surrounding space", []string{" place ", "order "}, "place  order"},
		{"empty", []string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%q) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestToInt64(t *testing.T) {
	tests := []struct {
		in   interface{}
		want int64
		ok   bool
	}{
		{int64(5), 5, true},
		{7, 7, true},
		{float64(1024), 1024, true},
		{"12", 0, false},
	}
	for _, tt := range tests {
		got, ok := toInt64(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("toInt64(%v) = %d, %v", tt.in, got, ok)
		}
	}
}

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`storage:
  data_dir: %s
embedding:
  provider: mock
  dimensions: 32
`, filepath.Join(dir, "data"))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "codelens version dev") {
		t.Errorf("output = %q", out)
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := run(t, "repos", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for a missing explicit config")
	}
}

func TestIndexArgs(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := run(t, "index", "--config", cfgPath); err == nil {
		t.Error("expected error without a directory or archive")
	}
	if _, err := run(t, "index", "--config", cfgPath, "--archive", "x.zip", t.TempDir()); err == nil {
		t.Error("expected error with both a directory and an archive")
	}
	if _, err := run(t, "index", "--config", cfgPath, "-o", "yaml", t.TempDir()); err == nil {
		t.Error("expected error for an unknown output format")
	}
}

func TestSearchRequiresRepo(t *testing.T) {
	if _, err := run(t, "search", "--server", "", "placeOrder"); err == nil {
		t.Error("expected error without --repo")
	}
}

func TestSearchRejectsBothTypesDisabled(t *testing.T) {
	_, err := run(t, "search", "--server", "", "--repo", "1", "--keyword=false", "--semantic=false", "placeOrder")
	if err == nil || !strings.Contains(err.Error(), "at least one of --keyword and --semantic") {
		t.Errorf("err = %v", err)
	}
}

func TestIndexSearchDeleteDirect(t *testing.T) {
	cfgPath := writeTestConfig(t)
	repoDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(repoDir, "OrderService.java"), []byte(orderSrc), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "index", "--config", cfgPath, "--name", "shop", "-o", "json", repoDir)
	if err != nil {
		t.Fatalf("index: %v (%s)", err, out)
	}
	var report models.IndexReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report %q: %v", out, err)
	}
	if report.Chunks != 2 || report.Repository.Name != "shop" {
		t.Fatalf("report = %+v", report)
	}
	id := fmt.Sprint(report.Repository.ID)

	out, err = run(t, "search", "--config", cfgPath, "--server", "", "--repo", id, "--semantic=false", "-o", "json", "placeOrder")
	if err != nil {
		t.Fatalf("search: %v (%s)", err, out)
	}
	var response models.SearchResponse
	if err := json.Unmarshal([]byte(out), &response); err != nil {
		t.Fatalf("decode response %q: %v", out, err)
	}
	if len(response.Results) == 0 || response.Results[0].Chunk.MemberName != "placeOrder" {
		t.Errorf("results = %+v", response.Results)
	}

	out, err = run(t, "repos", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "shop") || !strings.Contains(out, repoDir) {
		t.Errorf("repos output = %q", out)
	}

	out, err = run(t, "status", "--config", cfgPath, "--server", "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "chunks:") || !strings.Contains(out, "vector_index_type:") {
		t.Errorf("status output = %q", out)
	}

	if _, err := run(t, "delete", "--config", cfgPath, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := run(t, "delete", "--config", cfgPath, id); err == nil {
		t.Error("expected error deleting a missing repository")
	}
	if _, err := run(t, "delete", "--config", cfgPath, "abc"); err == nil {
		t.Error("expected error for a non-numeric id")
	}
}
