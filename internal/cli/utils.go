// Package cli provides output helpers for the codelens command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/codelens/internal/models"
	"github.com/hyperjump/codelens/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat returns the format named by s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const rule = "─────────────────────────────────────────────────────────\n"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprint(w, rule)
	fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
		result.Rank, result.Score, result.KeywordScore, result.SemanticScore)
	if c := result.Chunk; c != nil {
		fmt.Fprintf(w, "%s  %s:%d-%d\n", c.QualifiedName(), c.FilePath, c.StartLine, c.EndLine)
		snippet := result.Snippet
		if snippet == "" {
			snippet = utils.Truncate(c.Content, 200)
		}
		fmt.Fprintf(w, "\n%s\n", snippet)
	}
	fmt.Fprintln(w)
}

// WriteIndexReport writes the outcome of an index run.
func WriteIndexReport(w io.Writer, report *models.IndexReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	if report.Repository != nil {
		fmt.Fprintf(w, "Indexed repository %d (%s)\n", report.Repository.ID, report.Repository.Name)
	}
	fmt.Fprintf(w, "  files:    %d\n", report.Files)
	fmt.Fprintf(w, "  chunks:   %d", report.Chunks)
	if report.DegradedChunks > 0 {
		fmt.Fprintf(w, " (%d run to end of file)", report.DegradedChunks)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  vectors:  %d\n", report.VectorCount)
	fmt.Fprintf(w, "  duration: %dms\n", report.DurationMillis)
	return nil
}

// RepositoryStats pairs a repository with its stored counts.
type RepositoryStats struct {
	*models.Repository
	Files  int64 `json:"files"`
	Chunks int64 `json:"chunks"`
}

// WriteRepositories writes a repository listing.
func WriteRepositories(w io.Writer, repos []RepositoryStats, format OutputFormat) error {
	if format == OutputJSON {
		if repos == nil {
			repos = []RepositoryStats{}
		}
		return writeJSON(w, repos)
	}
	if len(repos) == 0 {
		fmt.Fprintln(w, "No repositories indexed.")
		return nil
	}
	for _, r := range repos {
		source := r.RootPath
		if source == "" {
			source = "(uploaded archive)"
		}
		fmt.Fprintf(w, "%4d  %-24s %6d files %7d chunks  %s\n", r.ID, r.Name, r.Files, r.Chunks, source)
	}
	return nil
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
