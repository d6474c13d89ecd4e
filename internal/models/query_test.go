package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   *SearchQuery
		wantErr bool
	}{
		{"empty query", &SearchQuery{Query: "", RepositoryID: 1}, true},
		{"missing repository", &SearchQuery{Query: "parse"}, true},
		{"valid query", &SearchQuery{Query: "parse", RepositoryID: 1}, false},
		{"sets default limit", &SearchQuery{Query: "x", RepositoryID: 1, Limit: 0}, false},
		{"caps limit at 100", &SearchQuery{Query: "x", RepositoryID: 1, Limit: 200}, false},
		{"enables semantic when both false", &SearchQuery{Query: "x", RepositoryID: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.query.Limit == 0 {
				t.Error("expected default limit to be set")
			}
			if tt.query.Limit > 100 {
				t.Errorf("expected limit capped at 100, got %d", tt.query.Limit)
			}
			if !tt.query.KeywordEnabled && !tt.query.SemanticEnabled {
				t.Error("expected at least one search type enabled")
			}
		})
	}
}

func TestChunkRecord_QualifiedName(t *testing.T) {
	typ := "OrderService"
	withType := &ChunkRecord{TypeName: &typ, MemberName: "place", StartLine: 3, EndLine: 7}
	if got := withType.QualifiedName(); got != "OrderService.place" {
		t.Errorf("QualifiedName() = %q", got)
	}
	if got := withType.LineCount(); got != 5 {
		t.Errorf("LineCount() = %d, want 5", got)
	}
	bare := &ChunkRecord{MemberName: "main"}
	if got := bare.QualifiedName(); got != "main" {
		t.Errorf("QualifiedName() without type = %q", got)
	}
	if got := bare.EmbeddingText(); got != "main\n" {
		t.Errorf("EmbeddingText() = %q", got)
	}
}
