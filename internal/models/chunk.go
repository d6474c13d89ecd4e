package models

import "strings"

// ChunkRecord is a fragment of a source file believed to hold one method.
//
// TypeName is the most recent type declaration seen at or before StartLine,
// which is not necessarily the lexically enclosing type. It is nil when no
// declaration precedes the fragment.
type ChunkRecord struct {
	TypeName   *string `json:"class_name"`
	MemberName string  `json:"method_name"`
	Content    string  `json:"content"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	// Degraded is set when the closing brace was never found and the fragment
	// runs to end of file.
	Degraded bool `json:"degraded,omitempty"`
}

// LineCount returns the number of physical lines spanned by the record.
func (c *ChunkRecord) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// QualifiedName returns "Type.member", or just the member when no type is known.
func (c *ChunkRecord) QualifiedName() string {
	if c.TypeName == nil || *c.TypeName == "" {
		return c.MemberName
	}
	return *c.TypeName + "." + c.MemberName
}

// EmbeddingText is the text handed to the embedder for this record.
func (c *ChunkRecord) EmbeddingText() string {
	var b strings.Builder
	b.WriteString(c.QualifiedName())
	b.WriteByte('\n')
	b.WriteString(c.Content)
	return b.String()
}

// CodeChunk is a stored ChunkRecord with its durable identity.
type CodeChunk struct {
	ID           int64  `json:"id" db:"id"`
	FileID       int64  `json:"file_id" db:"file_id"`
	RepositoryID int64  `json:"repo_id" db:"repo_id"`
	FilePath     string `json:"file_path,omitempty" db:"-"`
	ChunkRecord
	Embedding []float32 `json:"-" db:"-"`
}
