// Package chunker splits Java source text into method-level chunk records using lexical cues only.
package chunker

import (
	"regexp"
	"strings"

	"github.com/hyperjump/codelens/internal/models"
)

// Extractor turns raw file text into ordered chunk records.
// Implementations never fail: malformed input yields best-effort records.
type Extractor interface {
	Extract(text string) []models.ChunkRecord
}

var (
	// typeDeclPattern matches a type definition keyword followed by its name.
	typeDeclPattern = regexp.MustCompile(`\bclass\s+(\w+)`)
	// memberSigPattern matches "<visibility> <return type> <name>(" on a single line.
	// Annotations, generics and array brackets in the return type are tolerated.
	memberSigPattern = regexp.MustCompile(`\b(public|private|protected)\s+[\w<>\[\]]+\s+(\w+)\s*\(`)
)

// JavaExtractor finds method fragments by matching signatures line by line and
// counting braces until nesting returns to zero. Quotes, comments and string
// literals are not special-cased.
type JavaExtractor struct {
	typeDecl  *regexp.Regexp
	memberSig *regexp.Regexp
}

// NewJavaExtractor returns the lexical Java extractor.
func NewJavaExtractor() *JavaExtractor {
	return &JavaExtractor{
		typeDecl:  typeDeclPattern,
		memberSig: memberSigPattern,
	}
}

// Extract returns one record per signature line in source order. Every matching
// line opens its own capture, even while an earlier capture is still open, so
// nested signatures (anonymous classes, local classes) produce overlapping records.
func (e *JavaExtractor) Extract(text string) []models.ChunkRecord {
	lines := strings.Split(text, "\n")
	var (
		records     []models.ChunkRecord
		currentType *string
	)
	for i, line := range lines {
		if m := e.typeDecl.FindStringSubmatch(line); m != nil {
			name := m[1]
			currentType = &name
		}
		m := e.memberSig.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rec := captureBlock(lines, i)
		rec.MemberName = m[2]
		if currentType != nil {
			name := *currentType
			rec.TypeName = &name
		}
		records = append(records, rec)
	}
	return records
}

// captureBlock scans forward from start until brace depth is back to zero on a
// line holding at least one closing brace. When end of file comes first the
// record is marked degraded and runs to the last line.
func captureBlock(lines []string, start int) models.ChunkRecord {
	depth := 0
	end := -1
	for j := start; j < len(lines); j++ {
		depth += strings.Count(lines[j], "{")
		depth -= strings.Count(lines[j], "}")
		if depth == 0 && strings.Contains(lines[j], "}") {
			end = j
			break
		}
	}
	rec := models.ChunkRecord{StartLine: start + 1}
	if end < 0 {
		end = len(lines) - 1
		rec.Degraded = true
	}
	rec.EndLine = end + 1
	rec.Content = strings.Join(lines[start:end+1], "\n")
	return rec
}
