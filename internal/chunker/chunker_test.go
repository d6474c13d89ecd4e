package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func typeName(t *testing.T, p *string) string {
	t.Helper()
	if p == nil {
		return "<nil>"
	}
	return *p
}

func TestJavaExtractor_SingleMethod(t *testing.T) {
	src := strings.Join([]string{
		"package demo;",
		"",
		"public class Greeter {",
		"    public String greet(String name)",
		"    {",
		"        return \"hi \" + name;",
		"    }",
		"}",
	}, "\n")
	recs := NewJavaExtractor().Extract(src)
	if len(recs) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(recs))
	}
	r := recs[0]
	if r.MemberName != "greet" {
		t.Errorf("MemberName=%q", r.MemberName)
	}
	if typeName(t, r.TypeName) != "Greeter" {
		t.Errorf("TypeName=%s", typeName(t, r.TypeName))
	}
	if r.StartLine != 4 || r.EndLine != 7 {
		t.Errorf("lines %d-%d, want 4-7", r.StartLine, r.EndLine)
	}
	if got := len(strings.Split(r.Content, "\n")); got != r.EndLine-r.StartLine+1 {
		t.Errorf("content has %d lines, span is %d", got, r.EndLine-r.StartLine+1)
	}
	if r.Degraded {
		t.Error("balanced method should not be degraded")
	}
}

func TestJavaExtractor_SpanMatchesBodyLines(t *testing.T) {
	tests := []struct {
		name  string
		body  []string
		lines int
	}{
		{"one liner", []string{"public int one() { return 1; }"}, 1},
		{"brace on signature line", []string{"public void a() {", "  x();", "}"}, 3},
		{"brace on own line", []string{"private void b()", "{", "  y();", "}"}, 4},
		{"nested blocks", []string{"protected int c() {", "  if (z) {", "    return 1;", "  }", "  return 0;", "}"}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "class T {\n" + strings.Join(tt.body, "\n") + "\n}"
			recs := NewJavaExtractor().Extract(src)
			if len(recs) != 1 {
				t.Fatalf("expected 1 chunk, got %d", len(recs))
			}
			if got := recs[0].LineCount(); got != tt.lines {
				t.Errorf("LineCount()=%d, want %d", got, tt.lines)
			}
			if recs[0].Content != strings.Join(tt.body, "\n") {
				t.Errorf("Content=%q", recs[0].Content)
			}
		})
	}
}

func TestJavaExtractor_TypeAttribution(t *testing.T) {
	src := strings.Join([]string{
		"public void orphan() {", // 1: no type yet
		"}",
		"class First {}",
		"class Second {",
		"    public void run() {", // 5
		"    }",
		"}",
	}, "\n")
	recs := NewJavaExtractor().Extract(src)
	if len(recs) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(recs))
	}
	if recs[0].TypeName != nil {
		t.Errorf("first chunk should have nil type, got %s", *recs[0].TypeName)
	}
	if typeName(t, recs[1].TypeName) != "Second" {
		t.Errorf("second chunk type=%s, want Second", typeName(t, recs[1].TypeName))
	}
}

func TestJavaExtractor_TypeAndSignatureOnSameLine(t *testing.T) {
	recs := NewJavaExtractor().Extract("class Inline { public int v() { return 1; } }")
	if len(recs) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(recs))
	}
	if typeName(t, recs[0].TypeName) != "Inline" {
		t.Errorf("TypeName=%s", typeName(t, recs[0].TypeName))
	}
}

func TestJavaExtractor_TwoTypesThreeMethodsDegradedTail(t *testing.T) {
	src := strings.Join([]string{
		"class Alpha {",                  // 1
		"    public void first() {",      // 2
		"        work();",                // 3
		"    }",                          // 4
		"}",                              // 5
		"class Beta {",                   // 6
		"    private int second(int x) {", // 7
		"        return x;",              // 8
		"    }",                          // 9
		"    public String third() {",    // 10
		"        if (ready) {",           // 11
		"            return \"x\";",      // 12
	}, "\n")
	recs := NewJavaExtractor().Extract(src)
	if len(recs) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(recs))
	}
	want := []struct {
		member string
		typ    string
		start  int
		end    int
	}{
		{"first", "Alpha", 2, 4},
		{"second", "Beta", 7, 9},
		{"third", "Beta", 10, 12},
	}
	for i, w := range want {
		r := recs[i]
		if r.MemberName != w.member || typeName(t, r.TypeName) != w.typ || r.StartLine != w.start || r.EndLine != w.end {
			t.Errorf("chunk %d = {%s %s %d-%d}, want {%s %s %d-%d}",
				i, r.MemberName, typeName(t, r.TypeName), r.StartLine, r.EndLine, w.member, w.typ, w.start, w.end)
		}
	}
	last := recs[2]
	if !last.Degraded {
		t.Error("unterminated chunk should be degraded")
	}
	if got := len(strings.Split(last.Content, "\n")); got != 3 {
		t.Errorf("degraded content lines=%d, want 3", got)
	}
	if recs[0].Degraded || recs[1].Degraded {
		t.Error("balanced chunks should not be degraded")
	}
}

func TestJavaExtractor_OverlappingCaptures(t *testing.T) {
	src := strings.Join([]string{
		"class Outer {",
		"    public Runnable make() {", // 2
		"        return new Runnable() {",
		"            public void run() {", // 4
		"                go();",
		"            }", // 6
		"        };",
		"    }", // 8
		"}",
	}, "\n")
	recs := NewJavaExtractor().Extract(src)
	if len(recs) != 2 {
		t.Fatalf("expected 2 overlapping chunks, got %d", len(recs))
	}
	if recs[0].MemberName != "make" || recs[0].StartLine != 2 || recs[0].EndLine != 8 {
		t.Errorf("outer chunk = %s %d-%d", recs[0].MemberName, recs[0].StartLine, recs[0].EndLine)
	}
	if recs[1].MemberName != "run" || recs[1].StartLine != 4 || recs[1].EndLine != 6 {
		t.Errorf("inner chunk = %s %d-%d", recs[1].MemberName, recs[1].StartLine, recs[1].EndLine)
	}
}

func TestJavaExtractor_SignaturePatterns(t *testing.T) {
	tests := []struct {
		line   string
		member string // empty means no match
	}{
		{"public List<String> names() {}", "names"},
		{"private int[] values() {}", "values"},
		{"protected Set<Integer> counts () {}", "counts"},
		{"public void run(){}", "run"},
		{"void packagePrivate() {}", ""},
		{"public Greeter(String name) {}", ""},
		{"public static void main(String[] args) {}", ""},
		{"public void split(", "split"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			recs := NewJavaExtractor().Extract(tt.line)
			if tt.member == "" {
				if len(recs) != 0 {
					t.Errorf("expected no chunk, got %q", recs[0].MemberName)
				}
				return
			}
			if len(recs) != 1 || recs[0].MemberName != tt.member {
				t.Errorf("got %+v, want member %q", recs, tt.member)
			}
		})
	}
}

func TestJavaExtractor_MultiLineSignatureNotDetected(t *testing.T) {
	src := "class M {\n    public void\n    spread(int a) {\n    }\n}"
	if recs := NewJavaExtractor().Extract(src); len(recs) != 0 {
		t.Errorf("multi-line signature should not be detected, got %d chunks", len(recs))
	}
}

func TestJavaExtractor_Idempotent(t *testing.T) {
	src := "class A {\n public void x() {\n }\n public int y() {\n"
	e := NewJavaExtractor()
	first := e.Extract(src)
	second := e.Extract(src)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Extract is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestJavaExtractor_EmptyAndGarbage(t *testing.T) {
	e := NewJavaExtractor()
	if recs := e.Extract(""); len(recs) != 0 {
		t.Errorf("empty input: got %d chunks", len(recs))
	}
	if recs := e.Extract("}}}} {{{ \x00 public"); len(recs) != 0 {
		t.Errorf("garbage input: got %d chunks", len(recs))
	}
	// Closing brace drives depth negative before zero is reached again.
	recs := e.Extract("public void odd() }\n{\n}")
	if len(recs) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(recs))
	}
	if recs[0].EndLine < recs[0].StartLine {
		t.Errorf("EndLine %d < StartLine %d", recs[0].EndLine, recs[0].StartLine)
	}
}

func TestExtractorInterface(t *testing.T) {
	var _ Extractor = NewJavaExtractor()
}

func BenchmarkJavaExtractor_Extract(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("package bench;\n\npublic class Big {\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&sb, "    public int method%d(int x) {\n        if (x > %d) {\n            return x;\n        }\n        return %d;\n    }\n\n", i, i, i)
	}
	sb.WriteString("}\n")
	src := sb.String()
	e := NewJavaExtractor()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Extract(src)
	}
}
