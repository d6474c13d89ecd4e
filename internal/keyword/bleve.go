package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/codelens/internal/models"
	"github.com/hyperjump/codelens/pkg/utils"
)

// deletePageSize is how many documents DeleteRepository removes per batch.
const deletePageSize = 1000

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so identifiers match as written.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("identifiers", textFieldMapping)
	docMapping.AddFieldMappingsAt("member_name", textFieldMapping)
	docMapping.AddFieldMappingsAt("type_name", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("repo_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("file_path", keywordFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func repoKey(repoID int64) string {
	return strconv.FormatInt(repoID, 10)
}

// chunkDocument is the indexed form of a chunk. "identifiers" holds camelCase and
// snake_case pieces so a query for "config" finds parseConfig.
func chunkDocument(c *models.CodeChunk) map[string]interface{} {
	typeName := ""
	if c.TypeName != nil {
		typeName = *c.TypeName
	}
	pieces := utils.SplitIdentifiers(typeName + " " + c.MemberName + " " + c.Content)
	return map[string]interface{}{
		"repo_id":     repoKey(c.RepositoryID),
		"file_path":   c.FilePath,
		"member_name": strings.Join(utils.SplitIdentifiers(c.MemberName), " ") + " " + c.MemberName,
		"type_name":   typeName,
		"content":     c.Content,
		"identifiers": strings.Join(pieces, " "),
	}
}

// Index indexes a single chunk by its ID.
func (b *BleveIndex) Index(ctx context.Context, chunk *models.CodeChunk) error {
	return b.index.Index(docID(chunk.ID), chunkDocument(chunk))
}

// IndexBatch indexes several chunks in one Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, chunks []*models.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(docID(c.ID), chunkDocument(c)); err != nil {
			return fmt.Errorf("failed to add chunk %d to batch: %w", c.ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}
	return nil
}

func repoFilter(repoID int64) blevequery.Query {
	q := bleve.NewTermQuery(repoKey(repoID))
	q.SetField("repo_id")
	return q
}

// Search returns up to limit chunks of repoID matching query.
func (b *BleveIndex) Search(ctx context.Context, query string, repoID int64, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	memberBoost := 2.0
	fuzzyEnabled := false
	fuzziness := 1
	if opts != nil {
		if opts.MemberBoost > 0 {
			memberBoost = opts.MemberBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	if limit <= 0 {
		return []*KeywordResult{}, nil
	}

	pieces := utils.SplitIdentifiers(query)
	if len(pieces) == 0 {
		return []*KeywordResult{}, nil
	}
	text := b.textQuery(query, pieces, memberBoost, fuzzyEnabled, fuzziness)
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(repoFilter(repoID), text))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &KeywordResult{ID: id, Score: hit.Score})
	}
	return out, nil
}

// textQuery matches the raw query against content and names, and its identifier
// pieces against the identifiers field; any clause may match.
func (b *BleveIndex) textQuery(query string, pieces []string, memberBoost float64, fuzzyEnabled bool, fuzziness int) blevequery.Query {
	content := bleve.NewMatchQuery(query)
	content.SetField("content")

	member := bleve.NewMatchQuery(strings.Join(pieces, " "))
	member.SetField("member_name")
	member.SetBoost(memberBoost)

	typeName := bleve.NewMatchQuery(query)
	typeName.SetField("type_name")

	clauses := []blevequery.Query{content, member, typeName}
	if fuzzyEnabled {
		for _, p := range pieces {
			fq := bleve.NewFuzzyQuery(p)
			fq.SetFuzziness(fuzziness)
			fq.SetField("identifiers")
			clauses = append(clauses, fq)
		}
	} else {
		ids := bleve.NewMatchQuery(strings.Join(pieces, " "))
		ids.SetField("identifiers")
		clauses = append(clauses, ids)
	}
	return bleve.NewDisjunctionQuery(clauses...)
}

// DeleteRepository removes every document of a repository, a page at a time.
func (b *BleveIndex) DeleteRepository(ctx context.Context, repoID int64) error {
	for {
		req := bleve.NewSearchRequest(repoFilter(repoID))
		req.Size = deletePageSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to list repository %d documents: %w", repoID, err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete repository %d documents: %w", repoID, err)
		}
	}
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
