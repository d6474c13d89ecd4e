package models

// SearchResult is a single ranked chunk hit.
type SearchResult struct {
	Chunk         *CodeChunk `json:"chunk"`
	Score         float64    `json:"score"`
	KeywordScore  float64    `json:"keyword_score"`
	SemanticScore float64    `json:"semantic_score"`
	Snippet       string     `json:"snippet,omitempty"`
	Rank          int        `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results      []*SearchResult `json:"results"`
	Total        int             `json:"total"`
	QueryTime    int64           `json:"query_time_ms"`
	Query        string          `json:"query"`
	RepositoryID int64           `json:"repo_id"`
}
