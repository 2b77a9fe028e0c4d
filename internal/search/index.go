package search

import (
	"fmt"
	"time"

	"github.com/blevesearch/bleve"
)

// ReportDoc is the indexed form of one generated report.
type ReportDoc struct {
	Query     string    `json:"query"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit is one search result.
type Hit struct {
	ID    string
	Query string
	Type  string
	Score float64
}

// Index is a full-text index over generated reports.
type Index struct {
	idx bleve.Index
}

// Open opens the index at path, creating it on first use.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func (i *Index) Close() error {
	return i.idx.Close()
}

// IndexReport adds or replaces one report document. The id is typically the
// report filename.
func (i *Index) IndexReport(id string, doc ReportDoc) error {
	if err := i.idx.Index(id, doc); err != nil {
		return fmt.Errorf("indexing report %s: %w", id, err)
	}
	return nil
}

// Search runs a query-string search over the indexed reports.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"query", "type"}

	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching reports: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["query"].(string); ok {
			hit.Query = v
		}
		if v, ok := h.Fields["type"].(string); ok {
			hit.Type = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
