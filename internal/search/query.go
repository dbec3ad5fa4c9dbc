package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Query selects books.
type Query struct {
	Text    string
	Genre   string // matched by slug
	MinYear int
	MaxYear int
	Limit   int
	Offset  int
}

// Result is one page of matches.
type Result struct {
	Total uint64 `json:"total"`
	Hits  []Hit  `json:"hits"`
}

// Hit is one matching book.
type Hit struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title"`
	Author string  `json:"author,omitempty"`
	Genre  string  `json:"genre,omitempty"`
	Year   int     `json:"year,omitempty"`
}

// Search runs q. Without text it lists books matching the filters.
func (i *Index) Search(ctx context.Context, q Query) (*Result, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), q.Limit, q.Offset, false)
	req.Fields = []string{"title", "author", "genre", "year"}
	if strings.TrimSpace(q.Text) == "" {
		req.SortBy([]string{"title", "_id"})
	}

	i.mu.RLock()
	res, err := i.index.SearchInContext(ctx, req)
	i.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{Total: res.Total, Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if v, ok := h.Fields["title"].(string); ok {
			hit.Title = v
		}
		if v, ok := h.Fields["author"].(string); ok {
			hit.Author = v
		}
		if v, ok := h.Fields["genre"].(string); ok {
			hit.Genre = v
		}
		if v, ok := h.Fields["year"].(float64); ok {
			hit.Year = int(v)
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func buildQuery(q Query) query.Query {
	var must []query.Query

	if text := strings.TrimSpace(q.Text); text != "" {
		title := bleve.NewMatchQuery(text)
		title.SetField("title")
		title.SetBoost(3)

		author := bleve.NewMatchQuery(text)
		author.SetField("author")
		author.SetBoost(2)

		desc := bleve.NewMatchQuery(text)
		desc.SetField("description")

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(text))
		fuzzy.SetField("title")
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(0.5)

		must = append(must, bleve.NewDisjunctionQuery(title, author, desc, fuzzy))
	}

	if q.Genre != "" {
		tq := bleve.NewTermQuery(Slugify(q.Genre))
		tq.SetField("genre_slug")
		must = append(must, tq)
	}

	if q.MinYear > 0 || q.MaxYear > 0 {
		lo, hi := float64(q.MinYear), float64(q.MaxYear)
		if q.MaxYear == 0 {
			hi = 1e9
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		rq.SetField("year")
		must = append(must, rq)
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}
