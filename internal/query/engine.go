package query

import (
	"context"
	"fmt"
	"sort"

	"clipstream/internal/apperr"
)

// Source supplies one consistent snapshot of a named collection per call.
type Source interface {
	Collection(ctx context.Context, name string) ([]Document, error)
}

const (
	// DefaultPage is used when the caller requests no page.
	DefaultPage = 1
	// DefaultLimit is used when the caller requests no page size.
	DefaultLimit = 10
	// MaxLimit caps the page size a caller may request.
	MaxLimit = 100

	maxJoinDepth = 2
)

// Page is one stable page of pipeline results plus continuation metadata.
// Total counts every matching document before pagination.
type Page struct {
	Items      []Document `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// Clamp coerces page and limit into valid bounds. Out-of-range input is a
// convenience problem, not a security boundary, so it clamps rather than
// fails.
func Clamp(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// Engine executes composed pipelines against a document source.
type Engine struct {
	source Source
}

// NewEngine constructs an Engine over the provided source.
func NewEngine(source Source) *Engine {
	return &Engine{source: source}
}

// Paginate runs the pipeline and returns the requested page. Count and items
// come from the same collection snapshot, so the total always agrees with
// the page boundaries. Joins and projection run only on the returned page.
func (e *Engine) Paginate(ctx context.Context, collection string, pipeline *Pipeline, page, limit int) (Page, error) {
	page, limit = Clamp(page, limit)
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	docs, err := e.source.Collection(ctx, collection)
	if err != nil {
		return Page{}, err
	}
	docs = applyMatches(docs, pipeline.matches)
	sortDocuments(docs, pipeline.sort)

	total := len(docs)
	totalPages := (total + limit - 1) / limit
	offset := (page - 1) * limit
	var items []Document
	switch {
	case offset >= total:
		items = []Document{}
	case offset+limit > total:
		items = docs[offset:]
	default:
		items = docs[offset : offset+limit]
	}

	if err := e.applyJoins(ctx, items, pipeline.joins, 1); err != nil {
		return Page{}, err
	}
	items = applyProjection(items, pipeline.projection)

	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// All runs the pipeline without pagination. Intended for bounded internal
// queries such as dashboard aggregation.
func (e *Engine) All(ctx context.Context, collection string, pipeline *Pipeline) ([]Document, error) {
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	docs, err := e.source.Collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	docs = applyMatches(docs, pipeline.matches)
	sortDocuments(docs, pipeline.sort)
	if err := e.applyJoins(ctx, docs, pipeline.joins, 1); err != nil {
		return nil, err
	}
	return applyProjection(docs, pipeline.projection), nil
}

func applyMatches(docs []Document, matches []Match) []Document {
	if len(matches) == 0 {
		return docs
	}
	filtered := make([]Document, 0, len(docs))
	for _, doc := range docs {
		keep := true
		for _, match := range matches {
			if !match.matches(doc) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, doc)
		}
	}
	return filtered
}

// sortDocuments orders by the sort field with the document id as tie-break,
// so a fixed pipeline always resolves one stable order. Without a sort stage
// the id alone orders the set.
func sortDocuments(docs []Document, by *Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		if by != nil {
			cmp := compareValues(docs[i][by.Field], docs[j][by.Field])
			if cmp != 0 {
				if by.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return compareValues(docs[i]["id"], docs[j]["id"]) < 0
	})
}

func (e *Engine) applyJoins(ctx context.Context, docs []Document, joins []Join, depth int) error {
	if len(joins) == 0 || len(docs) == 0 {
		return nil
	}
	if depth > maxJoinDepth {
		return apperr.Validation("query.Engine", "join nesting exceeds one level")
	}
	for _, join := range joins {
		if err := e.applyJoin(ctx, docs, join, depth); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyJoin(ctx context.Context, docs []Document, join Join, depth int) error {
	if join.As == "" {
		return apperr.Validation("query.Engine", fmt.Sprintf("join from %q requires an output field", join.From))
	}
	foreign, err := e.source.Collection(ctx, join.From)
	if err != nil {
		return err
	}
	var nested *Pipeline
	if join.Pipeline != nil {
		nested = join.Pipeline
		foreign = applyMatches(foreign, nested.matches)
		sortDocuments(foreign, nested.sort)
	} else {
		sortDocuments(foreign, nil)
	}

	index := make(map[any][]Document, len(foreign))
	for _, doc := range foreign {
		key, ok := doc[join.ForeignField]
		if !ok {
			continue
		}
		index[key] = append(index[key], doc)
	}

	joined := make([]Document, 0, len(docs)*2)
	for _, doc := range docs {
		matched := index[doc[join.LocalField]]
		switch {
		case join.Count:
			doc[join.As] = len(matched)
		case join.First:
			if len(matched) > 0 {
				doc[join.As] = matched[0]
				joined = append(joined, matched[0])
			} else {
				doc[join.As] = nil
			}
		default:
			if matched == nil {
				matched = []Document{}
			}
			doc[join.As] = matched
			joined = append(joined, matched...)
		}
	}

	if nested != nil && !join.Count {
		if err := e.applyJoins(ctx, joined, nested.joins, depth+1); err != nil {
			return err
		}
		if nested.projection != nil {
			projectInPlace(docs, join.As, nested.projection)
		}
	}
	return nil
}

func projectInPlace(docs []Document, field string, projection *Project) {
	for _, doc := range docs {
		switch attached := doc[field].(type) {
		case Document:
			doc[field] = projectDocument(attached, projection)
		case []Document:
			projected := make([]Document, len(attached))
			for i, inner := range attached {
				projected[i] = projectDocument(inner, projection)
			}
			doc[field] = projected
		}
	}
}

func applyProjection(docs []Document, projection *Project) []Document {
	if projection == nil {
		return docs
	}
	projected := make([]Document, len(docs))
	for i, doc := range docs {
		projected[i] = projectDocument(doc, projection)
	}
	return projected
}

func projectDocument(doc Document, projection *Project) Document {
	out := make(Document, len(projection.Fields))
	for _, field := range projection.Fields {
		if value, ok := doc[field]; ok {
			out[field] = value
		}
	}
	return out
}
