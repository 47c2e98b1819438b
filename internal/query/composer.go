package query

import (
	"fmt"
	"strings"

	"clipstream/internal/apperr"
)

// Filter is one caller-supplied equality filter. Filters are a slice, not a
// map, so match stages are built in the order the caller supplied them.
type Filter struct {
	Param string
	Value string
}

// Params carries the caller-facing listing parameters a Composer turns into
// a pipeline.
type Params struct {
	Search    string
	Filters   []Filter
	SortBy    string
	SortOrder string
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithTextFields names the document fields searched by free-text queries.
func WithTextFields(fields ...string) ComposerOption {
	return func(c *Composer) {
		c.textFields = append(c.textFields, fields...)
	}
}

// WithFilterField maps a caller parameter name to the document field it
// filters on.
func WithFilterField(param, field string) ComposerOption {
	return func(c *Composer) {
		c.filterFields[param] = field
	}
}

// WithSortFields declares the allow-list of sortable document fields.
func WithSortFields(fields ...string) ComposerOption {
	return func(c *Composer) {
		for _, field := range fields {
			c.sortFields[field] = true
		}
	}
}

// WithDefaultSort sets the sort applied when the caller requests none.
func WithDefaultSort(field string, descending bool) ComposerOption {
	return func(c *Composer) {
		c.defaultSort = &Sort{Field: field, Descending: descending}
	}
}

// Composer validates caller parameters against per-collection allow-lists
// and builds the corresponding pipeline. Unknown sort or filter fields are
// rejected before the store is touched.
type Composer struct {
	textFields   []string
	filterFields map[string]string
	sortFields   map[string]bool
	defaultSort  *Sort
}

// NewComposer constructs a Composer from the provided options.
func NewComposer(opts ...ComposerOption) *Composer {
	composer := &Composer{
		filterFields: make(map[string]string),
		sortFields:   make(map[string]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(composer)
		}
	}
	return composer
}

// Compose builds a pipeline: one equality match per supplied filter (in
// order), a case-insensitive free-text match when a search term is present,
// then the validated sort.
func (c *Composer) Compose(params Params) (*Pipeline, error) {
	const op = "query.Composer.Compose"
	pipeline := NewPipeline()

	for _, filter := range params.Filters {
		field, ok := c.filterFields[filter.Param]
		if !ok {
			return nil, apperr.Validation(op, fmt.Sprintf("unknown filter %q", filter.Param))
		}
		value := strings.TrimSpace(filter.Value)
		if value == "" {
			return nil, apperr.Validation(op, fmt.Sprintf("filter %q requires a value", filter.Param))
		}
		pipeline.MatchField(field, value)
	}

	if search := strings.TrimSpace(params.Search); search != "" {
		if len(c.textFields) == 0 {
			return nil, apperr.Validation(op, "free-text search is not supported here")
		}
		conditions := make([]Condition, 0, len(c.textFields))
		for _, field := range c.textFields {
			conditions = append(conditions, Condition{
				Field:    field,
				Op:       OpContains,
				Value:    search,
				FoldCase: true,
			})
		}
		pipeline.Match(Match{Conditions: conditions, MatchAny: true})
	}

	sort, err := c.resolveSort(params)
	if err != nil {
		return nil, err
	}
	if sort != nil {
		pipeline.SortBy(sort.Field, sort.Descending)
	}
	return pipeline, nil
}

func (c *Composer) resolveSort(params Params) (*Sort, error) {
	const op = "query.Composer.Compose"
	descending, err := parseSortOrder(params.SortOrder)
	if err != nil {
		return nil, err
	}
	field := strings.TrimSpace(params.SortBy)
	if field == "" {
		if c.defaultSort != nil {
			sort := *c.defaultSort
			if params.SortOrder != "" {
				sort.Descending = descending
			}
			return &sort, nil
		}
		return nil, nil
	}
	if !c.sortFields[field] {
		return nil, apperr.Validation(op, fmt.Sprintf("unknown sort field %q", field))
	}
	return &Sort{Field: field, Descending: descending}, nil
}

func parseSortOrder(order string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", "asc", "ascending":
		return false, nil
	case "desc", "descending":
		return true, nil
	default:
		return false, apperr.Validation("query.Composer.Compose", fmt.Sprintf("invalid sort order %q", order))
	}
}
