// Package query builds and executes typed, declarative query pipelines over
// document collections. A pipeline is a closed set of stage variants (match,
// sort, relational join, projection) validated before execution, and always
// applied in that order: joins must see the already-filtered and sorted
// candidate set so no work is spent on rows that will be dropped.
package query

// MatchOp is the comparison applied by a match condition.
type MatchOp int

const (
	// OpEquals matches on exact equality.
	OpEquals MatchOp = iota
	// OpContains matches substrings of string fields.
	OpContains
)

// Condition is a single field predicate inside a match stage.
type Condition struct {
	Field    string
	Op       MatchOp
	Value    any
	FoldCase bool
}

// Match filters documents. With MatchAny set, a document passes when any
// condition holds; otherwise all conditions must hold.
type Match struct {
	Conditions []Condition
	MatchAny   bool
}

// Sort orders documents by one field. Direction defaults to ascending;
// descending only when explicitly requested.
type Sort struct {
	Field      string
	Descending bool
}

// Join attaches related documents from another collection by a foreign-key
// equality. The optional nested pipeline filters, sorts, and projects the
// joined documents; one level of nested join is supported. With First set the
// single best match is attached instead of a slice; with Count set only the
// number of matches is attached.
type Join struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
	First        bool
	Count        bool
	Pipeline     *Pipeline
}

// Project restricts documents to an allow-list of fields.
type Project struct {
	Fields []string
}

// Pipeline is an ordered sequence of stages. The canonical order, matches
// then sort then joins then projection, is enforced structurally: stages are
// held in separate slots and executed in that order regardless of build
// order.
type Pipeline struct {
	matches    []Match
	sort       *Sort
	joins      []Join
	projection *Project
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Match appends a match stage.
func (p *Pipeline) Match(m Match) *Pipeline {
	p.matches = append(p.matches, m)
	return p
}

// MatchField appends an exact-equality match on a single field.
func (p *Pipeline) MatchField(field string, value any) *Pipeline {
	return p.Match(Match{Conditions: []Condition{{Field: field, Op: OpEquals, Value: value}}})
}

// SortBy sets the sort stage, replacing any prior one.
func (p *Pipeline) SortBy(field string, descending bool) *Pipeline {
	p.sort = &Sort{Field: field, Descending: descending}
	return p
}

// Join appends a join stage.
func (p *Pipeline) Join(j Join) *Pipeline {
	p.joins = append(p.joins, j)
	return p
}

// Project sets the projection stage, replacing any prior one.
func (p *Pipeline) Project(fields ...string) *Pipeline {
	p.projection = &Project{Fields: fields}
	return p
}

// SortField reports the sort stage when present.
func (p *Pipeline) SortField() (Sort, bool) {
	if p.sort == nil {
		return Sort{}, false
	}
	return *p.sort, true
}
