// Package query turns a descriptor into an engine-neutral query tree.
package query

import (
	"fmt"

	"github.com/hyperjump/elastipass/internal/models"
)

// Clause is a single field-level match.
type Clause struct {
	Kind  models.Kind
	Field string
	Value string
	Boost float64
}

// Query is either a raw structured mapping forwarded verbatim, or a disjunction of clauses.
type Query struct {
	Raw    map[string]any
	Should []Clause
	Offset int
	Limit  int
}

// IsRaw reports whether the query is forwarded to the engine untouched.
func (q *Query) IsRaw() bool {
	return q.Raw != nil
}

type clauseFunc func(field, value string) []Clause

func single(kind models.Kind) clauseFunc {
	return func(field, value string) []Clause {
		return []Clause{{Kind: kind, Field: field, Value: value}}
	}
}

// The composite query ignores the requested field.
func composite(_, value string) []Clause {
	return []Clause{
		{Kind: models.KindTerm, Field: "email.raw", Value: value, Boost: 3},
		{Kind: models.KindTerm, Field: "username.raw", Value: value, Boost: 2},
		{Kind: models.KindMatch, Field: "username", Value: value},
	}
}

var constructors = map[models.Kind]clauseFunc{
	models.KindTerm:     single(models.KindTerm),
	models.KindMatch:    single(models.KindMatch),
	models.KindFuzzy:    single(models.KindFuzzy),
	models.KindRegexp:   single(models.KindRegexp),
	models.KindWildcard: single(models.KindWildcard),
	models.KindDefault:  composite,
}

// Build converts a non-empty descriptor into a query. An unknown kind wraps
// models.ErrInvalidParameter.
func Build(d *models.Descriptor) (*Query, error) {
	q := &Query{Offset: d.Offset, Limit: d.Limit}
	if d.IsRaw() {
		q.Raw = d.Raw
		return q, nil
	}
	build, ok := constructors[d.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", models.ErrInvalidParameter, d.Kind)
	}
	q.Should = build(d.Field, d.Text)
	return q, nil
}

// Kinds lists the supported query kinds.
func Kinds() []models.Kind {
	return []models.Kind{
		models.KindTerm, models.KindMatch, models.KindFuzzy,
		models.KindRegexp, models.KindWildcard, models.KindDefault,
	}
}
