// Package feature engineers numeric feature vectors from raw alerts with a
// strict fit/transform split: statistics and encodings are learned once from
// a labelled batch, frozen into a State, and applied unchanged afterwards.
package feature

import "errors"

// ErrNotFitted is returned when Transform is called before Fit or before a
// saved State has been loaded.
var ErrNotFitted = errors.New("feature extractor not fitted")

// Schema is the fixed, ordered set of feature columns established at fit time.
type Schema struct {
	Columns []string `json:"columns"`

	index map[string]int
}

// NewSchema builds a schema from an ordered column list.
func NewSchema(columns []string) *Schema {
	s := &Schema{Columns: columns}
	s.buildIndex()
	return s
}

func (s *Schema) buildIndex() {
	s.index = make(map[string]int, len(s.Columns))
	for i, c := range s.Columns {
		s.index[c] = i
	}
}

// Index returns the position of a column in the schema.
func (s *Schema) Index(name string) (int, bool) {
	if s.index == nil {
		s.buildIndex()
	}
	i, ok := s.index[name]
	return i, ok
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.Columns) }

// Vector is one alert's engineered features, ordered per its schema.
type Vector struct {
	Schema *Schema
	Values []float64
}

// Get returns the value of a named feature.
func (v Vector) Get(name string) (float64, bool) {
	i, ok := v.Schema.Index(name)
	if !ok {
		return 0, false
	}
	return v.Values[i], true
}
