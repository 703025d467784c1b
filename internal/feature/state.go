package feature

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// MeanStd holds z-score standardization statistics for one column.
type MeanStd struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Bounds holds min-max scaling bounds for one column.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// State is the full set of fitted transform parameters. It is immutable once
// built; Extractor only ever reads it. Persisted as a single JSON blob.
type State struct {
	Schema      *Schema            `json:"schema"`
	Standard    map[string]MeanStd `json:"standard"`
	MinMax      map[string]Bounds  `json:"minmax"`
	CountryEnc  map[string]float64 `json:"country_encoding"`
	ProtocolVoc []string           `json:"protocol_vocabulary"`
	HumanNames  map[string]string  `json:"human_names"`
}

// HumanName returns the analyst-facing label for a technical feature name,
// falling back to a title-cased rendering of the technical name.
func (s *State) HumanName(technical string) string {
	if s != nil {
		if name, ok := s.HumanNames[technical]; ok {
			return name
		}
	}
	return TitleCase(technical)
}

// TitleCase renders a snake_case technical name as "Title Case" words.
func TitleCase(technical string) string {
	words := strings.Split(technical, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Save writes the state to path as JSON.
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transform state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write transform state: %w", err)
	}
	return nil
}

// LoadState reads a previously saved state from path.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transform state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode transform state: %w", err)
	}
	if s.Schema == nil || s.Schema.Len() == 0 {
		return nil, fmt.Errorf("transform state has empty schema")
	}
	s.Schema.buildIndex()
	return &s, nil
}
