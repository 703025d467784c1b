package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// JSONSource reads alerts from a JSON file holding an array of records.
// Like CSVSource, every Snapshot re-reads the file.
type JSONSource struct {
	path string
}

// NewJSONSource creates a source backed by the given JSON file.
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

// Snapshot reads the full alert file and returns records in file order.
func (s *JSONSource) Snapshot(ctx context.Context) ([]Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open alert source: %w", err)
	}

	var alerts []Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		return nil, fmt.Errorf("decode alert source: %w", err)
	}

	for i := range alerts {
		if alerts[i].ID == "" {
			return nil, fmt.Errorf("record %d: missing alert_id", i)
		}
	}
	return alerts, nil
}

// Get resolves a single alert by identifier.
func (s *JSONSource) Get(ctx context.Context, id string) (*Alert, bool, error) {
	alerts, err := s.Snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range alerts {
		if alerts[i].ID == id {
			return &alerts[i], true, nil
		}
	}
	return nil, false, nil
}
