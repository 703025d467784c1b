package analysis

import "context"

// Store is the persistence interface for completed analyses.
type Store interface {
	Get(ctx context.Context, id string) (*Complete, bool, error)
	GetByAlertID(ctx context.Context, alertID string) (*Complete, bool, error)
	Put(ctx context.Context, result *Complete) error
}
