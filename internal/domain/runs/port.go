package runs

import "context"

// Repository port for persisting and querying runs
type Repository interface {
	Save(ctx context.Context, r *Run) error
	Latest(ctx context.Context, limit int) ([]*Run, error)
}
