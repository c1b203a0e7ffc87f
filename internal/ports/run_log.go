package ports

import (
	"context"

	"github.com/bft-labs/reportship/internal/domain"
)

// RunLog is the append-only record of finished runs.
type RunLog interface {
	// Append persists one finalized record. Records are never rewritten.
	Append(ctx context.Context, record domain.RunRecord) error

	// Recent returns up to n of the most recent records, oldest first.
	Recent(ctx context.Context, n int) ([]domain.RunRecord, error)
}
