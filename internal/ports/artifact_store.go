package ports

import (
	"context"

	"github.com/bft-labs/reportship/internal/domain"
)

// ArtifactStore persists artifacts so they stay available even when delivery fails.
type ArtifactStore interface {
	// Save writes every artifact and returns the locations written.
	Save(ctx context.Context, artifacts []domain.Artifact) ([]string, error)
}
