package ports

import "github.com/bft-labs/reportship/internal/domain"

// ChartBackend draws prepared chart data into an image payload.
// Implementations must be deterministic for identical input.
type ChartBackend interface {
	// Draw renders chart and returns the encoded image with its MIME type.
	Draw(chart domain.Chart) (data []byte, mime string, err error)
}
