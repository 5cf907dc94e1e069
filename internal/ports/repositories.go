package ports

import (
	"context"

	"keyslookup/internal/reference"
)

// ReferenceSource reads the model reference tables. Implementations return
// the raw rows; validation happens when they are indexed.
type ReferenceSource interface {
	Load(ctx context.Context) (reference.Set, error)
}
