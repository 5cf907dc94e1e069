package ports

import (
	"context"
	"iter"

	"keyslookup/internal/domain"
	"keyslookup/internal/lookup"
)

// Keys serves keys lookups against the loaded model.
type Keys interface {
	Lookup(ctx context.Context, table domain.Table, opts ...lookup.RunOption) iter.Seq2[lookup.Batch, error]
	Countries() []domain.Country
	Reload(ctx context.Context) error
}
