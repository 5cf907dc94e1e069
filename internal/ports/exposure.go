package ports

import (
	"io"

	"keyslookup/internal/domain"
)

// ExposureReader decodes an exposure file into a raw table.
type ExposureReader interface {
	Read(r io.Reader) (domain.Table, error)
}

// ResultWriter streams keys results. Flush must be called after the last
// batch.
type ResultWriter interface {
	Write(results []domain.Result) error
	Flush() error
}
