package main

import (
	"bytes"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keyslookup/internal/adapters/output"
	"keyslookup/internal/domain"
	"keyslookup/internal/lookup"
)

func batches(err error, bs ...lookup.Batch) iter.Seq2[lookup.Batch, error] {
	return func(yield func(lookup.Batch, error) bool) {
		for _, b := range bs {
			if !yield(b, nil) {
				return
			}
		}
		if err != nil {
			yield(lookup.Batch{}, err)
		}
	}
}

var deBatch = lookup.Batch{
	Country: domain.Country{ISO: 276, Code: "DE"},
	Results: []domain.Result{
		{Status: domain.StatusSuccess, PerilID: "QEQ", AreaPerilID: 101, Coverage: 1, ID: 1, VulnerabilityID: 11, LocID: 1, CoverageType: 1},
	},
}

func TestWriteBatches(t *testing.T) {
	var buf bytes.Buffer
	rows, err := writeBatches(batches(nil, deBatch, deBatch), output.NewCSV(&buf), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 3)
}

func TestWriteBatchesKeepsRowsOnFailure(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("no usable location field")
	rows, err := writeBatches(batches(boom, deBatch), output.NewCSV(&buf), zap.NewNop())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rows)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(domain.ResultColumns, ","), lines[0])
	assert.Equal(t, "1,QEQ,101,1,,1,11,1,1", lines[1])
}
