// Package output writes keys results as CSV or newline-delimited JSON.
package output

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"keyslookup/internal/domain"
	"keyslookup/internal/ports"
)

const (
	FormatCSV    = "csv"
	FormatNDJSON = "ndjson"
)

var ErrUnknownFormat = eris.New("output: unknown format")

// New returns a writer for format over w.
func New(format string, w io.Writer) (ports.ResultWriter, error) {
	switch format {
	case FormatCSV:
		return NewCSV(w), nil
	case FormatNDJSON:
		return NewNDJSON(w), nil
	}
	return nil, eris.Wrapf(ErrUnknownFormat, "%q", format)
}

// ContentType returns the media type for a format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/x-ndjson"
}

// CSV writes the header before the first row, even when no rows follow.
type CSV struct {
	w      *csv.Writer
	header bool
}

func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w)}
}

func (c *CSV) Write(results []domain.Result) error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			strconv.Itoa(int(r.Status)),
			r.PerilID,
			strconv.FormatInt(r.AreaPerilID, 10),
			strconv.Itoa(int(r.Coverage)),
			r.Message,
			strconv.Itoa(r.ID),
			strconv.FormatInt(r.VulnerabilityID, 10),
			strconv.FormatInt(r.LocID, 10),
			strconv.Itoa(int(r.CoverageType)),
		}
		if err := c.w.Write(rec); err != nil {
			return eris.Wrap(err, "output: write csv row")
		}
	}
	return nil
}

func (c *CSV) writeHeader() error {
	if c.header {
		return nil
	}
	c.header = true
	return eris.Wrap(c.w.Write(domain.ResultColumns), "output: write csv header")
}

func (c *CSV) Flush() error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.w.Flush()
	return eris.Wrap(c.w.Error(), "output: flush csv")
}

// NDJSON writes one JSON object per result.
type NDJSON struct {
	enc *json.Encoder
}

func NewNDJSON(w io.Writer) *NDJSON {
	return &NDJSON{enc: json.NewEncoder(w)}
}

func (n *NDJSON) Write(results []domain.Result) error {
	for _, r := range results {
		if err := n.enc.Encode(r); err != nil {
			return eris.Wrap(err, "output: encode result")
		}
	}
	return nil
}

func (n *NDJSON) Flush() error { return nil }

// WriteError appends a terminal error line to an NDJSON stream.
func (n *NDJSON) WriteError(msg string) error {
	return n.enc.Encode(struct {
		Error string `json:"error"`
	}{msg})
}
