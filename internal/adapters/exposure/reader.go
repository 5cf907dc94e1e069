// Package exposure decodes exposure files (CSV, XLSX, JSON rows) into raw
// tables for the lookup engine.
package exposure

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"keyslookup/internal/domain"
	"keyslookup/internal/ports"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

var ErrUnknownFormat = eris.New("exposure: unknown format")

// ForFormat returns the reader for a format name.
func ForFormat(format string) (ports.ExposureReader, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return CSV{}, nil
	case FormatXLSX:
		return XLSX{}, nil
	case FormatJSON:
		return JSON{}, nil
	}
	return nil, eris.Wrapf(ErrUnknownFormat, "%q", format)
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// FormatFromContentType maps a request content type to a format, or "".
func FormatFromContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	switch mt {
	case "text/csv", "application/csv":
		return FormatCSV
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case "application/json":
		return FormatJSON
	}
	return ""
}

type CSV struct{}

func (CSV) Read(r io.Reader) (domain.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return domain.Table{}, eris.Wrap(err, "exposure: read csv")
	}
	return fromRecords(records)
}

// XLSX reads the first sheet of a workbook.
type XLSX struct{}

func (XLSX) Read(r io.Reader) (domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.Table{}, eris.Wrap(err, "exposure: open workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return domain.Table{}, eris.New("exposure: workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.Table{}, eris.Wrapf(err, "exposure: read sheet %s", sheet)
	}
	return fromRecords(rows)
}

func fromRecords(records [][]string) (domain.Table, error) {
	if len(records) == 0 {
		return domain.Table{}, eris.New("exposure: empty file")
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return domain.Table{Columns: header, Rows: rows}, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// JSON reads an array of objects, one per location. Columns are the union of
// keys in lexical order.
type JSON struct{}

func (JSON) Read(r io.Reader) (domain.Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var objs []map[string]any
	if err := dec.Decode(&objs); err != nil {
		return domain.Table{}, eris.Wrap(err, "exposure: decode json")
	}

	seen := make(map[string]bool)
	var cols []string
	for _, o := range objs {
		for k := range o {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	rows := make([][]string, len(objs))
	for i, o := range objs {
		row := make([]string, len(cols))
		for j, c := range cols {
			switch v := o[c].(type) {
			case nil:
			case string:
				row[j] = v
			default:
				row[j] = fmt.Sprint(v)
			}
		}
		rows[i] = row
	}
	return domain.Table{Columns: cols, Rows: rows}, nil
}
