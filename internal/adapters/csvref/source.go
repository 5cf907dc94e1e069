// Package csvref reads model reference tables from a keys-data directory of
// CSV files named <MODEL>_<Table>.csv.
package csvref

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"keyslookup/internal/domain"
	"keyslookup/internal/reference"
)

// File base names, without the model prefix.
const (
	FileCountries     = "Countries"
	FileHierarchy     = "Location_Hierarchy"
	FilePerilCodes    = "PerilID_Dict"
	FileAreas         = "AreaID_Dict"
	FileAreaPerils    = "AreaperilID_Dict"
	FileVulnerability = "Vulnerability_Dict"
)

type Source struct {
	Dir   string
	Model string
}

func New(dir, model string) *Source { return &Source{Dir: dir, Model: model} }

// Path returns the file holding table base.
func (s *Source) Path(base string) string {
	return filepath.Join(s.Dir, s.Model+"_"+base+".csv")
}

// Load reads every table. Model perils are configuration, not files, so
// Set.Perils is left empty.
func (s *Source) Load(ctx context.Context) (reference.Set, error) {
	var set reference.Set
	steps := []struct {
		base string
		read func(*table) error
	}{
		{FileCountries, func(t *table) error { return readCountries(t, &set) }},
		{FileHierarchy, func(t *table) error { return readHierarchy(t, &set) }},
		{FilePerilCodes, func(t *table) error { return readPerilCodes(t, &set) }},
		{FileAreas, func(t *table) error { return readAreas(t, &set) }},
		{FileAreaPerils, func(t *table) error { return readAreaPerils(t, &set) }},
		{FileVulnerability, func(t *table) error { return readVulnerabilities(t, &set) }},
	}
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		path := s.Path(st.base)
		t, err := openTable(path)
		if err != nil {
			return set, err
		}
		if err := st.read(t); err != nil {
			return set, eris.Wrapf(err, "csvref: %s", filepath.Base(path))
		}
	}
	return set, nil
}

// table is a header-indexed CSV file held in memory.
type table struct {
	cols map[string]int
	rows [][]string
}

func openTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvref: open")
	}
	defer f.Close()
	return parseTable(f)
}

func parseTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "csvref: read header")
	}
	t := &table{cols: make(map[string]int, len(header))}
	for i, h := range header {
		t.cols[columnKey(h)] = i
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csvref: read rows")
	}
	t.rows = rows
	return t, nil
}

// columnKey folds case and underscores so Area_ID, AREA_ID and AreaID agree.
func columnKey(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")), "_", ""))
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.cols[columnKey(c)]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("missing columns %s", strings.Join(missing, ", "))
	}
	return nil
}

func (t *table) str(row []string, col string) string {
	i, ok := t.cols[columnKey(col)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) integer(row []string, line int, col string) (int64, error) {
	v := strings.TrimSuffix(t.str(row, col), ".0")
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, eris.Errorf("line %d: %s: %q is not an integer", line, col, t.str(row, col))
	}
	return n, nil
}

// ints parses cols of one row in order.
func (t *table) ints(row []string, line int, cols ...string) ([]int64, error) {
	out := make([]int64, len(cols))
	for i, c := range cols {
		n, err := t.integer(row, line, c)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func readCountries(t *table, set *reference.Set) error {
	if err := t.require("CountryISO"); err != nil {
		return err
	}
	for i, row := range t.rows {
		iso, err := t.integer(row, i+2, "CountryISO")
		if err != nil {
			return err
		}
		set.Countries = append(set.Countries, domain.Country{ISO: int(iso), Code: strings.ToUpper(t.str(row, "CountryCode"))})
	}
	return nil
}

func readHierarchy(t *table, set *reference.Set) error {
	if err := t.require("CountryISO", "HierarchyOrder", "PrecisionName"); err != nil {
		return err
	}
	for i, row := range t.rows {
		n, err := t.ints(row, i+2, "CountryISO", "HierarchyOrder")
		if err != nil {
			return err
		}
		set.Hierarchy = append(set.Hierarchy, domain.HierarchyLevel{
			CountryISO: int(n[0]),
			Order:      int(n[1]),
			Precision:  t.str(row, "PrecisionName"),
		})
	}
	return nil
}

func readPerilCodes(t *table, set *reference.Set) error {
	if err := t.require("Peril_Code", "Peril_ID"); err != nil {
		return err
	}
	for i, row := range t.rows {
		id, err := t.integer(row, i+2, "Peril_ID")
		if err != nil {
			return err
		}
		set.PerilCodes = append(set.PerilCodes, domain.PerilCode{Code: t.str(row, "Peril_Code"), ID: int(id)})
	}
	return nil
}

func readAreas(t *table, set *reference.Set) error {
	if err := t.require("CountryISO", "PrecisionName", "UnitName", "Area_ID"); err != nil {
		return err
	}
	for i, row := range t.rows {
		n, err := t.ints(row, i+2, "CountryISO", "Area_ID")
		if err != nil {
			return err
		}
		set.Areas = append(set.Areas, domain.Area{
			CountryISO: int(n[0]),
			Precision:  t.str(row, "PrecisionName"),
			UnitName:   t.str(row, "UnitName"),
			AreaID:     n[1],
			Region:     t.str(row, "Region"),
		})
	}
	return nil
}

func readAreaPerils(t *table, set *reference.Set) error {
	if err := t.require("Area_ID", "Peril_ID", "AreaPeril_ID"); err != nil {
		return err
	}
	for i, row := range t.rows {
		n, err := t.ints(row, i+2, "Area_ID", "Peril_ID", "AreaPeril_ID")
		if err != nil {
			return err
		}
		set.AreaPerils = append(set.AreaPerils, domain.AreaPeril{AreaID: n[0], PerilID: int(n[1]), AreaPerilID: n[2]})
	}
	return nil
}

func readVulnerabilities(t *table, set *reference.Set) error {
	if err := t.require("OccupancyScheme", "OccupancyClass", "Precedence", "Coverage", "CountryISO", "Region", "Vulnerability_ID"); err != nil {
		return err
	}
	for i, row := range t.rows {
		n, err := t.ints(row, i+2, "Precedence", "Coverage", "CountryISO", "Vulnerability_ID")
		if err != nil {
			return err
		}
		set.Vulnerabilities = append(set.Vulnerabilities, domain.Vulnerability{
			Key: domain.VulnerabilityKey{
				OccupancyScheme: t.str(row, "OccupancyScheme"),
				OccupancyClass:  t.str(row, "OccupancyClass"),
				Precedence:      int(n[0]),
				Coverage:        domain.CoverageType(n[1]),
				CountryISO:      int(n[2]),
				Region:          t.str(row, "Region"),
			},
			VulnerabilityID: n[3],
		})
	}
	return nil
}
