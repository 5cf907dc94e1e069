package lookup

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"keyslookup/internal/domain"
	"keyslookup/internal/reference"
)

// normalizer carries the state shared by the normalization steps.
type normalizer struct {
	table  domain.Table
	deriv  Derivation
	cols   map[string]int // upper-cased recognized column -> index
	geog   []geogPair
	locs   []domain.Location
	schema Schema
}

type geogPair struct {
	n            int
	scheme, name int
}

// Normalize validates a raw exposure table and derives one Location per row.
// It fails when a required column is absent or a TIV is not numeric; every
// other gap is left for the later stages to record per row.
func Normalize(table domain.Table, deriv Derivation) ([]domain.Location, Schema, error) {
	n := &normalizer{table: table, deriv: deriv.normalized(), schema: newSchema()}
	steps := []func() error{
		n.indexColumns,
		n.checkRequired,
		n.deriveRows,
		n.assignLocIDs,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, Schema{}, err
		}
	}
	return n.locs, n.schema, nil
}

func (n *normalizer) indexColumns() error {
	n.cols = make(map[string]int, len(n.table.Columns))
	for j, c := range n.table.Columns {
		c = strings.ToUpper(strings.TrimSpace(c))
		if !recognized(c) {
			continue
		}
		if _, dup := n.cols[c]; !dup {
			n.cols[c] = j
		}
	}
	for c, j := range n.cols {
		suffix, ok := geogSuffix(c)
		if !ok || !strings.HasPrefix(c, colGeogSchemePrefix) {
			continue
		}
		if k, ok := n.cols[colGeogNamePrefix+suffix]; ok {
			num, _ := strconv.Atoi(suffix)
			n.geog = append(n.geog, geogPair{n: num, scheme: j, name: k})
		}
	}
	// lower pair numbers win when two pairs name the same precision
	sort.Slice(n.geog, func(a, b int) bool { return n.geog[a].n < n.geog[b].n })
	for _, c := range precisionColumns {
		if _, ok := n.cols[c]; ok {
			n.schema.add(c)
		}
	}
	return nil
}

func (n *normalizer) checkRequired() error {
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := n.cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrMissingColumns, "%s", strings.Join(missing, ", "))
	}
	return nil
}

func (n *normalizer) cell(i int, col string) string {
	j, ok := n.cols[col]
	if !ok {
		return ""
	}
	return strings.TrimSpace(n.table.Cell(i, j))
}

func (n *normalizer) deriveRows() error {
	n.locs = make([]domain.Location, 0, len(n.table.Rows))
	for i := range n.table.Rows {
		loc := domain.Location{
			SiteNumber:      i + 1,
			CountryCode:     n.cell(i, colCountryCode),
			OccupancyCode:   trimFloat(n.cell(i, colOccupancyCode)),
			OccupancyScheme: n.deriv.OccupancyScheme,
			PerilsCovered:   n.cell(i, colPerilsCovered),
			Geography:       make(map[string]string),
			Status:          domain.StatusSuccess,
		}
		loc.CountryISO = n.deriv.countryISO(loc.CountryCode)
		loc.OccupancyClass = n.deriv.occupancyClass(loc.OccupancyCode)

		for k, col := range []string{colBuildingTIV, colContentsTIV, colBITIV} {
			tiv, err := parseTIV(n.cell(i, col))
			if err != nil {
				return eris.Wrapf(ErrInvalidValue, "%s row %d: %q", col, i+1, n.cell(i, col))
			}
			loc.Covered[k] = tiv > 0
		}

		for _, c := range precisionColumns {
			if v := n.cell(i, c); v != "" {
				loc.Geography[c] = v
			}
		}
		for _, p := range n.geog {
			scheme := strings.TrimSpace(n.table.Cell(i, p.scheme))
			if scheme == "" {
				continue
			}
			field := reference.Precision(n.deriv.precisionForScheme(scheme))
			n.schema.add(field)
			name := strings.TrimSpace(n.table.Cell(i, p.name))
			if _, taken := loc.Geography[field]; !taken && name != "" {
				loc.Geography[field] = name
			}
		}
		n.locs = append(n.locs, loc)
	}
	return nil
}

// assignLocIDs keeps LOC_ID when the table has one and otherwise numbers the
// distinct (portfolio, account, location) keys in order of first appearance.
func (n *normalizer) assignLocIDs() error {
	if _, ok := n.cols[colLocID]; ok {
		for i := range n.locs {
			v := trimFloat(n.cell(i, colLocID))
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return eris.Wrapf(ErrInvalidValue, "%s row %d: %q", colLocID, i+1, v)
			}
			n.locs[i].LocID = id
		}
		return nil
	}

	keyCols := make([]string, 0, 3)
	for _, c := range []string{colPortNumber, colAccNumber, colLocNumber} {
		if _, ok := n.cols[c]; ok {
			keyCols = append(keyCols, c)
		}
	}
	if len(keyCols) == 0 {
		for i := range n.locs {
			n.locs[i].LocID = int64(n.locs[i].SiteNumber)
		}
		return nil
	}

	ids := make(map[string]int64)
	for i := range n.locs {
		parts := make([]string, len(keyCols))
		for k, c := range keyCols {
			parts[k] = n.cell(i, c)
		}
		key := strings.Join(parts, "\x00")
		id, ok := ids[key]
		if !ok {
			id = int64(len(ids) + 1)
			ids[key] = id
		}
		n.locs[i].LocID = id
	}
	return nil
}

func parseTIV(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// trimFloat drops the ".0" a float-typed source appends to integer codes.
func trimFloat(s string) string {
	if v, ok := strings.CutSuffix(s, ".0"); ok {
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			return v
		}
	}
	return s
}
