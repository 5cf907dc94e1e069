package lookup

import (
	"sort"
	"strings"
)

const (
	colLocID            = "LOC_ID"
	colPortNumber       = "PORTNUMBER"
	colAccNumber        = "ACCNUMBER"
	colLocNumber        = "LOCNUMBER"
	colCountryCode      = "COUNTRYCODE"
	colOccupancyCode    = "OCCUPANCYCODE"
	colPerilsCovered    = "LOCPERILSCOVERED"
	colBuildingTIV      = "BUILDINGTIV"
	colContentsTIV      = "CONTENTSTIV"
	colBITIV            = "BITIV"
	colGeogSchemePrefix = "GEOGSCHEME"
	colGeogNamePrefix   = "GEOGNAME"

	fieldLatitude  = "LATITUDE"
	fieldLongitude = "LONGITUDE"
	levelGridCell  = "GRIDCELL"
)

// RequiredColumns must be present in every exposure table.
var RequiredColumns = []string{
	colCountryCode, colOccupancyCode, colPerilsCovered,
	colBuildingTIV, colContentsTIV, colBITIV,
}

// precisionColumns are exposure columns that hold a location value directly,
// named after the precision level they resolve.
var precisionColumns = []string{
	"POSTALCODE", "LOWRESCRESTA", "HIGHRESCRESTA", fieldLatitude, fieldLongitude,
}

var otherColumns = []string{colLocID, colPortNumber, colAccNumber, colLocNumber}

func recognized(col string) bool {
	for _, set := range [][]string{RequiredColumns, precisionColumns, otherColumns} {
		for _, c := range set {
			if c == col {
				return true
			}
		}
	}
	_, ok := geogSuffix(col)
	return ok
}

// geogSuffix returns the pair suffix of a GEOGSCHEMEn or GEOGNAMEn column.
func geogSuffix(col string) (string, bool) {
	for _, p := range []string{colGeogSchemePrefix, colGeogNamePrefix} {
		if n, ok := strings.CutPrefix(col, p); ok && n != "" && isDigits(n) {
			return n, true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Schema is the set of location fields an exposure table provides, keyed by
// precision name. It is fixed once the table is normalized.
type Schema struct {
	fields map[string]bool
}

func newSchema() Schema { return Schema{fields: make(map[string]bool)} }

func (s Schema) add(field string) { s.fields[field] = true }

// Has reports whether the table carries values for the precision field.
func (s Schema) Has(field string) bool { return s.fields[field] }

// Fields lists the available fields in lexical order.
func (s Schema) Fields() []string {
	out := make([]string, 0, len(s.fields))
	for f := range s.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// applies reports whether a hierarchy level can be attempted with this schema.
// A grid cell needs both coordinates.
func (s Schema) applies(level string) bool {
	if strings.Contains(level, levelGridCell) {
		return s.Has(fieldLatitude) && s.Has(fieldLongitude)
	}
	return s.Has(level)
}
