package lookup

import "strings"

// OtherwiseKey is the occupancy class fallback entry.
const OtherwiseKey = "Otherwise"

// Derivation maps raw exposure codes to the codes the reference tables use.
type Derivation struct {
	OccupancyScheme     string
	CountryISOCodes     map[string]int
	OccupancyClassCodes map[string]string
	// GeogSchemes maps a GEOGSCHEMEn value to a precision name.
	GeogSchemes map[string]string
}

// normalized returns a copy with upper-cased map keys. Config loaders are
// free to fold key case, so lookups never depend on it.
func (d Derivation) normalized() Derivation {
	out := Derivation{
		OccupancyScheme:     d.OccupancyScheme,
		CountryISOCodes:     make(map[string]int, len(d.CountryISOCodes)),
		OccupancyClassCodes: make(map[string]string, len(d.OccupancyClassCodes)),
		GeogSchemes:         make(map[string]string, len(d.GeogSchemes)),
	}
	for k, v := range d.CountryISOCodes {
		out.CountryISOCodes[upperKey(k)] = v
	}
	for k, v := range d.OccupancyClassCodes {
		out.OccupancyClassCodes[upperKey(k)] = v
	}
	for k, v := range d.GeogSchemes {
		out.GeogSchemes[upperKey(k)] = v
	}
	return out
}

func upperKey(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// The lookups below expect a normalized Derivation.

func (d Derivation) countryISO(code string) int {
	return d.CountryISOCodes[upperKey(code)]
}

func (d Derivation) occupancyClass(code string) string {
	if c, ok := d.OccupancyClassCodes[upperKey(code)]; ok {
		return c
	}
	return d.OccupancyClassCodes[upperKey(OtherwiseKey)]
}

func (d Derivation) precisionForScheme(scheme string) string {
	if p, ok := d.GeogSchemes[upperKey(scheme)]; ok {
		return p
	}
	return upperKey(scheme)
}
