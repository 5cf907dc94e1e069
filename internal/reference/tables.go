// Package reference holds the read-only model reference tables a keys lookup
// joins against, indexed for constant-time lookups and validated on build.
package reference

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"keyslookup/internal/domain"
)

// ErrDuplicate is returned when a table repeats a key that must be unique.
var ErrDuplicate = eris.New("reference: duplicate key")

// Set is the raw content of the reference tables as read by a source.
type Set struct {
	Countries       []domain.Country
	Hierarchy       []domain.HierarchyLevel
	Perils          []domain.Peril
	PerilCodes      []domain.PerilCode
	Areas           []domain.Area
	AreaPerils      []domain.AreaPeril
	Vulnerabilities []domain.Vulnerability
}

type areaKey struct {
	country   int
	precision string
	unit      string
}

type areaPerilKey struct {
	area  int64
	peril int
}

// Tables is safe for concurrent readers; nothing mutates it after New.
type Tables struct {
	countries  []domain.Country
	hierarchy  map[int][]domain.HierarchyLevel
	precedence map[string]int
	perilIDs   map[string]int
	areas      map[areaKey]domain.Area
	areaPerils map[areaPerilKey]int64
	vulns      map[domain.VulnerabilityKey]int64
}

// New indexes s. Unit and precision names are normalized with Unit and
// Precision so lookups are case-insensitive.
func New(s Set) (*Tables, error) {
	t := &Tables{
		countries:  make([]domain.Country, 0, len(s.Countries)),
		hierarchy:  make(map[int][]domain.HierarchyLevel),
		precedence: make(map[string]int, len(s.Perils)),
		perilIDs:   make(map[string]int, len(s.PerilCodes)),
		areas:      make(map[areaKey]domain.Area, len(s.Areas)),
		areaPerils: make(map[areaPerilKey]int64, len(s.AreaPerils)),
		vulns:      make(map[domain.VulnerabilityKey]int64, len(s.Vulnerabilities)),
	}

	seenCountry := make(map[int]bool, len(s.Countries))
	for _, c := range s.Countries {
		if seenCountry[c.ISO] {
			return nil, eris.Wrapf(ErrDuplicate, "country %d", c.ISO)
		}
		seenCountry[c.ISO] = true
		t.countries = append(t.countries, c)
	}

	for _, h := range s.Hierarchy {
		h.Precision = Precision(h.Precision)
		for _, prev := range t.hierarchy[h.CountryISO] {
			if prev.Precision == h.Precision {
				return nil, eris.Wrapf(ErrDuplicate, "hierarchy country %d precision %s", h.CountryISO, h.Precision)
			}
		}
		t.hierarchy[h.CountryISO] = append(t.hierarchy[h.CountryISO], h)
	}
	for iso := range t.hierarchy {
		levels := t.hierarchy[iso]
		sort.SliceStable(levels, func(i, j int) bool { return levels[i].Order < levels[j].Order })
	}

	for _, p := range s.Perils {
		code := strings.TrimSpace(p.Code)
		if _, ok := t.precedence[code]; ok {
			return nil, eris.Wrapf(ErrDuplicate, "peril %s", code)
		}
		t.precedence[code] = p.Precedence
	}
	for _, p := range s.PerilCodes {
		code := strings.TrimSpace(p.Code)
		if _, ok := t.perilIDs[code]; ok {
			return nil, eris.Wrapf(ErrDuplicate, "peril code %s", code)
		}
		t.perilIDs[code] = p.ID
	}

	for _, a := range s.Areas {
		a.Precision = Precision(a.Precision)
		a.UnitName = Unit(a.UnitName)
		k := areaKey{country: a.CountryISO, precision: a.Precision, unit: a.UnitName}
		if _, ok := t.areas[k]; ok {
			return nil, eris.Wrapf(ErrDuplicate, "area country %d %s %q", a.CountryISO, a.Precision, a.UnitName)
		}
		t.areas[k] = a
	}

	for _, ap := range s.AreaPerils {
		k := areaPerilKey{area: ap.AreaID, peril: ap.PerilID}
		if _, ok := t.areaPerils[k]; ok {
			return nil, eris.Wrapf(ErrDuplicate, "areaperil area %d peril %d", ap.AreaID, ap.PerilID)
		}
		t.areaPerils[k] = ap.AreaPerilID
	}

	for _, v := range s.Vulnerabilities {
		if _, ok := t.vulns[v.Key]; ok {
			return nil, eris.Wrapf(ErrDuplicate, "vulnerability %+v", v.Key)
		}
		t.vulns[v.Key] = v.VulnerabilityID
	}

	return t, nil
}

// Countries returns the supported countries in table order.
func (t *Tables) Countries() []domain.Country { return t.countries }

// Hierarchy returns the levels configured for a country, finest first.
func (t *Tables) Hierarchy(countryISO int) []domain.HierarchyLevel { return t.hierarchy[countryISO] }

// Precedence returns 0 for perils the model does not support.
func (t *Tables) Precedence(code string) int { return t.precedence[code] }

func (t *Tables) PerilID(code string) (int, bool) {
	id, ok := t.perilIDs[code]
	return id, ok
}

// Area expects precision and unit already normalized.
func (t *Tables) Area(countryISO int, precision, unit string) (domain.Area, bool) {
	a, ok := t.areas[areaKey{country: countryISO, precision: precision, unit: unit}]
	return a, ok
}

func (t *Tables) AreaPeril(areaID int64, perilID int) (int64, bool) {
	id, ok := t.areaPerils[areaPerilKey{area: areaID, peril: perilID}]
	return id, ok
}

func (t *Tables) Vulnerability(k domain.VulnerabilityKey) (int64, bool) {
	id, ok := t.vulns[k]
	return id, ok
}

// Stats reports row counts per table for logging.
func (t *Tables) Stats() map[string]int {
	levels := 0
	for _, h := range t.hierarchy {
		levels += len(h)
	}
	return map[string]int{
		"countries":       len(t.countries),
		"hierarchy":       levels,
		"perils":          len(t.precedence),
		"peril_codes":     len(t.perilIDs),
		"areas":           len(t.areas),
		"area_perils":     len(t.areaPerils),
		"vulnerabilities": len(t.vulns),
	}
}

// Precision normalizes a precision level name: upper case, no spaces.
func Precision(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// Unit normalizes a geographic unit name or a location field value so both
// sides of the area join compare equal: trimmed, upper case, and a numeric
// ".0" suffix left by float-typed sources removed.
func Unit(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, ".0") && isNumeric(strings.TrimSuffix(s, ".0")) {
		s = strings.TrimSuffix(s, ".0")
	}
	return strings.ToUpper(s)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}
