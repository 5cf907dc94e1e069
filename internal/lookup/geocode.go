package lookup

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"keyslookup/internal/domain"
	"keyslookup/internal/reference"
)

// AreaTable resolves geographic units and area-perils. Precision and unit
// are passed normalized (reference.Precision, reference.Unit).
type AreaTable interface {
	Area(countryISO int, precision, unit string) (domain.Area, bool)
	AreaPeril(areaID int64, perilID int) (int64, bool)
}

// GeocodeStats counts rows per outcome for one country.
type GeocodeStats struct {
	// Matched is keyed by precision level.
	Matched         map[string]int
	AreaPerilMisses int
	Failed          int
}

// Geocode assigns an area and area-peril id to every row of one country by
// walking levels finest first. A row is finalized at the first level where
// both its area and its (area, peril) pair resolve; rows left over after the
// last level fail with MsgGeocodeFailed. Levels the schema cannot serve are
// skipped, and ErrNoLocationField is returned when none can be served.
func Geocode(rows []domain.Location, countryISO int, levels []domain.HierarchyLevel, schema Schema, areas AreaTable, log *zap.Logger) ([]domain.Location, GeocodeStats, error) {
	stats := GeocodeStats{Matched: make(map[string]int)}

	usable := make([]string, 0, len(levels))
	for _, l := range levels {
		field := reference.Precision(l.Precision)
		if schema.applies(field) {
			usable = append(usable, field)
		}
	}
	if len(usable) == 0 {
		names := make([]string, 0, len(levels))
		for _, l := range levels {
			names = append(names, l.Precision)
		}
		return nil, stats, eris.Wrapf(ErrNoLocationField, "country %d: add at least one of [%s] (a grid cell needs both coordinates)",
			countryISO, strings.Join(names, ", "))
	}

	resolved := make([]domain.Location, 0, len(rows))
	pending := rows
	for _, field := range usable {
		if len(pending) == 0 {
			break
		}
		if strings.Contains(field, levelGridCell) {
			// no coordinate lookup exists for grid cells; the level is
			// recognised for field availability only
			log.Debug("geocode: grid cell level skipped", zap.Int("country", countryISO), zap.String("level", field))
			continue
		}

		matched, unmatched := partition(pending, func(r *domain.Location) bool {
			unit := reference.Unit(r.Geography[field])
			if unit == "" {
				return false
			}
			a, ok := areas.Area(countryISO, field, unit)
			if !ok {
				return false
			}
			r.Precision = field
			r.AreaID = a.AreaID
			r.Region = a.Region
			return true
		})

		joined, missed := joinAreaPerils(matched, areas)
		stats.AreaPerilMisses += len(missed)
		stats.Matched[field] += len(joined)

		resolved = append(resolved, joined...)
		pending = append(unmatched, missed...)

		log.Debug("geocode: level done",
			zap.Int("country", countryISO),
			zap.String("level", field),
			zap.Int("matched", len(joined)),
			zap.Int("areaperil_misses", len(missed)),
			zap.Int("pending", len(pending)))
	}

	for _, r := range pending {
		r.AreaID = domain.Sentinel
		r.AreaPerilID = domain.Sentinel
		r.Fail(domain.MsgGeocodeFailed)
		resolved = append(resolved, r)
	}
	stats.Failed = len(pending)
	return resolved, stats, nil
}

// joinAreaPerils attaches the area-peril id to rows with a known area. Rows
// whose (area, peril) pair is absent come back in missed with their area
// cleared, so a coarser level can try them again.
func joinAreaPerils(rows []domain.Location, areas AreaTable) (joined, missed []domain.Location) {
	joined, missed = partition(rows, func(r *domain.Location) bool {
		id, ok := areas.AreaPeril(r.AreaID, r.PerilID)
		if !ok {
			r.Precision, r.AreaID, r.Region = "", 0, ""
			return false
		}
		r.AreaPerilID = id
		return true
	})
	return joined, missed
}
