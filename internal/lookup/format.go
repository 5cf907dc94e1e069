package lookup

import (
	"sort"

	"keyslookup/internal/domain"
)

// Format sorts rows by site then coverage type, keeping the incoming order
// among equals, and projects them onto the result schema.
func Format(rows []domain.Location) []domain.Result {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SiteNumber != rows[j].SiteNumber {
			return rows[i].SiteNumber < rows[j].SiteNumber
		}
		return rows[i].Coverage < rows[j].Coverage
	})

	out := make([]domain.Result, len(rows))
	for i, r := range rows {
		out[i] = domain.Result{
			Status:          r.Status,
			PerilID:         r.PerilCode,
			AreaPerilID:     r.AreaPerilID,
			Coverage:        r.Coverage,
			Message:         r.Message,
			ID:              r.SiteNumber,
			VulnerabilityID: r.VulnerabilityID,
			LocID:           r.LocID,
			CoverageType:    r.Coverage,
		}
	}
	return out
}
