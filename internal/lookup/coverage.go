package lookup

import "keyslookup/internal/domain"

// ExpandCoverages emits one row per coverage the location insures, in the
// order of domain.Coverages. A location insuring nothing yields no rows.
func ExpandCoverages(rows []domain.Location) []domain.Location {
	out := make([]domain.Location, 0, len(rows)*len(domain.Coverages))
	for _, r := range rows {
		for k, cov := range domain.Coverages {
			if !r.Covered[k] {
				continue
			}
			row := r
			row.Coverage = cov.Type
			out = append(out, row)
		}
	}
	return out
}
