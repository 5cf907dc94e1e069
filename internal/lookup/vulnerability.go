package lookup

import "keyslookup/internal/domain"

// VulnerabilityTable resolves the composite vulnerability key.
type VulnerabilityTable interface {
	Vulnerability(k domain.VulnerabilityKey) (int64, bool)
}

// ResolveVulnerabilities sets the vulnerability id of every row in place and
// returns the number of rows that failed here. Rows that already carry a
// failure keep it and get the sentinel.
func ResolveVulnerabilities(rows []domain.Location, vulns VulnerabilityTable) int {
	misses := 0
	for i := range rows {
		r := &rows[i]
		if r.Failed() {
			r.VulnerabilityID = domain.Sentinel
			continue
		}
		id, ok := vulns.Vulnerability(domain.VulnerabilityKey{
			OccupancyScheme: r.OccupancyScheme,
			OccupancyClass:  r.OccupancyClass,
			Precedence:      r.Precedence,
			Coverage:        r.Coverage,
			CountryISO:      r.CountryISO,
			Region:          r.Region,
		})
		if !ok {
			r.VulnerabilityID = domain.Sentinel
			r.Fail(domain.MsgVulnerabilityFailed)
			misses++
			continue
		}
		r.VulnerabilityID = id
	}
	return misses
}
