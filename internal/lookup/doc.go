// Package lookup resolves exposure locations to model keys: peril, area-peril
// and vulnerability identifiers per coverage.
//
// The pipeline, applied per country:
//   - Normalize: validates and derives the fields the later stages need
//   - ResolvePerils: splits the perils-covered string into one row per supported peril
//   - Geocode: walks the country's location hierarchy, finest level first,
//     joining area and area-peril ids
//   - ExpandCoverages: one row per insured coverage
//   - ResolveVulnerabilities: composite-key join to the vulnerability dictionary
//   - Format: sorted, canonical result rows
//
// Engine.Run chains the stages and yields one Batch per country.
package lookup
