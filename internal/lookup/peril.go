package lookup

import (
	"strings"

	"keyslookup/internal/domain"
)

// perilSlots is the number of peril codes a perils-covered string may carry.
const perilSlots = 3

// PerilTable resolves OED peril codes.
type PerilTable interface {
	// Precedence is 0 for perils the model does not support.
	Precedence(code string) int
	PerilID(code string) (int, bool)
}

// ResolvePerils expands every location into one row per supported peril in
// its perils-covered string, in slot order. Unsupported codes, blanks and
// repeats of an earlier slot produce no row.
func ResolvePerils(locs []domain.Location, perils PerilTable) []domain.Location {
	out := make([]domain.Location, 0, len(locs))
	for _, loc := range locs {
		seen := make(map[string]bool, perilSlots)
		for _, code := range splitPerils(loc.PerilsCovered) {
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			prec := perils.Precedence(code)
			if prec == 0 {
				continue
			}
			row := loc
			row.PerilCode = code
			row.Precedence = prec
			row.PerilID, _ = perils.PerilID(code)
			out = append(out, row)
		}
	}
	return out
}

// splitPerils pads s to exactly perilSlots ';'-separated fields and trims
// each. Fields past the last slot are ignored.
func splitPerils(s string) []string {
	fields := strings.SplitN(s, ";", perilSlots+1)
	if len(fields) > perilSlots {
		fields = fields[:perilSlots]
	}
	out := make([]string, perilSlots)
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}
