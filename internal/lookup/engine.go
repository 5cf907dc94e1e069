package lookup

import (
	"context"
	"iter"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"keyslookup/internal/domain"
)

// References is everything the engine reads. *reference.Tables implements it.
type References interface {
	Countries() []domain.Country
	Hierarchy(countryISO int) []domain.HierarchyLevel
	PerilTable
	AreaTable
	VulnerabilityTable
}

// Batch is the complete, sorted result for one country.
type Batch struct {
	Country domain.Country
	Results []domain.Result
}

// Engine runs keys lookups against one set of reference tables. It holds no
// per-run state, so one Engine can serve any number of runs.
type Engine struct {
	deriv Derivation
	refs  References
	log   *zap.Logger
}

func New(deriv Derivation, refs References, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{deriv: deriv, refs: refs, log: logger}
}

type runOptions struct {
	countries map[string]bool
}

// RunOption narrows a run.
type RunOption func(*runOptions)

// OnlyCountries restricts a run to the given country codes.
func OnlyCountries(codes ...string) RunOption {
	return func(o *runOptions) {
		if len(codes) == 0 {
			return
		}
		o.countries = make(map[string]bool, len(codes))
		for _, c := range codes {
			o.countries[strings.ToUpper(strings.TrimSpace(c))] = true
		}
	}
}

// Run returns the lazy per-country result sequence for table. Nothing is
// computed until the sequence is ranged over, and each range starts over.
// Countries come in reference-table order, each fully resolved before the
// next begins. A fatal error is yielded once with an empty Batch and ends the
// sequence. ctx is only consulted between countries.
func (e *Engine) Run(ctx context.Context, table domain.Table, opts ...RunOption) iter.Seq2[Batch, error] {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(yield func(Batch, error) bool) {
		locs, schema, err := Normalize(table, e.deriv)
		if err != nil {
			yield(Batch{}, err)
			return
		}
		e.log.Debug("normalize: done", zap.Int("locations", len(locs)), zap.Strings("fields", schema.Fields()))

		byCountry := make(map[int][]domain.Location)
		for _, l := range locs {
			byCountry[l.CountryISO] = append(byCountry[l.CountryISO], l)
		}

		supported := 0
		for _, c := range e.refs.Countries() {
			rows, ok := byCountry[c.ISO]
			if !ok {
				continue
			}
			supported += len(rows)
			if o.countries != nil && !o.countries[strings.ToUpper(c.Code)] {
				continue
			}
			if err := ctx.Err(); err != nil {
				yield(Batch{}, eris.Wrap(err, "lookup: run cancelled"))
				return
			}

			results, err := e.country(c, rows, schema)
			if err != nil {
				yield(Batch{}, err)
				return
			}
			if !yield(Batch{Country: c, Results: results}, nil) {
				return
			}
		}
		if dropped := len(locs) - supported; dropped > 0 {
			e.log.Warn("lookup: locations in unsupported countries", zap.Int("count", dropped))
		}
	}
}

func (e *Engine) country(c domain.Country, rows []domain.Location, schema Schema) ([]domain.Result, error) {
	log := e.log.With(zap.Int("country", c.ISO), zap.String("country_code", c.Code))

	perils := ResolvePerils(rows, e.refs)
	log.Debug("perils: done", zap.Int("locations", len(rows)), zap.Int("rows", len(perils)))

	geocoded, stats, err := Geocode(perils, c.ISO, e.refs.Hierarchy(c.ISO), schema, e.refs, log)
	if err != nil {
		return nil, err
	}
	if stats.AreaPerilMisses > 0 {
		log.Warn("geocode: area-peril combinations missing", zap.Int("count", stats.AreaPerilMisses))
	}

	covered := ExpandCoverages(geocoded)
	misses := ResolveVulnerabilities(covered, e.refs)
	results := Format(covered)

	log.Info("lookup: country done",
		zap.Int("locations", len(rows)),
		zap.Int("results", len(results)),
		zap.Any("matched", stats.Matched),
		zap.Int("geocode_failed", stats.Failed),
		zap.Int("vulnerability_failed", misses))
	return results, nil
}

// Collect drains seq into one slice, stopping at the first error.
func Collect(seq iter.Seq2[Batch, error]) ([]domain.Result, error) {
	var out []domain.Result
	for b, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, b.Results...)
	}
	return out, nil
}
