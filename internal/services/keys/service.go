package keys

import (
	"context"
	"iter"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"keyslookup/internal/domain"
	"keyslookup/internal/lookup"
	"keyslookup/internal/ports"
	"keyslookup/internal/reference"
)

var ErrNotLoaded = eris.New("keys: reference tables not loaded")

type model struct {
	tables *reference.Tables
	engine *lookup.Engine
}

// Service serves lookups against the current model. Reload swaps the model
// atomically; runs already in flight keep the model they started with.
type Service struct {
	source ports.ReferenceSource
	deriv  lookup.Derivation
	perils map[string]int
	log    *zap.Logger

	reload  sync.Mutex
	current atomic.Pointer[model]
}

// New builds an unloaded service. perils maps peril code to precedence.
func New(source ports.ReferenceSource, deriv lookup.Derivation, perils map[string]int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{source: source, deriv: deriv, perils: perils, log: log}
}

func (s *Service) Reload(ctx context.Context) error {
	s.reload.Lock()
	defer s.reload.Unlock()

	set, err := s.source.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "keys: load references")
	}
	set.Perils = s.perilList()
	s.fillCountryCodes(set.Countries)

	tables, err := reference.New(set)
	if err != nil {
		return eris.Wrap(err, "keys: index references")
	}
	s.current.Store(&model{tables: tables, engine: lookup.New(s.deriv, tables, s.log)})

	fields := make([]zap.Field, 0, 8)
	stats := tables.Stats()
	names := make([]string, 0, len(stats))
	for k := range stats {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fields = append(fields, zap.Int(k, stats[k]))
	}
	s.log.Info("keys: reference tables loaded", fields...)
	return nil
}

func (s *Service) Lookup(ctx context.Context, table domain.Table, opts ...lookup.RunOption) iter.Seq2[lookup.Batch, error] {
	m := s.current.Load()
	if m == nil {
		return func(yield func(lookup.Batch, error) bool) {
			yield(lookup.Batch{}, ErrNotLoaded)
		}
	}
	return m.engine.Run(ctx, table, opts...)
}

// Countries lists the supported countries, or nil before the first load.
func (s *Service) Countries() []domain.Country {
	m := s.current.Load()
	if m == nil {
		return nil
	}
	return m.tables.Countries()
}

func (s *Service) perilList() []domain.Peril {
	out := make([]domain.Peril, 0, len(s.perils))
	for code, p := range s.perils {
		out = append(out, domain.Peril{Code: code, Precedence: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Precedence < out[j].Precedence })
	return out
}

// fillCountryCodes names countries the source left blank from the
// derivation's code-to-ISO map. The smallest code wins when several map to
// one ISO.
func (s *Service) fillCountryCodes(countries []domain.Country) {
	byISO := make(map[int]string)
	for code, iso := range s.deriv.CountryISOCodes {
		code = strings.ToUpper(code)
		if cur, ok := byISO[iso]; !ok || code < cur {
			byISO[iso] = code
		}
	}
	for i := range countries {
		if countries[i].Code == "" {
			countries[i].Code = byISO[countries[i].ISO]
		}
	}
}
