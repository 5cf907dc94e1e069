package postgres

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"keyslookup/internal/domain"
	"keyslookup/internal/reference"
)

// References reads one model's reference tables. Perils come from config,
// so the returned set leaves them empty.
type References struct {
	db    *sql.DB
	model string
}

func NewReferences(db *sql.DB, model string) *References {
	return &References{db: db, model: model}
}

func (r *References) Load(ctx context.Context) (reference.Set, error) {
	var set reference.Set
	steps := []struct {
		name string
		load func(context.Context, *reference.Set) error
	}{
		{"countries", r.countries},
		{"location_hierarchy", r.hierarchy},
		{"peril_codes", r.perilCodes},
		{"areas", r.areas},
		{"area_perils", r.areaPerils},
		{"vulnerabilities", r.vulnerabilities},
	}
	for _, s := range steps {
		if err := s.load(ctx, &set); err != nil {
			return reference.Set{}, eris.Wrapf(err, "postgres: load %s", s.name)
		}
	}
	return set, nil
}

// query runs q for the model and calls scan once per row.
func (r *References) query(ctx context.Context, q string, scan func(*sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, q, r.model)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *References) countries(ctx context.Context, set *reference.Set) error {
	return r.query(ctx, `
        SELECT country_iso, country_code FROM countries
        WHERE model_id = $1 ORDER BY country_iso
    `, func(rows *sql.Rows) error {
		var c domain.Country
		if err := rows.Scan(&c.ISO, &c.Code); err != nil {
			return err
		}
		set.Countries = append(set.Countries, c)
		return nil
	})
}

func (r *References) hierarchy(ctx context.Context, set *reference.Set) error {
	return r.query(ctx, `
        SELECT country_iso, hierarchy_order, precision_name FROM location_hierarchy
        WHERE model_id = $1 ORDER BY country_iso, hierarchy_order
    `, func(rows *sql.Rows) error {
		var h domain.HierarchyLevel
		if err := rows.Scan(&h.CountryISO, &h.Order, &h.Precision); err != nil {
			return err
		}
		set.Hierarchy = append(set.Hierarchy, h)
		return nil
	})
}

func (r *References) perilCodes(ctx context.Context, set *reference.Set) error {
	return r.query(ctx, `
        SELECT peril_code, peril_id FROM peril_codes WHERE model_id = $1
    `, func(rows *sql.Rows) error {
		var p domain.PerilCode
		if err := rows.Scan(&p.Code, &p.ID); err != nil {
			return err
		}
		set.PerilCodes = append(set.PerilCodes, p)
		return nil
	})
}

func (r *References) areas(ctx context.Context, set *reference.Set) error {
	return r.query(ctx, `
        SELECT country_iso, precision_name, unit_name, area_id, region FROM areas
        WHERE model_id = $1
    `, func(rows *sql.Rows) error {
		var a domain.Area
		if err := rows.Scan(&a.CountryISO, &a.Precision, &a.UnitName, &a.AreaID, &a.Region); err != nil {
			return err
		}
		set.Areas = append(set.Areas, a)
		return nil
	})
}

func (r *References) areaPerils(ctx context.Context, set *reference.Set) error {
	return r.query(ctx, `
        SELECT area_id, peril_id, areaperil_id FROM area_perils WHERE model_id = $1
    `, func(rows *sql.Rows) error {
		var ap domain.AreaPeril
		if err := rows.Scan(&ap.AreaID, &ap.PerilID, &ap.AreaPerilID); err != nil {
			return err
		}
		set.AreaPerils = append(set.AreaPerils, ap)
		return nil
	})
}

func (r *References) vulnerabilities(ctx context.Context, set *reference.Set) error {
	return r.query(ctx, `
        SELECT occupancy_scheme, occupancy_class, precedence, coverage, country_iso, region, vulnerability_id
        FROM vulnerabilities WHERE model_id = $1
    `, func(rows *sql.Rows) error {
		var v domain.Vulnerability
		var coverage int
		k := &v.Key
		if err := rows.Scan(&k.OccupancyScheme, &k.OccupancyClass, &k.Precedence, &coverage,
			&k.CountryISO, &k.Region, &v.VulnerabilityID); err != nil {
			return err
		}
		k.Coverage = domain.CoverageType(coverage)
		set.Vulnerabilities = append(set.Vulnerabilities, v)
		return nil
	})
}
