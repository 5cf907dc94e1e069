package lookup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"keyslookup/internal/domain"
	"keyslookup/internal/reference"
)

const (
	isoDE = 276
	isoFR = 250
)

func testDerivation() Derivation {
	return Derivation{
		OccupancyScheme:     "IFE",
		CountryISOCodes:     map[string]int{"DE": isoDE, "FR": isoFR},
		OccupancyClassCodes: map[string]string{"1050": "RES", OtherwiseKey: "COM"},
		GeogSchemes:         map[string]string{"CRL": "CRESTAZONE", "IFSTA": "STATE"},
	}
}

func vuln(class string, cov domain.CoverageType, iso int, region string, id int64) domain.Vulnerability {
	return domain.Vulnerability{
		Key: domain.VulnerabilityKey{
			OccupancyScheme: "IFE", OccupancyClass: class, Precedence: 1,
			Coverage: cov, CountryISO: iso, Region: region,
		},
		VulnerabilityID: id,
	}
}

func testTables(t *testing.T) *reference.Tables {
	t.Helper()
	tbl, err := reference.New(reference.Set{
		Countries: []domain.Country{{ISO: isoDE, Code: "DE"}, {ISO: isoFR, Code: "FR"}},
		Hierarchy: []domain.HierarchyLevel{
			{CountryISO: isoDE, Order: 2, Precision: "CRESTAZONE"},
			{CountryISO: isoDE, Order: 1, Precision: "POSTALCODE"},
			{CountryISO: isoFR, Order: 1, Precision: "POSTALCODE"},
		},
		Perils:     []domain.Peril{{Code: "EQ", Precedence: 1}},
		PerilCodes: []domain.PerilCode{{Code: "EQ", ID: 1}, {Code: "FL", ID: 2}},
		Areas: []domain.Area{
			{CountryISO: isoDE, Precision: "POSTALCODE", UnitName: "10115", AreaID: 1, Region: "R1"},
			{CountryISO: isoDE, Precision: "CRESTAZONE", UnitName: "BER", AreaID: 2, Region: "R1"},
			{CountryISO: isoDE, Precision: "POSTALCODE", UnitName: "20095", AreaID: 3, Region: "R2"},
			{CountryISO: isoDE, Precision: "POSTALCODE", UnitName: "80331", AreaID: 4, Region: "R1"},
			{CountryISO: isoFR, Precision: "POSTALCODE", UnitName: "75001", AreaID: 5, Region: "F1"},
		},
		AreaPerils: []domain.AreaPeril{
			{AreaID: 1, PerilID: 1, AreaPerilID: 101},
			{AreaID: 2, PerilID: 1, AreaPerilID: 201},
			{AreaID: 3, PerilID: 1, AreaPerilID: 301},
			{AreaID: 5, PerilID: 1, AreaPerilID: 501},
		},
		Vulnerabilities: []domain.Vulnerability{
			vuln("RES", domain.CoverageBuilding, isoDE, "R1", 11),
			vuln("RES", domain.CoverageContents, isoDE, "R1", 13),
			vuln("RES", domain.CoverageBI, isoDE, "R1", 14),
			vuln("COM", domain.CoverageBuilding, isoDE, "R1", 21),
			vuln("RES", domain.CoverageBuilding, isoFR, "F1", 31),
		},
	})
	require.NoError(t, err)
	return tbl
}

var exposureColumns = []string{
	"PortNumber", "AccNumber", "LocNumber", "CountryCode", "OccupancyCode", "LocPerilsCovered",
	"BuildingTIV", "ContentsTIV", "BITIV", "PostalCode", "GeogScheme1", "GeogName1",
}

func exposureTable(rows ...[]string) domain.Table {
	return domain.Table{Columns: exposureColumns, Rows: rows}
}

// standardExposure covers one case per row:
//  1. postal match, two perils of which one is supported, three coverages
//  2. postal miss, cresta match, building only
//  3. no match at any level
//  4. nothing insured
//  5. geocodes, but no vulnerability for its region
//  6. France, building only
func standardExposure() domain.Table {
	return exposureTable(
		[]string{"P1", "A1", "L1", "DE", "1050", "EQ;FL", "100", "50", "10", "10115", "CRL", "ber"},
		[]string{"P1", "A1", "L2", "DE", "1050", "EQ", "100", "0", "0", "99999", "CRL", "BER"},
		[]string{"P1", "A1", "L3", "DE", "1050", "EQ", "100", "0", "0", "00000", "CRL", "XXX"},
		[]string{"P1", "A1", "L4", "DE", "1050", "EQ", "0", "0", "", "10115", "", ""},
		[]string{"P1", "A2", "L5", "DE", "1050", "EQ", "100", "0", "0", "20095.0", "", ""},
		[]string{"P1", "A2", "L6", "FR", "1050", "EQ", "100", "0", "0", "75001", "", ""},
	)
}
