package domain

// Core domain models shared by the lookup engine, the reference sources and the
// transport adapters. Wire formats live with their adapters.

// Sentinel is written in place of an identifier that could not be resolved.
const Sentinel = -9999

// Failure messages. A row keeps the first one it is given.
const (
	MsgGeocodeFailed       = "Failed to geocode"
	MsgVulnerabilityFailed = "Failed to assign vulnerability function"
)

// CoverageType is the Oasis coverage type id.
type CoverageType int

const (
	CoverageBuilding CoverageType = 1
	CoverageOther    CoverageType = 2
	CoverageContents CoverageType = 3
	CoverageBI       CoverageType = 4
)

// Coverages is the fixed coverage table, in expansion order.
var Coverages = []struct {
	Name string
	Type CoverageType
}{
	{Name: "BLDG", Type: CoverageBuilding},
	{Name: "CONTENTS", Type: CoverageContents},
	{Name: "TE", Type: CoverageBI},
}

// Location is one exposure row as it moves through the pipeline. After peril
// resolution a Location stands for one (site, peril) pair; after coverage
// expansion for one (site, peril, coverage) triple.
type Location struct {
	SiteNumber      int
	LocID           int64
	CountryCode     string
	CountryISO      int
	OccupancyCode   string
	OccupancyScheme string
	OccupancyClass  string
	PerilsCovered   string

	// Building, Contents, BI
	Covered [3]bool

	// Geography holds the raw value per precision name (POSTALCODE, STATE, ...).
	Geography map[string]string

	PerilCode  string
	PerilID    int
	Precedence int

	Precision   string
	AreaID      int64
	Region      string
	AreaPerilID int64

	Coverage        CoverageType
	VulnerabilityID int64

	Status  Status
	Message string
}

// Failed reports whether a stage already recorded a failure for this row.
func (l *Location) Failed() bool { return l.Message != "" }

// Fail records a soft failure unless one is already present.
func (l *Location) Fail(msg string) {
	if l.Message != "" {
		return
	}
	l.Status = StatusNoMatch
	l.Message = msg
}

// Country is one row of the supported-countries table.
type Country struct {
	ISO  int    `json:"iso"`
	Code string `json:"code"`
}

// HierarchyLevel is one configured precision for a country. Lower Order is finer.
type HierarchyLevel struct {
	CountryISO int
	Order      int
	Precision  string
}

// Peril is a model-supported peril and its precedence.
type Peril struct {
	Code       string
	Precedence int
}

// PerilCode maps an OED peril code to the model peril id.
type PerilCode struct {
	Code string
	ID   int
}

type Area struct {
	CountryISO int
	Precision  string
	UnitName   string
	AreaID     int64
	Region     string
}

type AreaPeril struct {
	AreaID      int64
	PerilID     int
	AreaPerilID int64
}

// VulnerabilityKey is the composite join key of the vulnerability dictionary.
type VulnerabilityKey struct {
	OccupancyScheme string
	OccupancyClass  string
	Precedence      int
	Coverage        CoverageType
	CountryISO      int
	Region          string
}

type Vulnerability struct {
	Key             VulnerabilityKey
	VulnerabilityID int64
}

// Result is one emitted keys row.
type Result struct {
	Status          Status       `json:"status"`
	PerilID         string       `json:"peril_id"`
	AreaPerilID     int64        `json:"area_peril_id"`
	Coverage        CoverageType `json:"coverage"`
	Message         string       `json:"message"`
	ID              int          `json:"id"`
	VulnerabilityID int64        `json:"vulnerability_id"`
	LocID           int64        `json:"loc_id"`
	CoverageType    CoverageType `json:"coverage_type"`
}

// ResultColumns is the canonical output schema, in order.
var ResultColumns = []string{
	"status", "peril_id", "area_peril_id", "coverage", "message",
	"id", "vulnerability_id", "loc_id", "coverage_type",
}
