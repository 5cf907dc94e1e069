package csvref

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyslookup/internal/domain"
	"keyslookup/internal/reference"
)

var sampleFiles = map[string]string{
	FileCountries: "\ufeffCountryISO,CountryCode\n276,de\n",
	FileHierarchy: "CountryISO,HierarchyOrder,PrecisionName\n276,1,Postal Code\n276,2,CrestaZone\n",
	FilePerilCodes: "PERIL_CODE,PERIL_ID\nQEQ,1\n",
	FileAreas: "CountryISO,PrecisionName,UnitName,AREA_ID,REGION\n" +
		"276,POSTALCODE,10115.0,1,R1\n" +
		"276,CRESTAZONE,ber,2,R1\n",
	FileAreaPerils: "area_id,peril_id,areaperil_id\n1,1,101\n2,1,201\n",
	FileVulnerability: "OCCUPANCYSCHEME,OCCUPANCYCLASS,PRECEDENCE,COVERAGE,COUNTRYISO,REGION,VULNERABILITY_ID\n" +
		"IFE,RES,1,1,276,R1,11\n",
}

func writeSample(t *testing.T, files map[string]string) *Source {
	t.Helper()
	dir := t.TempDir()
	src := New(dir, "TREQ")
	for base, content := range files {
		require.NoError(t, os.WriteFile(src.Path(base), []byte(content), 0o644))
	}
	return src
}

func TestLoad(t *testing.T) {
	src := writeSample(t, sampleFiles)
	assert.Equal(t, filepath.Join(src.Dir, "TREQ_AreaID_Dict.csv"), src.Path(FileAreas))

	set, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Country{{ISO: 276, Code: "DE"}}, set.Countries)
	assert.Len(t, set.Hierarchy, 2)
	assert.Equal(t, []domain.PerilCode{{Code: "QEQ", ID: 1}}, set.PerilCodes)
	require.Len(t, set.Areas, 2)
	assert.EqualValues(t, 2, set.Areas[1].AreaID)
	assert.Equal(t, "R1", set.Areas[1].Region)
	assert.Len(t, set.AreaPerils, 2)
	require.Len(t, set.Vulnerabilities, 1)
	assert.Equal(t, domain.CoverageBuilding, set.Vulnerabilities[0].Key.Coverage)
	assert.Empty(t, set.Perils)

	tbl, err := reference.New(set)
	require.NoError(t, err)
	_, ok := tbl.Area(276, "POSTALCODE", "10115")
	assert.True(t, ok)
	assert.Equal(t, "POSTALCODE", tbl.Hierarchy(276)[0].Precision)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		files := map[string]string{}
		for k, v := range sampleFiles {
			files[k] = v
		}
		delete(files, FileVulnerability)
		_, err := writeSample(t, files).Load(context.Background())
		assert.Error(t, err)
	})

	t.Run("missing column", func(t *testing.T) {
		files := map[string]string{}
		for k, v := range sampleFiles {
			files[k] = v
		}
		files[FileAreaPerils] = "area_id,peril_id\n1,1\n"
		_, err := writeSample(t, files).Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AreaPeril_ID")
	})

	t.Run("bad integer", func(t *testing.T) {
		files := map[string]string{}
		for k, v := range sampleFiles {
			files[k] = v
		}
		files[FileCountries] = "CountryISO\nGermany\n"
		_, err := writeSample(t, files).Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}
