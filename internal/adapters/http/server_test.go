package httpadapter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"keyslookup/internal/domain"
	"keyslookup/internal/lookup"
	"keyslookup/internal/services/keys"
)

type fakeKeys struct {
	batches   []lookup.Batch
	failAfter int // yield this error after failAfter batches when set
	err       error
	countries []domain.Country
	reloadErr error

	gotTable domain.Table
	gotOpts  int
	reloads  int
}

func (f *fakeKeys) Lookup(_ context.Context, table domain.Table, opts ...lookup.RunOption) iter.Seq2[lookup.Batch, error] {
	f.gotTable = table
	f.gotOpts = len(opts)
	return func(yield func(lookup.Batch, error) bool) {
		for i, b := range f.batches {
			if f.err != nil && i == f.failAfter {
				yield(lookup.Batch{}, f.err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
		if f.err != nil && f.failAfter >= len(f.batches) {
			yield(lookup.Batch{}, f.err)
		}
	}
}

func (f *fakeKeys) Countries() []domain.Country { return f.countries }

func (f *fakeKeys) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

var (
	de = lookup.Batch{Country: domain.Country{ISO: 276, Code: "DE"}, Results: []domain.Result{
		{Status: domain.StatusSuccess, PerilID: "QEQ", AreaPerilID: 101, Coverage: 1, ID: 1, VulnerabilityID: 11, LocID: 1, CoverageType: 1},
	}}
	fr = lookup.Batch{Country: domain.Country{ISO: 250, Code: "FR"}, Results: []domain.Result{
		{Status: domain.StatusSuccess, PerilID: "QEQ", AreaPerilID: 501, Coverage: 1, ID: 2, VulnerabilityID: 31, LocID: 2, CoverageType: 1},
	}}
)

const exposureCSV = "CountryCode,OccupancyCode,LocPerilsCovered,BuildingTIV,ContentsTIV,BITIV,PostalCode\nDE,1050,QEQ,1,0,0,10115\n"

func serve(t *testing.T, k *fakeKeys, req *http.Request) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	New(k, zap.NewNop(), 1<<20).Routes().ServeHTTP(rec, req)
	return rec.Result()
}

func lines(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	require.NoError(t, sc.Err())
	return out
}

func TestHealthz(t *testing.T) {
	resp := serve(t, &fakeKeys{}, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}

func TestRequestIDIsKept(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "abc-123")
	resp := serve(t, &fakeKeys{}, req)
	assert.Equal(t, "abc-123", resp.Header.Get(headerRequestID))
}

func TestCountries(t *testing.T) {
	k := &fakeKeys{countries: []domain.Country{{ISO: 276, Code: "DE"}}}
	resp := serve(t, k, httptest.NewRequest(http.MethodGet, "/countries", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []domain.Country
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, k.countries, got)

	resp = serve(t, &fakeKeys{}, httptest.NewRequest(http.MethodGet, "/countries", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestReload(t *testing.T) {
	k := &fakeKeys{}
	resp := serve(t, k, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, k.reloads)

	k.reloadErr = errors.New("source unavailable")
	resp = serve(t, k, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestLookupNDJSON(t *testing.T) {
	k := &fakeKeys{batches: []lookup.Batch{de, fr}}
	req := httptest.NewRequest(http.MethodPost, "/lookup?country=DE&country=FR", strings.NewReader(exposureCSV))
	req.Header.Set("Content-Type", "text/csv")
	resp := serve(t, k, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	got := lines(t, resp)
	require.Len(t, got, 2)

	var r domain.Result
	require.NoError(t, json.Unmarshal([]byte(got[1]), &r))
	assert.Equal(t, fr.Results[0], r)
	assert.Empty(t, resp.Trailer.Get(trailerError))

	assert.Equal(t, "CountryCode", k.gotTable.Columns[0])
	assert.Equal(t, 1, k.gotOpts)
}

func TestLookupCSV(t *testing.T) {
	k := &fakeKeys{batches: []lookup.Batch{de}}
	req := httptest.NewRequest(http.MethodPost, "/lookup?format=csv", strings.NewReader(exposureCSV))
	resp := serve(t, k, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	got := lines(t, resp)
	assert.Equal(t, []string{strings.Join(domain.ResultColumns, ","), "1,QEQ,101,1,,1,11,1,1"}, got)
	assert.Equal(t, 0, k.gotOpts)
}

func TestLookupJSONInput(t *testing.T) {
	k := &fakeKeys{}
	body := `[{"CountryCode":"DE","BuildingTIV":1}]`
	req := httptest.NewRequest(http.MethodPost, "/lookup?input=json", strings.NewReader(body))
	resp := serve(t, k, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"BuildingTIV", "CountryCode"}, k.gotTable.Columns)
	assert.Empty(t, lines(t, resp))
}

func TestLookupFatalBeforeFirstBatch(t *testing.T) {
	k := &fakeKeys{batches: []lookup.Batch{de}, err: lookup.ErrMissingColumns}
	resp := serve(t, k, httptest.NewRequest(http.MethodPost, "/lookup", strings.NewReader(exposureCSV)))

	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "missing")
	assert.NotEmpty(t, body.RequestID)
}

func TestLookupNotLoaded(t *testing.T) {
	k := &fakeKeys{err: keys.ErrNotLoaded}
	resp := serve(t, k, httptest.NewRequest(http.MethodPost, "/lookup", strings.NewReader(exposureCSV)))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestLookupFatalMidStream(t *testing.T) {
	k := &fakeKeys{batches: []lookup.Batch{de, fr}, failAfter: 1, err: lookup.ErrNoLocationField}
	resp := serve(t, k, httptest.NewRequest(http.MethodPost, "/lookup", strings.NewReader(exposureCSV)))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := lines(t, resp)
	require.Len(t, got, 2)

	var tail errorBody
	require.NoError(t, json.Unmarshal([]byte(got[1]), &tail))
	assert.NotEmpty(t, tail.Error)
	assert.Equal(t, tail.Error, resp.Trailer.Get(trailerError))
}

func TestLookupCSVFatalMidStream(t *testing.T) {
	k := &fakeKeys{batches: []lookup.Batch{de, fr}, failAfter: 1, err: errors.New("country 250: no usable location field")}
	req := httptest.NewRequest(http.MethodPost, "/lookup?format=csv", strings.NewReader(exposureCSV))
	resp := serve(t, k, req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := lines(t, resp)
	assert.Equal(t, []string{strings.Join(domain.ResultColumns, ","), "1,QEQ,101,1,,1,11,1,1"}, got)
	assert.Equal(t, "country 250: no usable location field", resp.Trailer.Get(trailerError))
}

func TestLookupCSVFlushesEachCountry(t *testing.T) {
	k := &fakeKeys{batches: []lookup.Batch{de, fr}}
	req := httptest.NewRequest(http.MethodPost, "/lookup?format=csv", strings.NewReader(exposureCSV))
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	New(k, zap.NewNop(), 1<<20).Routes().ServeHTTP(rec, req)

	require.Len(t, rec.flushed, 2)
	assert.Equal(t, 2, strings.Count(rec.flushed[0], "\n"))
	assert.Equal(t, 3, strings.Count(rec.flushed[1], "\n"))
}

// flushRecorder snapshots the body each time the handler flushes.
type flushRecorder struct {
	*httptest.ResponseRecorder
	flushed []string
}

func (f *flushRecorder) Flush() {
	f.flushed = append(f.flushed, f.Body.String())
	f.ResponseRecorder.Flush()
}

func TestLookupBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"unknown output", "/lookup?format=xml", exposureCSV, http.StatusBadRequest},
		{"unknown input", "/lookup?input=parquet", exposureCSV, http.StatusBadRequest},
		{"empty body", "/lookup", "", http.StatusBadRequest},
		{"too large", "/lookup", strings.Repeat("x", 2<<20), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(t, &fakeKeys{}, httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
