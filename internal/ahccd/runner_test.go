package ahccd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/checks"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/metrics"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/oapif"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/poll"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves the ahccd collections with fixed counts.
type fakeAPI struct {
	mu       sync.Mutex
	matched  map[string]int // collection or collection/station -> numberMatched
	stations int
	requests []string

	// staleHits makes the first n hits queries report zero
	staleHits atomic.Int32
}

func newFakeAPI(t *testing.T) (*fakeAPI, *oapif.Client) {
	t.Helper()
	api := &fakeAPI{
		matched: map[string]int{
			"ahccd-trends":           87500,
			"ahccd-annual":           20888,
			"ahccd-seasonal/1108447": 464,
			"ahccd-seasonal/7025250": 464,
			"ahccd-seasonal/6158733": 464,
			"ahccd-monthly":          9300,
		},
		stations: 1350,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /collections/{collection}/items", api.items)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := oapif.NewClient(srv.URL)
	require.NoError(t, err)
	return api, client
}

func (a *fakeAPI) items(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	q := r.URL.Query()

	a.mu.Lock()
	a.requests = append(a.requests, collection+"?"+r.URL.RawQuery)
	a.mu.Unlock()

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
	if q.Get("f") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "x,y,station_id__id_station,province__province,year,trend_value__valeur_tendance\n-123.18,49.19,1108447,BC,2019,0.12\n")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if collection == "ahccd-stations" {
		features := make([]string, a.stations)
		for i := range features {
			features[i] = fmt.Sprintf(`{"type":"Feature","id":"%d","geometry":null,"properties":{}}`, i)
		}
		fmt.Fprintf(w, `{"type":"FeatureCollection","features":[%s]}`, strings.Join(features, ","))
		return
	}

	key := collection
	if station := q.Get(StationProperty); station != "" {
		key += "/" + station
	}
	n, ok := a.matched[key]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if q.Get("resulttype") == "hits" && a.staleHits.Add(-1) >= 0 {
		n = 0
	}
	fmt.Fprintf(w, `{"type":"FeatureCollection","numberMatched":%d,"numberReturned":0,"features":[]}`, n)
}

func (a *fakeAPI) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

func fastPoll(name string) poll.Config {
	return poll.Config{Name: name, Timeout: 200 * time.Millisecond, Interval: 10 * time.Millisecond}
}

func mustLookup(t *testing.T, name string) Scenario {
	t.Helper()
	s, ok := Lookup(name)
	require.True(t, ok, "scenario %s", name)
	return s
}

func TestRunAllScenariosPass(t *testing.T) {
	_, client := newFakeAPI(t)
	rec := checks.NewRecorder(nil, nil)
	runner := NewRunner(client, rec, fastPoll)

	require.NoError(t, runner.RunAll(t.Context(), Catalog()))
	require.NoError(t, rec.Err())

	passed, hardFailed, softFailed := rec.Summary()
	assert.Zero(t, hardFailed)
	// plain responses fail every content-encoding check
	assert.Equal(t, 5, softFailed)
	assert.Greater(t, passed, 5)
}

func TestRunSeasonalSumsStations(t *testing.T) {
	api, client := newFakeAPI(t)
	rec := checks.NewRecorder(nil, nil)
	runner := NewRunner(client, rec, fastPoll)

	require.NoError(t, runner.Run(t.Context(), mustLookup(t, "seasonal-stations")))

	var hits, downloads int
	for _, req := range api.seen() {
		require.Contains(t, req, "ahccd-seasonal?")
		assert.Contains(t, req, StationProperty+"=")
		if strings.Contains(req, "resulttype=hits") {
			hits++
		} else {
			assert.Contains(t, req, "limit=1")
			downloads++
		}
	}
	assert.Equal(t, 3, hits)
	assert.Equal(t, 3, downloads)
}

func TestRunSeasonalExactCountMismatch(t *testing.T) {
	api, client := newFakeAPI(t)
	api.matched["ahccd-seasonal/6158733"] = 463
	rec := checks.NewRecorder(nil, nil)
	runner := NewRunner(client, rec, fastPoll)

	err := runner.Run(t.Context(), mustLookup(t, "seasonal-stations"))
	require.Error(t, err)
	assert.ErrorIs(t, err, poll.ErrTimeout)
	assert.Contains(t, err.Error(), "numberMatched: expected == 1392, got 1391")
	assert.Error(t, rec.Err())
}

func TestRunRetriesUntilCountSettles(t *testing.T) {
	api, client := newFakeAPI(t)
	api.staleHits.Store(2)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	rec := checks.NewRecorder(nil, m.ObserveCheck)
	runner := NewRunner(client, rec, fastPoll, WithMetrics(m))

	require.NoError(t, runner.Run(t.Context(), mustLookup(t, "trends-csv")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollAttempts.WithLabelValues("trends-csv/count", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollAttempts.WithLabelValues("trends-csv/count", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollOutcomes.WithLabelValues("trends-csv/count", "resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckResults.WithLabelValues("trends-csv", "csv header", "hard", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckResults.WithLabelValues("trends-csv", "download content-encoding", "soft", "fail")))
}

func TestRunStationsLayerTooSmall(t *testing.T) {
	api, client := newFakeAPI(t)
	api.stations = 12
	rec := checks.NewRecorder(nil, nil)
	runner := NewRunner(client, rec, fastPoll)

	err := runner.Run(t.Context(), mustLookup(t, "stations"))
	require.Error(t, err)
	var timeout *poll.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, poll.DefaultErrorMessage, timeout.Message)
	assert.EqualError(t, timeout.Cause, "features: expected > 1300, got 12")

	results := rec.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "features", results[0].Name)
	assert.Equal(t, checks.Hard, results[0].Severity)
}

func TestRunAllContinuesAfterFailure(t *testing.T) {
	api, client := newFakeAPI(t)
	delete(api.matched, "ahccd-annual")
	rec := checks.NewRecorder(nil, nil)
	runner := NewRunner(client, rec, fastPoll)

	scenarios, err := Select([]string{"annual-province", "monthly-bbox"}, nil)
	require.NoError(t, err)

	err = runner.RunAll(t.Context(), scenarios)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario annual-province")
	assert.NotContains(t, err.Error(), "scenario monthly-bbox")

	var monthly int
	for _, r := range rec.Results() {
		if r.Scenario == "monthly-bbox" {
			monthly++
			assert.True(t, r.Passed() || r.Severity == checks.Soft)
		}
	}
	assert.Positive(t, monthly)
}

func TestRunCanceled(t *testing.T) {
	_, client := newFakeAPI(t)
	rec := checks.NewRecorder(nil, nil)
	runner := NewRunner(client, rec, fastPoll)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := runner.RunAll(ctx, Catalog())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Results())
}

func TestRunMonthlyUsesBBoxAndDates(t *testing.T) {
	api, client := newFakeAPI(t)
	runner := NewRunner(client, checks.NewRecorder(nil, nil), fastPoll)

	require.NoError(t, runner.Run(t.Context(), mustLookup(t, "monthly-bbox")))
	for _, req := range api.seen() {
		assert.Contains(t, req, "bbox=-80%2C43%2C-72%2C47")
		assert.Contains(t, req, "datetime=2000-01%2F2020-12")
	}
}
