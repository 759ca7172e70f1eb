package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/ahccd"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/checks"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/oapif"
	"github.com/JustAProjectacc/climate-data-extraction-tool/tests/e2e/helpers"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stationDataRoute = "/adjusted-station-data"

type AHCCDStage struct {
	t           *testing.T
	require     *require.Assertions
	assert      *assert.Assertions
	testCtx     *helpers.TestContext
	browserTest *helpers.BrowserTest
	checks      *checks.Recorder

	scenario  ahccd.Scenario
	intercept *helpers.Intercept
	href      string
}

func NewAHCCDStage(t *testing.T) (*AHCCDStage, *AHCCDStage, *AHCCDStage) {
	s := &AHCCDStage{
		t:       t,
		require: require.New(t),
		assert:  assert.New(t),
		checks:  checks.NewRecorder(logging.GetLogger("tests.e2e.ahccd"), nil),
	}
	return s, s, s
}

func (s *AHCCDStage) and() *AHCCDStage {
	return s
}

func (s *AHCCDStage) page() playwright.Page {
	return s.browserTest.Page
}

// probe polls fn with the configured poll settings, failing the test on timeout.
func probe[T any](s *AHCCDStage, name string, fn func(ctx context.Context) (T, error)) T {
	s.t.Helper()
	cfg := s.testCtx.Config.PollConfig(s.scenario.Name + "/" + name)
	return helpers.WaitUntil(s.t, fn, cfg)
}

func (s *AHCCDStage) a_test_environment() *AHCCDStage {
	s.testCtx = helpers.SetupE2ETest(s.t)
	helpers.EnsurePlaywrightInstalled(s.t)
	return s
}

func (s *AHCCDStage) browser_is_initialized() *AHCCDStage {
	bt, err := helpers.NewBrowserTest(s.t, s.testCtx.Config.Browser)
	s.require.NoError(err, "failed to create browser test")
	s.browserTest = bt
	s.t.Cleanup(func() {
		if s.t.Failed() {
			bt.CaptureDebugInfo(s.testCtx.Config.Browser.DebugDir, "test_failed")
		}
		if err := bt.Close(); err != nil {
			s.t.Logf("Warning: failed to close browser: %v", err)
		}
	})
	return s
}

func (s *AHCCDStage) scenario_is(name string) *AHCCDStage {
	selected, err := ahccd.Select([]string{name}, s.testCtx.Config.Scenarios)
	s.require.NoError(err)
	if len(selected) == 0 {
		s.t.Skipf("Scenario %s is skipped by config", name)
	}
	s.scenario = selected[0]
	return s
}

func (s *AHCCDStage) requests_are_intercepted() *AHCCDStage {
	if s.intercept != nil {
		s.intercept.Stop()
	}
	ic := helpers.NewIntercept(s.page(), s.scenario.UI.Intercept)
	s.intercept = ic
	s.t.Cleanup(ic.Stop)
	return s
}

func (s *AHCCDStage) station_data_page_is_opened() *AHCCDStage {
	target, err := helpers.PageURL(s.testCtx.Config.UIURL, stationDataRoute)
	s.require.NoError(err)
	_, err = s.page().Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	s.require.NoError(err, "failed to open %s", target)
	return s
}

func (s *AHCCDStage) map_filters_are_opened() *AHCCDStage {
	s.require.NoError(helpers.ScrollClick(s.page(), helpers.SelMapFiltersHeader))
	return s
}

func (s *AHCCDStage) map_is_reset() *AHCCDStage {
	s.require.NoError(helpers.ScrollClick(s.page(), helpers.SelResetMap))
	return s
}

func (s *AHCCDStage) station_selection_is_cleared() *AHCCDStage {
	s.require.NoError(helpers.ScrollClick(s.page(), helpers.SelClearStations, true))
	return s
}

func (s *AHCCDStage) map_has_loaded() *AHCCDStage {
	s.require.NoError(helpers.WaitHidden(s.page(), helpers.SelMapLoading))
	return s
}

func (s *AHCCDStage) map_is_zoomed_in() *AHCCDStage {
	for i := 0; i < s.scenario.UI.ZoomIn; i++ {
		s.require.NoError(helpers.ScrollClick(s.page(), helpers.SelZoomIn))
		// user pause after a zoom click
		time.Sleep(500 * time.Millisecond)
	}
	return s
}

func (s *AHCCDStage) province_is_selected() *AHCCDStage {
	s.require.NoError(helpers.SelectVar(s.page(), helpers.SelProvince, s.scenario.UI.Province))
	return s
}

func (s *AHCCDStage) province_is_cleared() *AHCCDStage {
	s.require.NoError(helpers.SelectVar(s.page(), helpers.SelProvince, ahccd.Option{Label: "-- None --", Value: "null"}))
	return s
}

func (s *AHCCDStage) value_type_is_selected() *AHCCDStage {
	s.require.NoError(helpers.SelectVar(s.page(), helpers.SelValueType, s.scenario.UI.ValueType))
	return s
}

func (s *AHCCDStage) download_format_is_selected() *AHCCDStage {
	s.require.NoError(helpers.SelectVar(s.page(), helpers.SelDownloadFormat, s.scenario.UI.Format))
	return s
}

func (s *AHCCDStage) date_range_is_set() *AHCCDStage {
	s.require.NoError(helpers.InputText(s.page(), helpers.SelDateStart, s.scenario.UI.DateStart))
	s.require.NoError(helpers.InputText(s.page(), helpers.SelDateEnd, s.scenario.UI.DateEnd))
	return s
}

func (s *AHCCDStage) stations_are_selected() *AHCCDStage {
	s.require.NoError(s.page().Locator(helpers.SelStationTable).ScrollIntoViewIfNeeded())
	for _, id := range s.scenario.Stations {
		s.require.NoError(helpers.SelectStation(s.page(), id))
	}
	s.require.NoError(s.page().Locator(helpers.SelShowSelected).Click())
	return s
}

func (s *AHCCDStage) download_links_are_retrieved() *AHCCDStage {
	s.require.NoError(helpers.ScrollClick(s.page(), helpers.SelRetrieveLinks))
	return s
}

// nextResponse waits one poll interval for the next intercepted response.
func (s *AHCCDStage) nextResponse(ctx context.Context) (*oapif.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.testCtx.Config.Poll.Interval)
	defer cancel()
	return s.intercept.Wait(ctx)
}

func (s *AHCCDStage) station_layer_is_loaded() *AHCCDStage {
	resp := probe(s, "features", func(ctx context.Context) (*oapif.Response, error) {
		resp, err := s.nextResponse(ctx)
		if err != nil {
			return nil, err
		}
		if err := oapif.ExpectCORSHeaders(resp.Header); err != nil {
			return nil, err
		}
		fc, err := resp.FeatureCollection()
		if err != nil {
			return nil, err
		}
		if err := oapif.ExpectFeatureCollection(fc); err != nil {
			return nil, err
		}
		return resp, oapif.ExpectFeatureCount(fc, *s.scenario.Features)
	})
	s.checks.Scenario(s.scenario.Name).Soft("content-encoding", oapif.ExpectGzip(resp))
	return s
}

func (s *AHCCDStage) marker_clusters_are_shown() *AHCCDStage {
	probe(s, "marker clusters", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, helpers.CheckMarkerClusters(s.page(), s.scenario.UI.MarkerClusters)
	})
	return s
}

func (s *AHCCDStage) date_range_is_hidden() *AHCCDStage {
	s.require.NoError(helpers.WaitHidden(s.page(), helpers.SelDateRange))
	return s
}

func (s *AHCCDStage) selectable_station_count_matches() *AHCCDStage {
	want := s.scenario.UI.SelectableStations
	s.require.NotNil(want, "scenario %s has no station count", s.scenario.Name)
	probe(s, "selectable stations", func(ctx context.Context) (int, error) {
		n, err := helpers.SelectableStationCount(s.page())
		if err != nil {
			return 0, err
		}
		return n, want.Check(n)
	})
	return s
}

func (s *AHCCDStage) selected_station_count_is(n int) *AHCCDStage {
	probe(s, "selected stations", func(ctx context.Context) (int, error) {
		got, err := s.page().Locator(helpers.SelSelectedStations).Count()
		if err != nil {
			return 0, err
		}
		return got, oapif.Exactly(n).Check(got)
	})
	return s
}

func (s *AHCCDStage) count_response_matches() *AHCCDStage {
	probe(s, "count", func(ctx context.Context) (*oapif.FeatureCollection, error) {
		resp, err := s.nextResponse(ctx)
		if err != nil {
			return nil, err
		}
		if err := oapif.ExpectMethod(resp, http.MethodGet); err != nil {
			return nil, err
		}
		fc, err := resp.FeatureCollection()
		if err != nil {
			return nil, err
		}
		if err := oapif.ExpectFeatureCollection(fc); err != nil {
			return nil, err
		}
		return fc, oapif.ExpectNumberMatched(fc, *s.scenario.Count)
	})
	return s
}

func (s *AHCCDStage) record_count_is_shown() *AHCCDStage {
	s.require.NoError(helpers.WaitRecordCount(s.page()))
	return s
}

func (s *AHCCDStage) download_link_is_limited_to_one() *AHCCDStage {
	href, err := helpers.DownloadHref(s.page())
	s.require.NoError(err)
	s.href, err = oapif.LimitLink(href, 1)
	s.require.NoError(err)
	s.t.Logf("Following download link %s", s.href)
	return s
}

func (s *AHCCDStage) fetch_download() *oapif.Response {
	s.require.NotEmpty(s.href, "no download link captured")
	resp, err := s.testCtx.APIClient.Get(s.t.Context(), s.href)
	s.require.NoError(err)
	s.require.NoError(oapif.ExpectStatus(resp, http.StatusOK))
	return resp
}

func (s *AHCCDStage) csv_download_matches() *AHCCDStage {
	resp := s.fetch_download()
	s.checks.Scenario(s.scenario.Name).Soft("download content-encoding", oapif.ExpectGzip(resp))
	s.require.NotNil(s.scenario.Download)
	s.require.NoError(oapif.ExpectCSVHeader(resp, s.scenario.Download.Header))
	return s
}

func (s *AHCCDStage) geojson_download_matches() *AHCCDStage {
	resp := s.fetch_download()
	fc, err := resp.FeatureCollection()
	s.require.NoError(err)
	s.require.NotNil(s.scenario.Download)
	s.require.NoError(oapif.ExpectNumberMatched(fc, *s.scenario.Download.NumberMatched))
	return s
}
