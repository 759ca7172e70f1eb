package helpers

import (
	"fmt"
	"regexp"
	"time"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/ahccd"
	"github.com/playwright-community/playwright-go"
)

// Selectors of the adjusted station data page.
const (
	SelMapFiltersHeader   = "#map-filters-header"
	SelValueType          = "select#var-sel-value-type--time-interval"
	SelDownloadFormat     = "select#vector_download_format"
	SelProvince           = "select#cccs_province"
	SelDateRange          = "#date-range-field"
	SelDateStart          = "input#date-start-date"
	SelDateEnd            = "input#date-end-date"
	SelRetrieveLinks      = "#retrieve-download-links"
	SelRecordCount        = "#num-records-oapif-download"
	SelLinkList           = "#oapif-link-list"
	SelResetMap           = "#reset-map-view"
	SelClearStations      = "#clear-selected-stations"
	SelShowSelected       = "button#show-selected-stations"
	SelMapLoading         = "#map-loading-screen"
	SelZoomIn             = "a.leaflet-control-zoom-in"
	SelStationTable       = "table#station-select-table"
	SelSelectableStations = SelStationTable + " tr.selectableStation"
	SelSelectedStations   = SelStationTable + " tr.selectedStation"
	SelMarkerClusters     = ".leaflet-marker-icon.marker-cluster"
)

// scrollPause lets scroll-triggered layout settle before clicking.
const scrollPause = 250 * time.Millisecond

var recordCountText = regexp.MustCompile(`Total number of records: \d+`)

// ScrollClick scrolls the first match of selector into view and clicks it.
func ScrollClick(page playwright.Page, selector string, force ...bool) error {
	loc := page.Locator(selector).First()
	if err := loc.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("failed to scroll to %s: %w", selector, err)
	}
	time.Sleep(scrollPause)

	opts := playwright.LocatorClickOptions{}
	if len(force) > 0 && force[0] {
		opts.Force = playwright.Bool(true)
	}
	if err := loc.Click(opts); err != nil {
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// SelectVar picks the option with the given label and checks that the select
// then holds the expected value.
func SelectVar(page playwright.Page, selector string, opt ahccd.Option) error {
	loc := page.Locator(selector)
	if _, err := loc.SelectOption(playwright.SelectOptionValues{Labels: &[]string{opt.Label}}); err != nil {
		return fmt.Errorf("failed to select %q in %s: %w", opt.Label, selector, err)
	}
	got, err := loc.InputValue()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", selector, err)
	}
	if got != opt.Value {
		return fmt.Errorf("%s: selected %q but value is %q, want %q", selector, opt.Label, got, opt.Value)
	}
	return nil
}

// InputText replaces the content of an input and presses Enter.
func InputText(page playwright.Page, selector, text string) error {
	loc := page.Locator(selector)
	if err := loc.Fill(text); err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	if err := loc.Press("Enter"); err != nil {
		return fmt.Errorf("failed to submit %s: %w", selector, err)
	}
	return nil
}

// CheckMarkerClusters fails unless at least n marker clusters are on the map.
func CheckMarkerClusters(page playwright.Page, n int) error {
	count, err := page.Locator(SelMarkerClusters).Count()
	if err != nil {
		return fmt.Errorf("failed to count marker clusters: %w", err)
	}
	if count < n {
		return fmt.Errorf("expected at least %d marker clusters, got %d", n, count)
	}
	return nil
}

// SelectableStationCount counts the rows of the station table that can be selected.
func SelectableStationCount(page playwright.Page) (int, error) {
	if err := page.Locator(SelStationTable).ScrollIntoViewIfNeeded(); err != nil {
		return 0, fmt.Errorf("failed to scroll to station table: %w", err)
	}
	time.Sleep(scrollPause)
	return page.Locator(SelSelectableStations).Count()
}

// SelectStation clicks the first selectable station row containing id.
func SelectStation(page playwright.Page, id string) error {
	row := page.Locator(SelStationTable + " tr.selectable").
		Filter(playwright.LocatorFilterOptions{HasText: id}).
		First()
	if err := row.Click(); err != nil {
		return fmt.Errorf("failed to select station %s: %w", id, err)
	}
	return nil
}

// WaitHidden waits until selector is hidden or detached.
func WaitHidden(page playwright.Page, selector string) error {
	return page.Locator(selector).WaitFor(playwright.LocatorWaitForOptions{
		State: playwright.WaitForSelectorStateHidden,
	})
}

// WaitRecordCount waits for the "Total number of records" line of the download panel.
func WaitRecordCount(page playwright.Page) error {
	loc := page.Locator(SelRecordCount).Filter(playwright.LocatorFilterOptions{HasText: recordCountText})
	if err := loc.WaitFor(playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}); err != nil {
		return fmt.Errorf("record count not shown: %w", err)
	}
	return nil
}

// DownloadHref returns the href of the first download link once the list is visible.
func DownloadHref(page playwright.Page) (string, error) {
	list := page.Locator(SelLinkList)
	if err := list.ScrollIntoViewIfNeeded(); err != nil {
		return "", fmt.Errorf("failed to scroll to download links: %w", err)
	}
	time.Sleep(scrollPause)
	if err := list.WaitFor(playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateVisible}); err != nil {
		return "", fmt.Errorf("download links not shown: %w", err)
	}

	href, err := page.Locator(SelLinkList + " a").First().GetAttribute("href")
	if err != nil {
		return "", fmt.Errorf("failed to read download link: %w", err)
	}
	if href == "" {
		return "", fmt.Errorf("first download link has no href")
	}
	return href, nil
}
