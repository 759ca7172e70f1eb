// Package ahccd describes the Adjusted and Homogenized Canadian Climate Data
// (AHCCD) download scenarios of the climate data portal and runs them against
// the OGC API.
//
// A Scenario carries both halves of a check: the API queries and thresholds used
// by Runner, and the form selections the browser suite makes before it waits for
// the same requests on the page.
package ahccd

import (
	"fmt"
	"regexp"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/config"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/oapif"
)

const (
	StationProperty  = "station_id__id_station"
	ProvinceProperty = "province__province"
)

// Option is one <option> of a form select: its visible label and its value.
type Option struct {
	Label string
	Value string
}

// Scenario is one AHCCD download check.
type Scenario struct {
	Name        string
	Description string
	Collection  string

	// Filter holds the properties, bbox and datetime shared by count and
	// download queries.
	Filter oapif.ItemsQuery

	// Stations are queried one by one and their counts summed.
	Stations []string

	// Features bounds the number of features of a plain layer fetch.
	Features *oapif.Threshold

	// Count bounds numberMatched of the resulttype=hits query.
	Count *oapif.Threshold

	Download *Download
	UI       UI
}

// Download checks the first download link, fetched with limit=1.
type Download struct {
	Format oapif.Format

	// NumberMatched bounds numberMatched of a GeoJSON download.
	NumberMatched *oapif.Threshold

	// Header must match the first line of a CSV download.
	Header *regexp.Regexp
}

// UI holds what the browser suite selects and observes on the page.
type UI struct {
	// Intercept matches the request the page issues for the scenario.
	Intercept *regexp.Regexp

	ValueType Option
	Format    Option
	Province  Option

	// DateStart and DateEnd are typed into the date range inputs.
	DateStart string
	DateEnd   string

	// ZoomIn is the number of zoom-in clicks before counting stations.
	ZoomIn int

	MarkerClusters     int
	SelectableStations *oapif.Threshold
}

func threshold(t oapif.Threshold) *oapif.Threshold { return &t }

var trendsHeader = regexp.MustCompile(`^x,y,.*station_id__id_station.*province__province.*year.*trend_value__valeur_tendance.*`)

// catalog lists the scenarios in the order the browser suite runs them.
var catalog = []Scenario{
	{
		Name:        "stations",
		Description: "AHCCD station layer",
		Collection:  "ahccd-stations",
		Filter:      oapif.ItemsQuery{Limit: 10000},
		Features:    threshold(oapif.Above(1300)),
		UI: UI{
			Intercept:      regexp.MustCompile(`.*/collections/ahccd-stations/items\?.*f=json.*offset=0.*`),
			MarkerClusters: 10,
		},
	},
	{
		Name:        "trends-csv",
		Description: "Download trend values as CSV",
		Collection:  "ahccd-trends",
		Count:       threshold(oapif.Above(87000)),
		Download:    &Download{Format: oapif.FormatCSV, Header: trendsHeader},
		UI: UI{
			Intercept: regexp.MustCompile(`.*/collections/ahccd-trends/items.*`),
			ValueType: Option{Label: "Trend values", Value: "ahccd-trends"},
			Format:    Option{Label: "CSV", Value: "csv"},
		},
	},
	{
		Name:        "annual-province",
		Description: "Download annual values as GeoJSON by province",
		Collection:  "ahccd-annual",
		Filter: oapif.ItemsQuery{
			Properties: map[string]string{ProvinceProperty: "BC"},
		},
		Count: threshold(oapif.Above(20700)),
		Download: &Download{
			Format:        oapif.FormatJSON,
			NumberMatched: threshold(oapif.Above(20700)),
		},
		UI: UI{
			Intercept:          regexp.MustCompile(`.*/collections/ahccd-annual/items\?.*province__province=BC.*resulttype=hits.*f=json.*`),
			ValueType:          Option{Label: "Annual values", Value: "ahccd-annual"},
			Format:             Option{Label: "GeoJSON", Value: "geojson"},
			Province:           Option{Label: "British Columbia", Value: "BC"},
			SelectableStations: threshold(oapif.Above(240)),
		},
	},
	{
		Name:        "seasonal-stations",
		Description: "Download seasonal values as GeoJSON by a select few stations",
		Collection:  "ahccd-seasonal",
		// Vancouver, Montreal and Toronto airports
		Stations: []string{"1108447", "7025250", "6158733"},
		Count:    threshold(oapif.Exactly(1392)),
		Download: &Download{
			Format:        oapif.FormatJSON,
			NumberMatched: threshold(oapif.Above(1390)),
		},
		UI: UI{
			Intercept: regexp.MustCompile(`.*/collections/ahccd-seasonal/items.*`),
			ValueType: Option{Label: "Seasonal values", Value: "ahccd-seasonal"},
			Format:    Option{Label: "GeoJSON", Value: "geojson"},
			Province:  Option{Label: "-- None --", Value: "null"},
		},
	},
	{
		Name:        "monthly-bbox",
		Description: "Download monthly values as GeoJSON by a zoomed bbox and date range",
		Collection:  "ahccd-monthly",
		Filter: oapif.ItemsQuery{
			BBox:     []float64{-80, 43, -72, 47},
			Datetime: "2000-01/2020-12",
		},
		Count: threshold(oapif.Above(9200)),
		Download: &Download{
			Format:        oapif.FormatJSON,
			NumberMatched: threshold(oapif.Above(9200)),
		},
		UI: UI{
			Intercept:          regexp.MustCompile(`.*/collections/ahccd-monthly/items.*`),
			ValueType:          Option{Label: "Monthly values", Value: "ahccd-monthly"},
			Format:             Option{Label: "GeoJSON", Value: "geojson"},
			DateStart:          "2000-01",
			DateEnd:            "2020-12",
			ZoomIn:             2,
			SelectableStations: threshold(oapif.Below(50)),
		},
	},
}

// Catalog returns a copy of all scenarios.
func Catalog() []Scenario {
	out := make([]Scenario, len(catalog))
	for i, s := range catalog {
		out[i] = s.clone()
	}
	return out
}

// Lookup returns the named scenario.
func Lookup(name string) (Scenario, bool) {
	for _, s := range catalog {
		if s.Name == name {
			return s.clone(), true
		}
	}
	return Scenario{}, false
}

// Select returns the named scenarios with overrides applied, in the given order.
// No names selects the whole catalog. Skipped scenarios are left out.
func Select(names []string, overrides map[string]config.ScenarioOverride) ([]Scenario, error) {
	var picked []Scenario
	if len(names) == 0 {
		picked = Catalog()
	} else {
		for _, name := range names {
			s, ok := Lookup(name)
			if !ok {
				return nil, fmt.Errorf("unknown scenario %q", name)
			}
			picked = append(picked, s)
		}
	}

	out := picked[:0]
	for _, s := range picked {
		o, ok := overrides[s.Name]
		if !ok {
			out = append(out, s)
			continue
		}
		if o.Skip {
			continue
		}
		out = append(out, s.Apply(o))
	}
	return out, nil
}

// Apply returns s adjusted by o. Threshold replaces the Count bound, or the
// Features bound of a scenario without a count query.
func (s Scenario) Apply(o config.ScenarioOverride) Scenario {
	s = s.clone()
	if o.Threshold != nil {
		switch {
		case s.Count != nil:
			s.Count = threshold(s.Count.WithValue(*o.Threshold))
		case s.Features != nil:
			s.Features = threshold(s.Features.WithValue(*o.Threshold))
		}
	}
	if len(o.BBox) == 4 {
		s.Filter.BBox = append([]float64(nil), o.BBox...)
	}
	return s
}

func (s Scenario) clone() Scenario {
	if s.Filter.Properties != nil {
		props := make(map[string]string, len(s.Filter.Properties))
		for k, v := range s.Filter.Properties {
			props[k] = v
		}
		s.Filter.Properties = props
	}
	s.Filter.BBox = append([]float64(nil), s.Filter.BBox...)
	s.Stations = append([]string(nil), s.Stations...)
	s.Features = cloneThreshold(s.Features)
	s.Count = cloneThreshold(s.Count)
	s.UI.SelectableStations = cloneThreshold(s.UI.SelectableStations)
	if s.Download != nil {
		d := *s.Download
		d.NumberMatched = cloneThreshold(d.NumberMatched)
		s.Download = &d
	}
	return s
}

func cloneThreshold(t *oapif.Threshold) *oapif.Threshold {
	if t == nil {
		return nil
	}
	return threshold(*t)
}
