package oapif

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// FeatureCollection is the GeoJSON items payload of an OGC API - Features server.
type FeatureCollection struct {
	Type           string    `json:"type"`
	NumberMatched  *int      `json:"numberMatched,omitempty"`
	NumberReturned *int      `json:"numberReturned,omitempty"`
	Features       []Feature `json:"features"`
	Links          []Link    `json:"links,omitempty"`
	TimeStamp      string    `json:"timeStamp,omitempty"`
}

// Feature is one GeoJSON feature. Geometry is kept raw.
type Feature struct {
	Type       string                 `json:"type"`
	ID         json.RawMessage        `json:"id,omitempty"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Link is an OGC API link object.
type Link struct {
	Href  string `json:"href"`
	Rel   string `json:"rel"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Next returns the rel=next link, if any.
func (fc *FeatureCollection) Next() (Link, bool) {
	for _, l := range fc.Links {
		if l.Rel == "next" {
			return l, true
		}
	}
	return Link{}, false
}

// Property returns a feature property as a string, empty when absent.
func (f Feature) Property(name string) string {
	v, ok := f.Properties[name]
	if !ok || v == nil {
		return ""
	}
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	default:
		b, _ := json.Marshal(tv)
		return string(b)
	}
}

// Format is the f= output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ItemsQuery holds the query parameters of an items request.
type ItemsQuery struct {
	Format Format
	// Limit is omitted when zero
	Limit  int
	Offset int
	// ResultTypeHits asks for numberMatched only
	ResultTypeHits bool
	// Properties are equality filters such as province__province=BC
	Properties map[string]string
	BBox       []float64
	// Datetime is an OGC interval such as "2000-01/2020-12"
	Datetime string
	Lang     string
	// SortBy is passed verbatim, e.g. "station_id__id_station,year"
	SortBy string
}

// Values encodes the query. Keys are sorted by url.Values.Encode.
func (q ItemsQuery) Values() url.Values {
	v := url.Values{}
	f := q.Format
	if f == "" {
		f = FormatJSON
	}
	v.Set("f", string(f))
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 || !q.ResultTypeHits {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.ResultTypeHits {
		v.Set("resulttype", "hits")
	}
	if len(q.BBox) == 4 {
		parts := make([]string, len(q.BBox))
		for i, c := range q.BBox {
			parts[i] = strconv.FormatFloat(c, 'f', -1, 64)
		}
		v.Set("bbox", strings.Join(parts, ","))
	}
	if q.Datetime != "" {
		v.Set("datetime", q.Datetime)
	}
	if q.Lang != "" {
		v.Set("lang", q.Lang)
	}
	if q.SortBy != "" {
		v.Set("sortby", q.SortBy)
	}

	keys := make([]string, 0, len(q.Properties))
	for k := range q.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, q.Properties[k])
	}
	return v
}
