package oapif

import (
	"net/http"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestThreshold(t *testing.T) {
	tests := []struct {
		th   Threshold
		got  int
		pass bool
	}{
		{Above(87000), 87001, true},
		{Above(87000), 87000, false},
		{Below(50), 49, true},
		{Below(50), 50, false},
		{Exactly(1392), 1392, true},
		{Exactly(1392), 1391, false},
	}
	for _, tt := range tests {
		err := tt.th.Check(tt.got)
		if tt.pass {
			assert.NoError(t, err, "%s with %d", tt.th, tt.got)
		} else {
			assert.Error(t, err, "%s with %d", tt.th, tt.got)
		}
	}

	assert.EqualError(t, Above(1300).Check(12), "expected > 1300, got 12")
	assert.Equal(t, Above(5), Above(1).WithValue(5))
}

func TestExpectFeatureCollection(t *testing.T) {
	assert.NoError(t, ExpectFeatureCollection(&FeatureCollection{Type: "FeatureCollection"}))
	assert.EqualError(t, ExpectFeatureCollection(&FeatureCollection{}), "body has no type property")
	assert.Error(t, ExpectFeatureCollection(&FeatureCollection{Type: "Feature"}))
}

func TestExpectNumberMatched(t *testing.T) {
	assert.EqualError(t, ExpectNumberMatched(&FeatureCollection{}, Above(1)), "body has no numberMatched property")
	assert.NoError(t, ExpectNumberMatched(&FeatureCollection{NumberMatched: intPtr(1392)}, Exactly(1392)))
	assert.EqualError(t,
		ExpectNumberMatched(&FeatureCollection{NumberMatched: intPtr(9000)}, Above(9200)),
		"numberMatched: expected > 9200, got 9000")
}

func TestExpectFeatureCount(t *testing.T) {
	fc := &FeatureCollection{Features: make([]Feature, 3)}
	assert.NoError(t, ExpectFeatureCount(fc, Above(2)))
	assert.EqualError(t, ExpectFeatureCount(fc, Above(1300)), "features: expected > 1300, got 3")
}

func TestExpectCORSHeaders(t *testing.T) {
	h := http.Header{}
	assert.EqualError(t, ExpectCORSHeaders(h),
		"response headers missing access-control-allow-headers, access-control-allow-origin")

	h.Set("access-control-allow-origin", "*")
	assert.EqualError(t, ExpectCORSHeaders(h), "response headers missing access-control-allow-headers")

	h.Set("Access-Control-Allow-Headers", "")
	assert.NoError(t, ExpectCORSHeaders(h))
}

func TestExpectGzip(t *testing.T) {
	assert.NoError(t, ExpectGzip(&Response{ContentEncoding: "GZIP"}))
	assert.ErrorIs(t, ExpectGzip(&Response{}), ErrNoContentEncoding)
	assert.Error(t, ExpectGzip(&Response{ContentEncoding: "br"}))
}

func TestExpectMethod(t *testing.T) {
	assert.NoError(t, ExpectMethod(&Response{Method: "get"}, http.MethodGet))
	assert.Error(t, ExpectMethod(&Response{Method: http.MethodPost}, http.MethodGet))
}

func TestExpectCSVHeader(t *testing.T) {
	pattern := regexp.MustCompile(`^x,y,.*year`)
	assert.NoError(t, ExpectCSVHeader(&Response{Body: []byte("x,y,year\r\n1,2,3\r\n")}, pattern))
	assert.Error(t, ExpectCSVHeader(&Response{Body: []byte("lat,lon,year\n")}, pattern))
	assert.Error(t, ExpectCSVHeader(&Response{Body: nil}, pattern))
}

func TestLimitLink(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{
			name: "replaces existing limit",
			href: "https://api.weather.gc.ca/collections/ahccd-trends/items?f=csv&limit=150000&offset=0",
			want: "https://api.weather.gc.ca/collections/ahccd-trends/items?f=csv&limit=1&offset=0",
		},
		{
			name: "adds missing limit",
			href: "https://api.weather.gc.ca/collections/ahccd-annual/items?f=json",
			want: "https://api.weather.gc.ca/collections/ahccd-annual/items?f=json&limit=1",
		},
		{
			name: "adds limit without reordering the query",
			href: "https://api.weather.gc.ca/collections/ahccd-monthly/items?f=json&bbox=-80,43,-72,47&datetime=2000-01/2020-12",
			want: "https://api.weather.gc.ca/collections/ahccd-monthly/items?f=json&bbox=-80,43,-72,47&datetime=2000-01/2020-12&limit=1",
		},
		{
			name: "adds limit to a link without a query",
			href: "https://api.weather.gc.ca/collections/ahccd-annual/items",
			want: "https://api.weather.gc.ca/collections/ahccd-annual/items?limit=1",
		},
		{
			name: "ignores keys ending in limit",
			href: "https://api.weather.gc.ca/collections/ahccd-trends/items?xlimit=5&f=csv",
			want: "https://api.weather.gc.ca/collections/ahccd-trends/items?xlimit=5&f=csv&limit=1",
		},
		{
			name: "replaces only the first limit",
			href: "https://api.weather.gc.ca/collections/ahccd-seasonal/items?limit=500&f=json&limit=10",
			want: "https://api.weather.gc.ca/collections/ahccd-seasonal/items?limit=1&f=json&limit=10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LimitLink(tt.href, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
