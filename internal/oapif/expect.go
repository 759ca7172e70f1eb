package oapif

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Op is the comparison of a Threshold.
type Op int

const (
	OpAbove Op = iota
	OpBelow
	OpExactly
)

// Threshold bounds a count such as numberMatched.
type Threshold struct {
	Op    Op
	Value int
}

func Above(n int) Threshold   { return Threshold{Op: OpAbove, Value: n} }
func Below(n int) Threshold   { return Threshold{Op: OpBelow, Value: n} }
func Exactly(n int) Threshold { return Threshold{Op: OpExactly, Value: n} }

func (t Threshold) String() string {
	switch t.Op {
	case OpAbove:
		return "> " + strconv.Itoa(t.Value)
	case OpBelow:
		return "< " + strconv.Itoa(t.Value)
	default:
		return "== " + strconv.Itoa(t.Value)
	}
}

// Check returns an error when got falls outside the threshold.
func (t Threshold) Check(got int) error {
	var ok bool
	switch t.Op {
	case OpAbove:
		ok = got > t.Value
	case OpBelow:
		ok = got < t.Value
	default:
		ok = got == t.Value
	}
	if !ok {
		return fmt.Errorf("expected %s, got %d", t, got)
	}
	return nil
}

// WithValue returns t with its bound replaced.
func (t Threshold) WithValue(n int) Threshold {
	t.Value = n
	return t
}

// ExpectStatus checks the HTTP status code.
func ExpectStatus(r *Response, want int) error {
	if r.StatusCode != want {
		return fmt.Errorf("expected status %d from %s, got %d", want, r.URL, r.StatusCode)
	}
	return nil
}

// ExpectMethod checks the request method of an intercepted exchange.
func ExpectMethod(r *Response, want string) error {
	if !strings.EqualFold(r.Method, want) {
		return fmt.Errorf("expected %s request to %s, got %s", want, r.URL, r.Method)
	}
	return nil
}

// ExpectCORSHeaders requires the access-control-allow-headers and
// access-control-allow-origin response headers.
func ExpectCORSHeaders(h http.Header) error {
	var missing []string
	for _, name := range []string{"Access-Control-Allow-Headers", "Access-Control-Allow-Origin"} {
		if _, ok := h[http.CanonicalHeaderKey(name)]; !ok {
			missing = append(missing, strings.ToLower(name))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("response headers missing %s", strings.Join(missing, ", "))
	}
	return nil
}

var gzipPattern = regexp.MustCompile(`(?i)gzip`)

// ErrNoContentEncoding is returned by ExpectGzip when the header is absent.
var ErrNoContentEncoding = errors.New("content-encoding does not exist in response header")

// ExpectGzip checks that the response was gzip encoded. Callers record it as a
// soft check.
func ExpectGzip(r *Response) error {
	if r.ContentEncoding == "" {
		return ErrNoContentEncoding
	}
	if !gzipPattern.MatchString(r.ContentEncoding) {
		return fmt.Errorf("content-encoding %q does not match gzip", r.ContentEncoding)
	}
	return nil
}

// ExpectFeatureCollection checks the GeoJSON type member.
func ExpectFeatureCollection(fc *FeatureCollection) error {
	if fc.Type == "" {
		return fmt.Errorf("body has no type property")
	}
	if fc.Type != "FeatureCollection" {
		return fmt.Errorf("expected type FeatureCollection, got %q", fc.Type)
	}
	return nil
}

// ExpectFeatureCount checks len(features).
func ExpectFeatureCount(fc *FeatureCollection, t Threshold) error {
	if err := t.Check(len(fc.Features)); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	return nil
}

// ExpectNumberMatched checks the server-reported total.
func ExpectNumberMatched(fc *FeatureCollection, t Threshold) error {
	if fc.NumberMatched == nil {
		return fmt.Errorf("body has no numberMatched property")
	}
	if err := t.Check(*fc.NumberMatched); err != nil {
		return fmt.Errorf("numberMatched: %w", err)
	}
	return nil
}

// ExpectCSVHeader matches the first line of a CSV body against pattern.
func ExpectCSVHeader(r *Response, pattern *regexp.Regexp) error {
	if _, err := r.CSVHeader(); err != nil {
		return err
	}
	line := r.FirstLine()
	if !pattern.MatchString(line) {
		return fmt.Errorf("CSV header %q does not match %s", line, pattern)
	}
	return nil
}

var limitPattern = regexp.MustCompile(`[?&]limit=\d+`)

// LimitLink rewrites the first limit parameter of a download link to n,
// appending it when absent. The rest of the query is left as written.
func LimitLink(href string, n int) (string, error) {
	if loc := limitPattern.FindStringIndex(href); loc != nil {
		// keep the leading ? or &
		return href[:loc[0]+1] + "limit=" + strconv.Itoa(n) + href[loc[1]:], nil
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += "limit=" + strconv.Itoa(n)
	return u.String(), nil
}
