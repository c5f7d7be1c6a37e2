package dataset

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/twpayne/go-geom"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// metropoleBounds is the metropolitan-France bounding box used to discard
// records with corrupt or overseas coordinates before model training.
var metropoleBounds = geom.NewBounds(geom.XY).Set(-5.3, 41.2, 9.8, 51.2)

// inMetropole reports whether the coordinate falls inside metropolitan France.
// Records with no coordinate at all (0,0) are kept; only plainly wrong
// coordinates are dropped.
func inMetropole(lon, lat float64) bool {
	if lon == 0 && lat == 0 {
		return true
	}
	return metropoleBounds.OverlapsPoint(geom.XY, geom.Coord{lon, lat})
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeField strips accents and surrounding whitespace from a raw CSV
// field. Source files mix encodings of categorical labels and free text.
func normalizeField(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}

// parseInt parses a raw integer field, returning def for empty or malformed
// values (the source files use empty, "." and "-1" interchangeably for N/A).
func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// parseFloat parses a raw decimal field. The source files use a comma as the
// decimal separator.
func parseFloat(s string, def float64) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

// parseHour extracts the hour from an "hh:mm" or "hhmm" time field.
func parseHour(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ":"); i > 0 {
		return parseInt(s[:i], 0)
	}
	if len(s) == 4 {
		return parseInt(s[:2], 0)
	}
	return 0
}

// parseDep parses the department code. Corsican departments 2A/2B map to 20.
func parseDep(s string) int {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "2A" || s == "2B" {
		return 20
	}
	return parseInt(s, 0)
}

// binarizeSeverity maps the 4-level gravity code onto the binary target:
// killed (2) and hospitalized (3) are severe.
func binarizeSeverity(grav int) int {
	if grav == 2 || grav == 3 {
		return 1
	}
	return 0
}
