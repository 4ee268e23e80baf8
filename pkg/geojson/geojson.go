// Package geojson provides the area-of-interest footprint type: a WKT
// polygon or multipolygon parsed into GeoJSON coordinates.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Geometry is a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Footprint is an area of interest. Coordinates are always stored as a
// multipolygon: polygon -> ring -> [lon, lat].
type Footprint struct {
	polygons [][][][]float64
	multi    bool
}

// ParseFootprint parses a WKT POLYGON or MULTIPOLYGON. A surrounding
// Intersects(...) predicate, as accepted by catalog query languages, is
// stripped.
func ParseFootprint(wkt string) (*Footprint, error) {
	s := strings.TrimSpace(wkt)
	if s == "" {
		return nil, fmt.Errorf("empty footprint")
	}
	if inner, ok := stripPredicate(s, "INTERSECTS"); ok {
		s = inner
	}

	upper := strings.ToUpper(s)
	var (
		fp   Footprint
		body string
	)
	switch {
	case strings.HasPrefix(upper, "MULTIPOLYGON"):
		fp.multi = true
		body = s[len("MULTIPOLYGON"):]
	case strings.HasPrefix(upper, "POLYGON"):
		body = s[len("POLYGON"):]
	default:
		return nil, fmt.Errorf("footprint must be a POLYGON or MULTIPOLYGON")
	}

	tree, err := parseGroup(strings.TrimSpace(body))
	if err != nil {
		return nil, fmt.Errorf("invalid footprint: %w", err)
	}

	if fp.multi {
		for _, polygon := range tree.children {
			rings, err := polygonRings(polygon)
			if err != nil {
				return nil, fmt.Errorf("invalid footprint: %w", err)
			}
			fp.polygons = append(fp.polygons, rings)
		}
	} else {
		rings, err := polygonRings(tree)
		if err != nil {
			return nil, fmt.Errorf("invalid footprint: %w", err)
		}
		fp.polygons = [][][][]float64{rings}
	}

	if len(fp.polygons) == 0 {
		return nil, fmt.Errorf("invalid footprint: no polygons")
	}
	return &fp, nil
}

// Geometry returns the footprint as a GeoJSON Polygon or MultiPolygon.
func (f *Footprint) Geometry() *Geometry {
	var (
		coords []byte
		typ    string
	)
	if f.multi {
		typ = "MultiPolygon"
		coords, _ = json.Marshal(f.polygons)
	} else {
		typ = "Polygon"
		coords, _ = json.Marshal(f.polygons[0])
	}
	return &Geometry{Type: typ, Coordinates: coords}
}

// BBox returns [west, south, east, north].
func (f *Footprint) BBox() []float64 {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, polygon := range f.polygons {
		for _, ring := range polygon {
			for _, p := range ring {
				minLon = math.Min(minLon, p[0])
				maxLon = math.Max(maxLon, p[0])
				minLat = math.Min(minLat, p[1])
				maxLat = math.Max(maxLat, p[1])
			}
		}
	}
	return []float64{minLon, minLat, maxLon, maxLat}
}

// WKT renders the footprint in normalized WKT.
func (f *Footprint) WKT() string {
	polygons := make([]string, len(f.polygons))
	for i, polygon := range f.polygons {
		rings := make([]string, len(polygon))
		for j, ring := range polygon {
			points := make([]string, len(ring))
			for k, p := range ring {
				points[k] = formatFloat(p[0]) + " " + formatFloat(p[1])
			}
			rings[j] = "(" + strings.Join(points, ",") + ")"
		}
		polygons[i] = "(" + strings.Join(rings, ",") + ")"
	}
	if f.multi {
		return "MULTIPOLYGON(" + strings.Join(polygons, ",") + ")"
	}
	return "POLYGON" + polygons[0]
}

// OuterRingCCW returns the outer ring of the first polygon as a flat
// lon,lat,lon,lat,... list in counter-clockwise order, the form CMR expects
// for its polygon parameter.
func (f *Footprint) OuterRingCCW() string {
	ring := f.polygons[0][0]
	if signedArea(ring) < 0 {
		reversed := make([][]float64, len(ring))
		for i, p := range ring {
			reversed[len(ring)-1-i] = p
		}
		ring = reversed
	}
	values := make([]string, 0, 2*len(ring))
	for _, p := range ring {
		values = append(values, formatFloat(p[0]), formatFloat(p[1]))
	}
	return strings.Join(values, ",")
}

// group is one parenthesised level of a WKT body. Leaves carry the raw
// coordinate text.
type group struct {
	children []*group
	text     string
}

// parseGroup parses "( ... )" recursively.
func parseGroup(s string) (*group, error) {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("expected parenthesised group")
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if !strings.Contains(inner, "(") {
		return &group{text: inner}, nil
	}

	g := &group{}
	depth, start := 0, -1
	for i, ch := range inner {
		switch ch {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unmatched closing parenthesis")
			}
			if depth == 0 {
				child, err := parseGroup(inner[start : i+1])
				if err != nil {
					return nil, err
				}
				g.children = append(g.children, child)
			}
		case ',', ' ', '\t', '\n', '\r':
		default:
			if depth == 0 {
				return nil, fmt.Errorf("unexpected %q between groups", ch)
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unmatched parentheses")
	}
	return g, nil
}

func polygonRings(g *group) ([][][]float64, error) {
	if len(g.children) == 0 {
		return nil, fmt.Errorf("polygon has no rings")
	}
	rings := make([][][]float64, 0, len(g.children))
	for _, child := range g.children {
		if len(child.children) > 0 {
			return nil, fmt.Errorf("unexpected nesting inside ring")
		}
		ring, err := parseRing(child.text)
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

func parseRing(s string) ([][]float64, error) {
	parts := strings.Split(s, ",")
	ring := make([][]float64, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid coordinate %q", strings.TrimSpace(part))
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude %q", fields[0])
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude %q", fields[1])
		}
		ring = append(ring, []float64{lon, lat})
	}
	if len(ring) < 4 {
		return nil, fmt.Errorf("ring needs at least 4 points, got %d", len(ring))
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		return nil, fmt.Errorf("ring is not closed")
	}
	return ring, nil
}

// stripPredicate removes NAME( ... ) around s, case-insensitively.
func stripPredicate(s, name string) (string, bool) {
	if !strings.HasPrefix(strings.ToUpper(s), name) {
		return "", false
	}
	rest := strings.TrimSpace(s[len(name):])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}

// signedArea is positive for counter-clockwise rings (shoelace formula).
func signedArea(ring [][]float64) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return sum / 2
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
