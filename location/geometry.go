package location

import (
	"strings"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/planar"
)

func parseWKT(s string) (orb.Geometry, error) {
	return wkt.Unmarshal(strings.TrimSpace(s))
}

// isPoint reports whether g is a single point. Every other geometry is
// treated as an area.
func isPoint(g orb.Geometry) bool {
	_, ok := g.(orb.Point)
	return ok
}

func setBounds(l *models.Location, b orb.Bound) {
	l.LonMin, l.LatMin = ptr(b.Min.Lon()), ptr(b.Min.Lat())
	l.LonMax, l.LatMax = ptr(b.Max.Lon()), ptr(b.Max.Lat())
}

func clearBounds(l *models.Location) {
	l.LatMin, l.LatMax, l.LonMin, l.LonMax = nil, nil, nil, nil
}

func ptr(v float64) *float64 { return &v }

// applyGeometry recomputes bounds and centroid. Polygonal WKT makes the
// feature own its coordinates (centroid) and clears inherited; otherwise
// the bounds collapse onto (lat, lon). An unparseable WKT is returned as an
// error after clearing the bounds.
func applyGeometry(l *models.Location) error {
	if l.Wkt != nil && strings.TrimSpace(*l.Wkt) != "" {
		g, err := parseWKT(*l.Wkt)
		if err != nil {
			clearBounds(l)
			return err
		}
		if isPoint(g) {
			p := g.(orb.Point)
			l.Lat, l.Lon = ptr(p.Lat()), ptr(p.Lon())
		} else {
			l.Inherited = false
			c, _ := planar.CentroidArea(g)
			l.Lat, l.Lon = ptr(c.Lat()), ptr(c.Lon())
		}
		setBounds(l, g.Bound())
		return nil
	}
	if l.Lat != nil && l.Lon != nil {
		p := orb.Point{*l.Lon, *l.Lat}
		setBounds(l, p.Bound())
		return nil
	}
	clearBounds(l)
	return nil
}

// geometryOf is the shape of a feature: its WKT, else its point, else nil.
func geometryOf(l *models.Location) orb.Geometry {
	if l.Wkt != nil && strings.TrimSpace(*l.Wkt) != "" {
		if g, err := parseWKT(*l.Wkt); err == nil {
			return g
		}
	}
	if l.Lat != nil && l.Lon != nil {
		return orb.Point{*l.Lon, *l.Lat}
	}
	return nil
}

func inBounds(l *models.Location, p orb.Point) bool {
	if l.LatMin == nil || l.LatMax == nil || l.LonMin == nil || l.LonMax == nil {
		return false
	}
	b := orb.Bound{Min: orb.Point{*l.LonMin, *l.LatMin}, Max: orb.Point{*l.LonMax, *l.LatMax}}
	return b.Contains(p)
}

func geometryContains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Point:
		return g.Equal(p)
	case orb.Collection:
		for _, c := range g {
			if geometryContains(c, p) {
				return true
			}
		}
	}
	return false
}
