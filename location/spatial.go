package location

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// Contains reports whether the point lies inside the feature. Features with
// only a point match that exact point.
func (t *Tree) Contains(ctx context.Context, id int, lat, lon float64) (bool, error) {
	l, err := t.st.GetLocation(ctx, id)
	if err != nil {
		return false, errors.Wrapf(err, "location %d", id)
	}
	p := orb.Point{lon, lat}
	if !inBounds(l, p) {
		return false, nil
	}
	g := geometryOf(l)
	if g == nil {
		return false, nil
	}
	return geometryContains(g, p), nil
}

// FindContaining returns the feature of the given level whose polygon
// contains the point. The smallest bounding box wins when several match.
func (t *Tree) FindContaining(ctx context.Context, level string, lat, lon float64) (*models.Location, error) {
	rows, err := t.st.ListLocationsByLevel(ctx, level, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "locations at %s", level)
	}
	p := orb.Point{lon, lat}
	var best *models.Location
	var bestArea float64
	for _, l := range rows {
		if !inBounds(l, p) {
			continue
		}
		g := geometryOf(l)
		if g == nil || isPoint(g) || !geometryContains(g, p) {
			continue
		}
		b := g.Bound()
		area := (b.Right() - b.Left()) * (b.Top() - b.Bottom())
		if best == nil || area < bestArea {
			best, bestArea = l, area
		}
	}
	if best == nil {
		return nil, errors.Wrapf(utils.ErrorRecordNotFound, "no %s feature contains (%v, %v)", level, lat, lon)
	}
	return best, nil
}
