// Package location maintains the administrative location hierarchy: the
// materialized path, the denormalized L0..L5 ancestor names, inherited
// coordinates and the bounding box of each feature.
package location

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/metrics"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var (
	ErrMissingID      = errors.New("location feature has no id")
	ErrRecursionLimit = errors.New("location tree recursion limit reached")
)

const rebuildLockKey = "rms:location:rebuild"

type Store interface {
	GetLocation(ctx context.Context, id int) (*models.Location, error)
	CreateLocation(ctx context.Context, l *models.Location) error
	SaveLocation(ctx context.Context, l *models.Location) error
	ListLocationChildren(ctx context.Context, parentId int) ([]*models.Location, error)
	ListLocationsPage(ctx context.Context, level *string, afterId int, limit int) ([]*models.Location, error)
	ListLocationsByLevel(ctx context.Context, level string, parentId *int) ([]*models.Location, error)
}

type Tree struct {
	st     Store
	logger *logrus.Logger

	ChunkSize int
	// MaxDepth bounds the length of a chain of parent refreshes and child
	// propagations started by one update.
	MaxDepth int
	// Locker keeps two full rebuilds from running at once. Optional.
	Locker realm.Locker
}

func New(st Store, logger *logrus.Logger) *Tree {
	if logger == nil {
		logger = config.GetLogger()
	}
	chunk := config.GetSettings().LocationChunkSize
	if chunk <= 0 {
		chunk = 500
	}
	return &Tree{st: st, logger: logger, ChunkSize: chunk, MaxDepth: 32}
}

// UpdateLocationTree re-establishes the path, ancestor names, inherited
// coordinates and bounds of feature, writes it when anything changed and
// propagates to its children. feature is updated in place; the new path is
// returned.
func (t *Tree) UpdateLocationTree(ctx context.Context, feature *models.Location) (string, error) {
	if feature == nil || feature.ID == 0 {
		return "", ErrMissingID
	}
	path, err := t.update(ctx, feature, 0, true)
	metrics.LocationUpdate(err)
	return path, err
}

func (t *Tree) update(ctx context.Context, f *models.Location, depth int, propagate bool) (string, error) {
	if depth > t.MaxDepth {
		return "", errors.Wrapf(ErrRecursionLimit, "feature %d", f.ID)
	}
	stored, err := t.st.GetLocation(ctx, f.ID)
	if err != nil && !utils.IsNotFound(err) {
		return "", errors.Wrapf(err, "location %d", f.ID)
	}

	next := *f
	parent, err := t.parentOf(ctx, &next, depth)
	if err != nil {
		return "", err
	}

	id := strconv.Itoa(next.ID)
	if parent != nil {
		next.Path = parent.Path + "/" + id
	} else {
		next.Path = id
	}
	setLevelNames(&next, parent)

	if next.Inherited && next.Wkt != nil {
		if g, err := parseWKT(*next.Wkt); err == nil && !isPoint(g) {
			next.Inherited = false
		}
	}
	if next.Inherited {
		next.Wkt = nil
		lat, lon, err := t.nearestCoordinates(ctx, parent, depth)
		if err != nil {
			return "", err
		}
		next.Lat, next.Lon = lat, lon
	}
	if err := applyGeometry(&next); err != nil {
		config.LogError(t.logger, "location", "UpdateLocationTree", "invalid wkt", next.ID, err)
	}

	if stored == nil || !sameTree(stored, &next) || !sameFeature(stored, &next) {
		if err := t.st.SaveLocation(ctx, &next); err != nil {
			return "", errors.Wrapf(err, "save location %d", next.ID)
		}
	}
	renamed := stored == nil || !sameTree(stored, &next)
	moved := stored == nil || !sameCoordinates(stored, &next)
	*f = next

	if propagate && (renamed || moved) {
		if err := t.propagate(ctx, &next, depth, renamed); err != nil {
			return next.Path, err
		}
	}
	return next.Path, nil
}

// parentOf loads the parent of f and refreshes it first when its own path
// or names are stale. A missing parent makes f a root.
func (t *Tree) parentOf(ctx context.Context, f *models.Location, depth int) (*models.Location, error) {
	if f.ParentId == nil || *f.ParentId == 0 {
		return nil, nil
	}
	if *f.ParentId == f.ID {
		return nil, errors.Wrapf(ErrRecursionLimit, "feature %d is its own parent", f.ID)
	}
	parent, err := t.st.GetLocation(ctx, *f.ParentId)
	if utils.IsNotFound(err) {
		t.logger.WithFields(logrus.Fields{"field": "UpdateLocationTree", "id": f.ID, "parent": *f.ParentId}).Warn("parent location not found")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "location %d", *f.ParentId)
	}
	if stale(parent) {
		if _, err := t.update(ctx, parent, depth+1, false); err != nil {
			return nil, err
		}
	}
	return parent, nil
}

// stale reports whether the path or own level name of l is inconsistent.
func stale(l *models.Location) bool {
	id := strconv.Itoa(l.ID)
	if l.Path != id && !strings.HasSuffix(l.Path, "/"+id) {
		return true
	}
	if i := models.LevelIndex(l.Level); i >= 0 {
		if n := l.LevelName(i); n == nil || *n != l.Name {
			return true
		}
	}
	return false
}

// setLevelNames copies the ancestor names of parent and sets the feature's
// own name at its level. Levels below the feature are cleared.
func setLevelNames(l *models.Location, parent *models.Location) {
	own := models.LevelIndex(l.Level)
	for i := range models.LocationLevels {
		var v *string
		switch {
		case own >= 0 && i == own:
			v = utils.NewString(l.Name)
		case own >= 0 && i > own:
			v = nil
		case parent != nil:
			v = parent.LevelName(i)
		}
		l.SetLevelName(i, v)
	}
}

// nearestCoordinates walks up from parent to the first feature that has
// coordinates.
func (t *Tree) nearestCoordinates(ctx context.Context, parent *models.Location, depth int) (*float64, *float64, error) {
	for hops := depth; parent != nil; hops++ {
		if parent.Lat != nil && parent.Lon != nil {
			return parent.Lat, parent.Lon, nil
		}
		if hops > t.MaxDepth {
			return nil, nil, errors.Wrapf(ErrRecursionLimit, "coordinates above feature %d", parent.ID)
		}
		if parent.ParentId == nil {
			break
		}
		next, err := t.st.GetLocation(ctx, *parent.ParentId)
		if utils.IsNotFound(err) {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "location %d", *parent.ParentId)
		}
		parent = next
	}
	return nil, nil, nil
}

// propagate re-runs the update for the children of f: inherited children
// whenever f changed, the others only when path or names changed. A
// failing child is logged and skipped.
func (t *Tree) propagate(ctx context.Context, f *models.Location, depth int, renamed bool) error {
	children, err := t.st.ListLocationChildren(ctx, f.ID)
	if err != nil {
		return errors.Wrapf(err, "children of location %d", f.ID)
	}
	for _, c := range children {
		if !c.Inherited && !renamed {
			continue
		}
		if _, err := t.update(ctx, c, depth+1, true); err != nil {
			if errors.Is(err, ErrRecursionLimit) && depth == 0 {
				return err
			}
			config.LogError(t.logger, "location", "propagate", "update child", c.ID, err)
		}
	}
	return nil
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTree(a, b *models.Location) bool {
	if a.Path != b.Path {
		return false
	}
	for i := range models.LocationLevels {
		if !eqStr(a.LevelName(i), b.LevelName(i)) {
			return false
		}
	}
	return true
}

func sameCoordinates(a, b *models.Location) bool {
	return eqFloat(a.Lat, b.Lat) && eqFloat(a.Lon, b.Lon)
}

func sameFeature(a, b *models.Location) bool {
	return a.Name == b.Name &&
		eqStr(a.Level, b.Level) &&
		utils.IntPtrEqual(a.ParentId, b.ParentId) &&
		eqStr(a.Wkt, b.Wkt) &&
		a.Inherited == b.Inherited &&
		sameCoordinates(a, b) &&
		eqFloat(a.LatMin, b.LatMin) && eqFloat(a.LatMax, b.LatMax) &&
		eqFloat(a.LonMin, b.LonMin) && eqFloat(a.LonMax, b.LonMax)
}

// RebuildLocationTree recomputes every feature level by level, L0 first and
// unlevelled features last, reading ChunkSize rows at a time. A level that
// fails to load is logged and skipped; a failing feature is logged.
func (t *Tree) RebuildLocationTree(ctx context.Context) (updated int, err error) {
	start := time.Now()
	defer func() { metrics.ObserveLocationRebuild(time.Since(start)) }()
	ctx, span := otel.Tracer("rms_backend").Start(ctx, "location.RebuildLocationTree")
	defer span.End()

	if t.Locker != nil {
		release, err := t.Locker.Obtain(ctx, rebuildLockKey, 30*time.Minute)
		if err != nil {
			return 0, errors.Wrap(err, "location rebuild already running")
		}
		defer release()
	}

	levels := make([]*string, 0, len(models.LocationLevels)+1)
	for i := range models.LocationLevels {
		levels = append(levels, &models.LocationLevels[i])
	}
	levels = append(levels, nil)

	for _, level := range levels {
		n, err := t.rebuildLevel(ctx, level)
		updated += n
		if err != nil {
			config.LogError(t.logger, "location", "RebuildLocationTree", "level", utils.DereferencePtr(level, "unlevelled"), err)
		}
	}
	t.logger.WithFields(logrus.Fields{"field": "RebuildLocationTree", "features": updated, "took": time.Since(start).String()}).Info("location tree rebuilt")
	return updated, nil
}

func (t *Tree) rebuildLevel(ctx context.Context, level *string) (int, error) {
	done, after := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		page, err := t.st.ListLocationsPage(ctx, level, after, t.ChunkSize)
		if err != nil {
			return done, err
		}
		for _, l := range page {
			after = l.ID
			if _, err := t.update(ctx, l, 0, false); err != nil {
				metrics.LocationUpdate(err)
				config.LogError(t.logger, "location", "RebuildLocationTree", "update feature", l.ID, err)
				continue
			}
			done++
		}
		if len(page) < t.ChunkSize {
			return done, nil
		}
	}
}
