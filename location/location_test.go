package location

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/store/memstore"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how often features are written.
type countingStore struct {
	*memstore.Store
	saves int
}

func (s *countingStore) SaveLocation(ctx context.Context, l *models.Location) error {
	s.saves++
	return s.Store.SaveLocation(ctx, l)
}

func f64(v float64) *float64 { return &v }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTree(t *testing.T) (*Tree, *countingStore) {
	t.Helper()
	st := &countingStore{Store: memstore.New()}
	tree := New(st, quietLogger())
	return tree, st
}

func add(t *testing.T, st Store, l *models.Location) *models.Location {
	t.Helper()
	require.NoError(t, st.CreateLocation(context.Background(), l))
	return l
}

func get(t *testing.T, st Store, id int) *models.Location {
	t.Helper()
	l, err := st.GetLocation(context.Background(), id)
	require.NoError(t, err)
	return l
}

// country 1 > province 2 (own coordinates) > districts 3 and 4 (inherited)
func seedProvince(t *testing.T, tree *Tree, st Store) {
	t.Helper()
	ctx := context.Background()
	add(t, st, &models.Location{ID: 1, Name: "Panama", Level: utils.NewString("L0")})
	add(t, st, &models.Location{ID: 2, Name: "Colon", Level: utils.NewString("L1"), ParentId: utils.NewInt(1), Lat: f64(10), Lon: f64(20)})
	add(t, st, &models.Location{ID: 3, Name: "Portobelo", Level: utils.NewString("L2"), ParentId: utils.NewInt(2), Inherited: true})
	add(t, st, &models.Location{ID: 4, Name: "Chagres", Level: utils.NewString("L2"), ParentId: utils.NewInt(2), Inherited: true})
	for id := 1; id <= 4; id++ {
		_, err := tree.UpdateLocationTree(ctx, get(t, st, id))
		require.NoError(t, err)
	}
}

func TestUpdateLocationTreeMissingID(t *testing.T) {
	tree, _ := newTree(t)
	_, err := tree.UpdateLocationTree(context.Background(), &models.Location{Name: "new"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestUpdateLocationTreeBuildsPathAndNames(t *testing.T) {
	tree, st := newTree(t)
	seedProvince(t, tree, st)

	d := get(t, st, 3)
	assert.Equal(t, "1/2/3", d.Path)
	assert.Equal(t, "Panama", utils.DereferencePtr(d.L0))
	assert.Equal(t, "Colon", utils.DereferencePtr(d.L1))
	assert.Equal(t, "Portobelo", utils.DereferencePtr(d.L2))
	assert.Nil(t, d.L3)
	require.NotNil(t, d.Lat)
	assert.Equal(t, 10.0, *d.Lat)
	assert.Equal(t, 20.0, *d.Lon)
	require.NotNil(t, d.LatMin)
	assert.Equal(t, 10.0, *d.LatMin)
	assert.Equal(t, 20.0, *d.LonMax)
}

func TestParentEditPropagatesToInheritedChildren(t *testing.T) {
	tree, st := newTree(t)
	seedProvince(t, tree, st)

	p := get(t, st, 2)
	p.Name = "Colon Province"
	p.Lat, p.Lon = f64(11), f64(21)
	path, err := tree.UpdateLocationTree(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "1/2", path)
	assert.Equal(t, "Colon Province", utils.DereferencePtr(p.L1))

	for _, id := range []int{3, 4} {
		c := get(t, st, id)
		assert.Equal(t, 11.0, *c.Lat, "child %d", id)
		assert.Equal(t, 21.0, *c.Lon, "child %d", id)
		assert.Equal(t, "Colon Province", utils.DereferencePtr(c.L1), "child %d", id)
	}
}

func TestUpdateLocationTreeIsIdempotent(t *testing.T) {
	tree, st := newTree(t)
	seedProvince(t, tree, st)

	st.saves = 0
	_, err := tree.UpdateLocationTree(context.Background(), get(t, st, 2))
	require.NoError(t, err)
	_, err = tree.UpdateLocationTree(context.Background(), get(t, st, 3))
	require.NoError(t, err)
	assert.Equal(t, 0, st.saves)
}

func TestRenamePropagatesToOwnedChildren(t *testing.T) {
	tree, st := newTree(t)
	seedProvince(t, tree, st)
	add(t, st, &models.Location{ID: 5, Name: "Clinic", ParentId: utils.NewInt(3), Lat: f64(9.5), Lon: f64(19.5)})
	_, err := tree.UpdateLocationTree(context.Background(), get(t, st, 5))
	require.NoError(t, err)

	c := get(t, st, 1)
	c.Name = "Republica de Panama"
	_, err = tree.UpdateLocationTree(context.Background(), c)
	require.NoError(t, err)

	clinic := get(t, st, 5)
	assert.Equal(t, "1/2/3/5", clinic.Path)
	assert.Equal(t, "Republica de Panama", utils.DereferencePtr(clinic.L0))
	assert.Equal(t, 9.5, *clinic.Lat)
}

func TestStaleParentIsRefreshedFirst(t *testing.T) {
	tree, st := newTree(t)
	add(t, st, &models.Location{ID: 1, Name: "Panama", Level: utils.NewString("L0")})
	add(t, st, &models.Location{ID: 2, Name: "Colon", Level: utils.NewString("L1"), ParentId: utils.NewInt(1)})
	c := add(t, st, &models.Location{ID: 3, Name: "Portobelo", Level: utils.NewString("L2"), ParentId: utils.NewInt(2)})

	path, err := tree.UpdateLocationTree(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "1/2/3", path)
	assert.Equal(t, "Panama", utils.DereferencePtr(c.L0))
	assert.Equal(t, "1/2", get(t, st, 2).Path)
}

func TestPolygonOwnsItsCoordinates(t *testing.T) {
	tree, st := newTree(t)
	l := add(t, st, &models.Location{
		ID: 7, Name: "Square", Level: utils.NewString("L1"), Inherited: true,
		Wkt: utils.NewString("POLYGON((0 0, 4 0, 4 4, 0 4, 0 0))"),
	})
	_, err := tree.UpdateLocationTree(context.Background(), l)
	require.NoError(t, err)

	l = get(t, st, 7)
	assert.False(t, l.Inherited)
	require.NotNil(t, l.Wkt)
	assert.InDelta(t, 2.0, *l.Lat, 1e-9)
	assert.InDelta(t, 2.0, *l.Lon, 1e-9)
	assert.Equal(t, 0.0, *l.LatMin)
	assert.Equal(t, 4.0, *l.LatMax)
}

func TestInvalidWKTClearsBounds(t *testing.T) {
	tree, st := newTree(t)
	l := add(t, st, &models.Location{
		ID: 8, Name: "Broken", Lat: f64(1), Lon: f64(1),
		Wkt: utils.NewString("POLYGON((0 0, 4 0"),
	})
	_, err := tree.UpdateLocationTree(context.Background(), l)
	require.NoError(t, err)

	l = get(t, st, 8)
	assert.Equal(t, "8", l.Path)
	assert.Nil(t, l.LatMin)
	assert.Nil(t, l.LonMax)
}

func TestSelfParentHitsRecursionLimit(t *testing.T) {
	tree, st := newTree(t)
	l := add(t, st, &models.Location{ID: 9, Name: "Loop", ParentId: utils.NewInt(9)})
	_, err := tree.UpdateLocationTree(context.Background(), l)
	assert.True(t, errors.Is(err, ErrRecursionLimit))
}

func TestRebuildLocationTree(t *testing.T) {
	tree, st := newTree(t)
	tree.ChunkSize = 1
	add(t, st, &models.Location{ID: 1, Name: "Panama", Level: utils.NewString("L0"), Lat: f64(8), Lon: f64(-80)})
	add(t, st, &models.Location{ID: 2, Name: "Colon", Level: utils.NewString("L1"), ParentId: utils.NewInt(1), Inherited: true})
	add(t, st, &models.Location{ID: 3, Name: "Herrera", Level: utils.NewString("L1"), ParentId: utils.NewInt(1), Inherited: true})
	add(t, st, &models.Location{ID: 4, Name: "Depot", ParentId: utils.NewInt(3), Inherited: true})

	n, err := tree.RebuildLocationTree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	depot := get(t, st, 4)
	assert.Equal(t, "1/3/4", depot.Path)
	assert.Equal(t, "Herrera", utils.DereferencePtr(depot.L1))
	assert.Equal(t, -80.0, *depot.Lon)
}

func polygonFeature(t *testing.T, tree *Tree, st Store) {
	t.Helper()
	add(t, st, &models.Location{ID: 1, Name: "Panama", Level: utils.NewString("L0")})
	add(t, st, &models.Location{
		ID: 2, Name: "Colon", Level: utils.NewString("L1"), ParentId: utils.NewInt(1),
		Wkt: utils.NewString("POLYGON((-80 9, -79 9, -79 10, -80 10, -80 9))"),
	})
	add(t, st, &models.Location{
		ID: 3, Name: "Panama Oeste", Level: utils.NewString("L1"), ParentId: utils.NewInt(1),
		Wkt: utils.NewString("POLYGON((-81 8, -80 8, -80 9, -81 9, -81 8))"),
	})
	for id := 1; id <= 3; id++ {
		_, err := tree.UpdateLocationTree(context.Background(), get(t, st, id))
		require.NoError(t, err)
	}
}

func TestContains(t *testing.T) {
	tree, st := newTree(t)
	polygonFeature(t, tree, st)
	ctx := context.Background()

	in, err := tree.Contains(ctx, 2, 9.5, -79.5)
	require.NoError(t, err)
	assert.True(t, in)

	in, err = tree.Contains(ctx, 2, 8.5, -80.5)
	require.NoError(t, err)
	assert.False(t, in)

	_, err = tree.Contains(ctx, 99, 0, 0)
	assert.True(t, utils.IsNotFound(err))
}

func TestFindContaining(t *testing.T) {
	tree, st := newTree(t)
	polygonFeature(t, tree, st)
	ctx := context.Background()

	l, err := tree.FindContaining(ctx, "L1", 8.5, -80.5)
	require.NoError(t, err)
	assert.Equal(t, 3, l.ID)

	_, err = tree.FindContaining(ctx, "L1", 40, 40)
	assert.True(t, utils.IsNotFound(err))
}

func TestFindContainingPrefersSmallestArea(t *testing.T) {
	tree, st := newTree(t)
	polygonFeature(t, tree, st)
	ctx := context.Background()
	// overlaps Panama Oeste and covers a quarter of its area
	add(t, st, &models.Location{
		ID: 4, Name: "Arraijan", Level: utils.NewString("L1"), ParentId: utils.NewInt(1),
		Wkt: utils.NewString("POLYGON((-80.75 8.25, -80.25 8.25, -80.25 8.75, -80.75 8.75, -80.75 8.25))"),
	})
	_, err := tree.UpdateLocationTree(ctx, get(t, st, 4))
	require.NoError(t, err)

	l, err := tree.FindContaining(ctx, "L1", 8.5, -80.5)
	require.NoError(t, err)
	assert.Equal(t, 4, l.ID)

	l, err = tree.FindContaining(ctx, "L1", 8.1, -80.9)
	require.NoError(t, err)
	assert.Equal(t, 3, l.ID)
}

func TestExportAdminAreas(t *testing.T) {
	tree, st := newTree(t)
	polygonFeature(t, tree, st)
	dir := t.TempDir()
	admin := NewAdminAreas(tree, quietLogger())
	admin.Sink = FileSink{Dir: dir}

	name, n, err := admin.ExportAdminAreas(context.Background(), "L1", utils.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "L1_1.geojson", name)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Colon", fc.Features[0].Properties.MustString("name"))
}

const adminAreasJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Cristobal"},"geometry":{"type":"Polygon","coordinates":[[[-80,9],[-79.5,9],[-79.5,9.5],[-80,9.5],[-80,9]]]}},
{"type":"Feature","properties":{"name":"Sabanitas"},"geometry":{"type":"Polygon","coordinates":[[[-79.5,9],[-79,9],[-79,9.5],[-79.5,9.5],[-79.5,9]]]}}
]}`

func TestImportAdminAreas(t *testing.T) {
	tree, st := newTree(t)
	polygonFeature(t, tree, st)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(adminAreasJSON))
	}))
	defer srv.Close()

	admin := NewAdminAreas(tree, quietLogger())
	n, err := admin.ImportAdminAreas(context.Background(), srv.URL, "L2", utils.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := st.ListLocationsByLevel(context.Background(), "L2", utils.NewInt(2))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Cristobal", rows[0].Name)
	assert.Equal(t, "Colon", utils.DereferencePtr(rows[0].L1))
	assert.Equal(t, "1/2/"+strconv.Itoa(rows[0].ID), rows[0].Path)
	require.NotNil(t, rows[0].LatMin)
	assert.Equal(t, 9.0, *rows[0].LatMin)
}

func TestImportAdminAreasDownloadFailure(t *testing.T) {
	tree, st := newTree(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	}))
	defer srv.Close()

	admin := NewAdminAreas(tree, quietLogger())
	n, err := admin.ImportAdminAreas(context.Background(), srv.URL, "L1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	rows, err := st.ListLocationsByLevel(context.Background(), "L1", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
