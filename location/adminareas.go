package location

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sink stores a generated cache file.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
}

type FileSink struct {
	Dir string
}

func (s FileSink) Put(ctx context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", s.Dir)
	}
	return os.WriteFile(filepath.Join(s.Dir, name), data, 0o644)
}

type GCSSink struct {
	Bucket string
	Prefix string
}

func (s GCSSink) Put(ctx context.Context, name string, data []byte) error {
	return utils.UploadBytesToGCS(ctx, s.Bucket, s.Prefix+name, data, "application/geo+json")
}

// NewSink picks the cache destination from STORAGE_PROVIDER.
func NewSink(s *config.Settings) Sink {
	if strings.EqualFold(s.StorageProvider, utils.StorageProviderGCS) {
		return GCSSink{Bucket: s.GCSBucket, Prefix: strings.TrimSuffix(s.GeoJSONCacheDir, "/") + "/"}
	}
	return FileSink{Dir: s.GeoJSONCacheDir}
}

// AdminAreas exports and imports administrative boundaries as GeoJSON.
type AdminAreas struct {
	tree   *Tree
	logger *logrus.Logger
	Sink   Sink
	Client *http.Client
}

func NewAdminAreas(tree *Tree, logger *logrus.Logger) *AdminAreas {
	if logger == nil {
		logger = config.GetLogger()
	}
	s := config.GetSettings()
	timeout := time.Duration(s.HTTPTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &AdminAreas{
		tree:   tree,
		logger: logger,
		Sink:   NewSink(s),
		Client: &http.Client{Timeout: timeout},
	}
}

func cacheName(level string, parentID *int) string {
	parent := "all"
	if parentID != nil {
		parent = strconv.Itoa(*parentID)
	}
	return fmt.Sprintf("%s_%s.geojson", level, parent)
}

// ExportAdminAreas writes every feature of level (optionally below
// parentID) that has a geometry to <level>_<parent>.geojson. It returns the
// file name and the number of features written.
func (a *AdminAreas) ExportAdminAreas(ctx context.Context, level string, parentID *int) (string, int, error) {
	rows, err := a.tree.st.ListLocationsByLevel(ctx, level, parentID)
	if err != nil {
		return "", 0, errors.Wrapf(err, "locations at %s", level)
	}
	fc := geojson.NewFeatureCollection()
	for _, l := range rows {
		g := geometryOf(l)
		if g == nil {
			continue
		}
		f := geojson.NewFeature(g)
		f.ID = l.ID
		f.Properties["id"] = l.ID
		f.Properties["name"] = l.Name
		if l.ParentId != nil {
			f.Properties["parent"] = *l.ParentId
		}
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return "", 0, errors.Wrap(err, "marshal geojson")
	}
	name := cacheName(level, parentID)
	if err := a.Sink.Put(ctx, name, data); err != nil {
		return "", 0, errors.Wrapf(err, "write %s", name)
	}
	a.logger.WithFields(logrus.Fields{"field": "ExportAdminAreas", "file": name, "features": len(fc.Features)}).Info("admin areas exported")
	return name, len(fc.Features), nil
}

// ImportAdminAreas downloads a GeoJSON FeatureCollection and creates one
// feature per entry at level below parentID. A failed download is logged
// and imports nothing.
func (a *AdminAreas) ImportAdminAreas(ctx context.Context, url string, level string, parentID *int) (int, error) {
	fc, err := a.fetch(ctx, url)
	if err != nil {
		a.logger.WithFields(logrus.Fields{"field": "ImportAdminAreas", "url": url, "error": err.Error()}).Warn("admin area download failed")
		return 0, nil
	}

	created := 0
	for i, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		name := f.Properties.MustString("name", "")
		if name == "" {
			name = fmt.Sprintf("%s %d", level, i+1)
		}
		l := &models.Location{
			Name:     name,
			Level:    utils.NewString(level),
			ParentId: parentID,
			Wkt:      utils.NewString(wkt.MarshalString(f.Geometry)),
		}
		if err := a.tree.st.CreateLocation(ctx, l); err != nil {
			return created, errors.Wrapf(err, "create %s", name)
		}
		if _, err := a.tree.UpdateLocationTree(ctx, l); err != nil {
			config.LogError(a.logger, "location", "ImportAdminAreas", "update tree", l.ID, err)
		}
		created++
	}
	return created, nil
}

func (a *AdminAreas) fetch(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("admin area source returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return geojson.UnmarshalFeatureCollection(body)
}
