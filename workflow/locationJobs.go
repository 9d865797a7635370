package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/location"
	"github.com/sirupsen/logrus"
)

const (
	JobImportAdminAreas = "import_admin_areas"
	JobExportAdminAreas = "export_admin_areas"
	JobRebuildLocations = "rebuild_locations"
	JobScanStockAlerts  = "scan_stock_alerts"
)

type Job struct {
	Kind     string `json:"kind"`
	Level    string `json:"level,omitempty"`
	ParentId *int   `json:"parent_id,omitempty"`
	URL      string `json:"url,omitempty"`
}

func (j Job) validate() error {
	switch j.Kind {
	case JobImportAdminAreas:
		if j.URL == "" || j.Level == "" {
			return errors.New("import job needs url and level")
		}
	case JobExportAdminAreas:
		if j.Level == "" {
			return errors.New("export job needs level")
		}
	case JobRebuildLocations, JobScanStockAlerts:
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PublishJob queues job on the jobs topic and returns the message id.
func PublishJob(ctx context.Context, job Job) (string, error) {
	if err := job.validate(); err != nil {
		return "", err
	}
	return config.PublishJSON(ctx, config.GetSettings().JobsTopic, job, map[string]string{"kind": job.Kind})
}

type StockScanner interface {
	ScanAll(ctx context.Context) (scanned, failed int, err error)
}

// JobRunner executes jobs. Stock may be nil when the process does not
// serve inventory.
type JobRunner struct {
	Tree    *location.Tree
	Admin   *location.AdminAreas
	Stock   StockScanner
	Deduper Deduper
	Logger  *logrus.Logger
}

func (r *JobRunner) Run(ctx context.Context, job Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	logger := r.Logger
	if logger == nil {
		logger = config.GetLogger()
	}
	fields := logrus.Fields{"field": "JobRunner", "kind": job.Kind}

	switch job.Kind {
	case JobImportAdminAreas:
		n, err := r.Admin.ImportAdminAreas(ctx, job.URL, job.Level, job.ParentId)
		if err != nil {
			return err
		}
		fields["created"] = n
	case JobExportAdminAreas:
		name, n, err := r.Admin.ExportAdminAreas(ctx, job.Level, job.ParentId)
		if err != nil {
			return err
		}
		fields["file"], fields["features"] = name, n
	case JobRebuildLocations:
		n, err := r.Tree.RebuildLocationTree(ctx)
		if err != nil {
			return err
		}
		fields["features"] = n
	case JobScanStockAlerts:
		if r.Stock == nil {
			return errors.New("stock scanning not configured")
		}
		scanned, failed, err := r.Stock.ScanAll(ctx)
		if err != nil {
			return err
		}
		fields["scanned"], fields["failed"] = scanned, failed
	}
	logger.WithFields(fields).Info("job done")
	return nil
}

// RunOnce runs the job unless a delivery with the same message id already
// succeeded.
func (r *JobRunner) RunOnce(ctx context.Context, messageID string, job Job) error {
	if r.Deduper == nil || messageID == "" {
		return r.Run(ctx, job)
	}
	key := "rms:job:" + messageID
	skip, err := r.Deduper.Begin(ctx, key)
	if err != nil || skip {
		return err
	}
	if err := r.Run(ctx, job); err != nil {
		_ = r.Deduper.Failed(ctx, key)
		return err
	}
	return r.Deduper.Succeeded(ctx, key)
}

// PushHandler serves Pub/Sub push deliveries. Malformed messages are
// acknowledged and dropped; a failing job answers 500 so Pub/Sub retries.
func (r *JobRunner) PushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(http.StatusNoContent)
			return
		}
		var job Job
		if err := json.Unmarshal(envelope.Message.Data, &job); err != nil || job.validate() != nil {
			c.Status(http.StatusNoContent)
			return
		}

		if err := r.RunOnce(c.Request.Context(), envelope.Message.ID, job); err != nil {
			if errors.Is(err, ErrJobInProgress) {
				c.Status(http.StatusConflict)
				return
			}
			config.LogError(r.Logger, "workflow", "PushHandler", job.Kind, envelope.Message.ID, err)
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
