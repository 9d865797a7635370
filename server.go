package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rms_backend/access"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/intl"
	"github.com/mmdatafocus/rms_backend/inventory"
	"github.com/mmdatafocus/rms_backend/location"
	"github.com/mmdatafocus/rms_backend/middlewares"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/requisition"
	"github.com/mmdatafocus/rms_backend/store"
	"github.com/mmdatafocus/rms_backend/workflow"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// services is everything the HTTP handlers need once the database is up.
type services struct {
	st         *store.Store
	acl        *access.Service
	resolver   *realm.Resolver
	stock      *inventory.Service
	reqs       *requisition.Service
	tree       *location.Tree
	admin      *location.AdminAreas
	jobs       *workflow.JobRunner
	dispatcher *workflow.OutboxDispatcher
}

var app *services

func buildServices(ctx context.Context, logger *logrus.Logger, resolver *realm.Resolver) (*services, error) {
	s := config.GetSettings()
	st := store.New(config.GetDB())

	acl, err := access.New(st, logger)
	if err != nil {
		return nil, err
	}
	if err := acl.Load(ctx); err != nil {
		return nil, err
	}

	translator, err := intl.New(s.DefaultLanguage)
	if err != nil {
		return nil, err
	}
	fabric := notify.NewFabric(st, notify.OutboxMailer{St: st}, translator, logger)
	stock := inventory.New(st, fabric, logger)
	reqs := requisition.New(st, resolver, fabric, acl, logger)
	reqs.Stock = stock

	tree := location.New(st, logger)
	tree.Locker = realm.RedisLocker{Client: config.GetRedisLock()}
	admin := location.NewAdminAreas(tree, logger)

	jobs := &workflow.JobRunner{Tree: tree, Admin: admin, Stock: stock, Logger: logger}
	if rdb := config.GetRedisDB(); rdb != nil {
		jobs.Deduper = workflow.NewRedisDeduper(rdb)
	}

	return &services{
		st:         st,
		acl:        acl,
		resolver:   resolver,
		stock:      stock,
		reqs:       reqs,
		tree:       tree,
		admin:      admin,
		jobs:       jobs,
		dispatcher: workflow.NewOutboxDispatcher(st, notify.NewSMTPMailer(s), logger),
	}, nil
}

// ready answers 503 until the services are built.
func ready(h func(c *gin.Context, app *services)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if app == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		h(c, app)
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if app == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		middlewares.RequireRole(app.acl, access.RoleAdmin)(c)
	}
}

func main() {
	settings, err := config.LoadSettings()
	logger := config.GetLogger()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "settings"}).Warn("invalid environment, using defaults: " + err.Error())
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server first; app endpoints answer 503 until
	// the database and redis are connected.
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.ErrorLogger(logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/pubsub/jobs", ready(func(c *gin.Context, app *services) { app.jobs.PushHandler()(c) }))

	if settings := config.GetSettings(); settings.RateLimitEnabled && settings.RateLimitMaxRequests > 0 {
		limit := settings.RateLimitMaxRequests
		r.Use(func(c *gin.Context) {
			if rdb := config.GetRedisDB(); rdb != nil {
				middlewares.NewRateLimiter(rdb, limit, time.Minute).Middleware(c)
				return
			}
			c.Next()
		})
	}

	authed := r.Group("/", middlewares.AuthMiddleware())
	registerAPI(authed.Group("/api"))

	ops := authed.Group("/internal/ops", requireAdmin())
	ops.POST("/location/rebuild", ready(locationRebuildHandler))
	ops.POST("/location/import", ready(adminAreaJobHandler(workflow.JobImportAdminAreas)))
	ops.POST("/location/export", ready(adminAreaJobHandler(workflow.JobExportAdminAreas)))
	ops.POST("/outbox/replay", ready(outboxReplayHandler))
	ops.POST("/stock/scan", ready(stockScanHandler))
	ops.POST("/realm/prune", ready(realmPruneHandler))
	r.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "not found"}) })

	srv := &http.Server{Addr: ":" + settings.Port, Handler: r}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectRedisWithRetry(sigCtx)
	resolver := realm.New(logger, settings.RealmFallbackRootOrg)
	resolver.Locker = realm.RedisLocker{Client: config.GetRedisLock()}
	config.ConnectDatabaseWithRetry(realm.NewPlugin(resolver))

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !settings.SkipMigrations {
		models.MigrateTable(db)
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	built, err := buildServices(sigCtx, logger, resolver)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "startup"}).Fatal(err.Error())
	}
	app = built

	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go app.dispatcher.Run(dispatcherCtx)

	log.Printf("server started on :%s", settings.Port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// locationRebuildHandler queues a rebuild on the jobs topic, or runs it in
// the background when Pub/Sub is not configured.
func locationRebuildHandler(c *gin.Context, app *services) {
	id, err := workflow.PublishJob(c.Request.Context(), workflow.Job{Kind: workflow.JobRebuildLocations})
	if err == nil {
		c.JSON(http.StatusAccepted, gin.H{"message_id": id})
		return
	}
	logger := config.GetLogger()
	logger.WithFields(logrus.Fields{"field": "locationRebuildHandler"}).Warn("publish failed, rebuilding in process: " + err.Error())
	go func() {
		if _, err := app.tree.RebuildLocationTree(context.Background()); err != nil {
			config.LogError(logger, "server.go", "locationRebuildHandler", "RebuildLocationTree", nil, err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"message_id": nil})
}

type adminAreaRequest struct {
	Level    string `json:"level" binding:"required"`
	ParentId *int   `json:"parent_id"`
	URL      string `json:"url"`
}

func adminAreaJobHandler(kind string) func(c *gin.Context, app *services) {
	return func(c *gin.Context, app *services) {
		var req adminAreaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		id, err := workflow.PublishJob(c.Request.Context(), workflow.Job{Kind: kind, Level: req.Level, ParentId: req.ParentId, URL: req.URL})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message_id": id})
	}
}

func outboxReplayHandler(c *gin.Context, app *services) {
	n, err := app.dispatcher.Replay(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": n})
}

func stockScanHandler(c *gin.Context, app *services) {
	scanned, failed, err := app.stock.ScanAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scanned": scanned, "failed": failed})
}

func realmPruneHandler(c *gin.Context, app *services) {
	n, err := realm.PruneSharedRealms(c.Request.Context(), app.st, config.GetLogger())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pruned": n})
}
