// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	realmsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rms",
		Name:      "realms_created_total",
		Help:      "Shared realms created, by kind (2sites, req).",
	}, []string{"kind"})

	notificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rms",
		Name:      "notifications_created_total",
		Help:      "Notifications created, by type.",
	}, []string{"type"})

	notificationsRetracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rms",
		Name:      "notifications_retracted_total",
		Help:      "Notifications retracted, by type.",
	}, []string{"type"})

	emails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rms",
		Name:      "emails_total",
		Help:      "Emails queued, sent, failed or dead.",
	}, []string{"status"})

	locationUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rms",
		Name:      "location_updates_total",
		Help:      "Location tree updates, by result.",
	}, []string{"result"})

	stockMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rms",
		Name:      "stock_movements_total",
		Help:      "Stock card entries appended, by movement kind.",
	}, []string{"kind"})

	locationRebuild = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rms",
		Name:      "location_rebuild_seconds",
		Help:      "Duration of full location tree rebuilds.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
)

func RealmCreated(kind string) {
	realmsCreated.WithLabelValues(kind).Inc()
}

func NotificationCreated(typ string) {
	notificationsCreated.WithLabelValues(typ).Inc()
}

func NotificationsRetracted(typ string, n int64) {
	if n <= 0 {
		return
	}
	if typ == "" {
		typ = "any"
	}
	notificationsRetracted.WithLabelValues(typ).Add(float64(n))
}

func Email(status string) {
	emails.WithLabelValues(status).Inc()
}

func LocationUpdate(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	locationUpdates.WithLabelValues(result).Inc()
}

func StockMovement(kind string) {
	stockMovements.WithLabelValues(kind).Inc()
}

func ObserveLocationRebuild(d time.Duration) {
	locationRebuild.Observe(d.Seconds())
}
