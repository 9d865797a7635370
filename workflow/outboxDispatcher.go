// Package workflow runs the out-of-band parts of the engine: delivery of
// queued email and location maintenance jobs received over Pub/Sub.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/rms_backend/metrics"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/sirupsen/logrus"
)

type OutboxStore interface {
	ClaimEmails(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int, lockedBy string) ([]*models.EmailOutbox, error)
	MarkEmailSent(ctx context.Context, id int, at time.Time) error
	MarkEmailFailed(ctx context.Context, id int, msg string, next *time.Time) error
	ReplayDeadEmails(ctx context.Context) (int64, error)
}

type OutboxDispatcher struct {
	St           OutboxStore
	Mailer       notify.Mailer
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(st OutboxStore, mailer notify.Mailer, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		St:             st,
		Mailer:         mailer,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   2 * time.Second,
		LockTimeout:    2 * time.Minute,
		MaxAttempts:    10,
		InitialBackoff: 30 * time.Second,
		MaxBackoff:     time.Hour,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch and tries to deliver it. It returns the
// number of mails sent.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	now := time.Now().UTC()
	claimed, err := d.St.ClaimEmails(ctx, now, now.Add(-d.LockTimeout), d.BatchSize, d.MaxAttempts, d.DispatcherID)
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{"field": "OutboxDispatcher", "dispatcher": d.DispatcherID}).Error("claim failed: " + err.Error())
		}
		return 0
	}

	sent := 0
	for _, rec := range claimed {
		mail := notify.Mail{PeId: rec.PeId, To: rec.Recipient, Subject: rec.Subject, Body: rec.Body}
		if sendErr := d.Mailer.Send(ctx, mail); sendErr != nil {
			metrics.Email("failed")
			d.markFailed(ctx, rec, sendErr)
			continue
		}
		metrics.Email("sent")
		if err := d.St.MarkEmailSent(ctx, rec.ID, time.Now().UTC()); err != nil && d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{"field": "OutboxDispatcher", "record_id": rec.ID}).Error("mark sent: " + err.Error())
		}
		sent++
	}
	return sent
}

// Backoff is the wait before the retry that follows attempt.
func (d *OutboxDispatcher) Backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if d.MaxBackoff > 0 && backoff > d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markFailed(ctx context.Context, rec *models.EmailOutbox, err error) {
	msg := err.Error()
	fields := logrus.Fields{
		"field":     "OutboxDispatcher",
		"record_id": rec.ID,
		"pe_id":     rec.PeId,
		"attempt":   rec.Attempts,
	}

	var next *time.Time
	if d.MaxAttempts <= 0 || rec.Attempts < d.MaxAttempts {
		at := time.Now().UTC().Add(d.Backoff(rec.Attempts))
		next = &at
		fields["next_attempt_at"] = at.Format(time.RFC3339Nano)
	}
	if markErr := d.St.MarkEmailFailed(ctx, rec.ID, msg, next); markErr != nil {
		fields["mark_error"] = markErr.Error()
	}
	if next == nil {
		metrics.Email("dead")
	}
	if d.Logger == nil {
		return
	}
	if next == nil {
		d.Logger.WithFields(fields).Error("email moved to DEAD after max attempts: " + fmt.Sprintf("%v", err))
		return
	}
	d.Logger.WithFields(fields).Error("email delivery failed: " + fmt.Sprintf("%v", err))
}

// Replay requeues dead mail.
func (d *OutboxDispatcher) Replay(ctx context.Context) (int64, error) {
	return d.St.ReplayDeadEmails(ctx)
}
