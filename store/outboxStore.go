package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/rms_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClaimEmails locks up to limit deliverable rows for lockedBy. Eligible rows
// are PENDING or FAILED and due, or PROCESSING with a lock older than
// staleBefore (a dispatcher died mid-batch). Rows that already used
// maxAttempts are moved to DEAD and not returned.
func (s *Store) ClaimEmails(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int, lockedBy string) ([]*models.EmailOutbox, error) {
	var claimed []*models.EmailOutbox
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []*models.EmailOutbox
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxStatusPending, models.OutboxStatusFailed}, now, models.OutboxStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if maxAttempts > 0 && row.Attempts >= maxAttempts {
				msg := fmt.Sprintf("max delivery attempts exceeded (%d)", maxAttempts)
				if err := tx.Model(&models.EmailOutbox{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
					"status":          models.OutboxStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&models.EmailOutbox{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"status":          models.OutboxStatusProcessing,
				"locked_at":       &now,
				"locked_by":       &lockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
			row.Status = models.OutboxStatusProcessing
			row.LockedAt = &now
			row.LockedBy = &lockedBy
			row.Attempts++
			claimed = append(claimed, row)
		}
		return nil
	})
	return claimed, err
}

func (s *Store) MarkEmailSent(ctx context.Context, id int, at time.Time) error {
	return s.conn(ctx).Model(&models.EmailOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          models.OutboxStatusSent,
			"sent_at":         &at,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
}

// MarkEmailFailed schedules a retry at next, or moves the row to DEAD when
// next is nil.
func (s *Store) MarkEmailFailed(ctx context.Context, id int, msg string, next *time.Time) error {
	status := models.OutboxStatusFailed
	if next == nil {
		status = models.OutboxStatusDead
	}
	return s.conn(ctx).Model(&models.EmailOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          status,
			"last_error":      &msg,
			"next_attempt_at": next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error
}

// ReplayDeadEmails puts every DEAD row back in the queue with a fresh
// attempt budget.
func (s *Store) ReplayDeadEmails(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res := s.conn(ctx).Model(&models.EmailOutbox{}).
		Where("status = ?", models.OutboxStatusDead).
		Updates(map[string]interface{}{
			"status":          models.OutboxStatusPending,
			"attempts":        0,
			"next_attempt_at": &now,
			"last_error":      nil,
		})
	return res.RowsAffected, res.Error
}
