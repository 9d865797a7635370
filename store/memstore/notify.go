package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
)

func notifications(d *data) map[int]models.Notification { return d.notifications }
func outbox(d *data) map[int]models.EmailOutbox { return d.outbox }

func (s *Store) FindOpenNotification(ctx context.Context, userId int, typ, tablename string, recordId int) (*models.Notification, error) {
	rows := filter(s, notifications, func(n models.Notification) bool {
		return n.IsOpen != nil && *n.IsOpen && n.UserId == userId && n.Type == typ && n.Tablename == tablename && n.RecordId == recordId
	})
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return rows[0], nil
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.ID = s.allocID(n.ID)
	return insertUnique(s, notifications, n.ID, *n, func(x models.Notification) bool {
		return x.IsOpen != nil && n.IsOpen != nil &&
			x.UserId == n.UserId && x.Type == n.Type && x.Tablename == n.Tablename && x.RecordId == n.RecordId
	})
}

func (s *Store) ListNotifications(ctx context.Context, f models.NotificationFilter) ([]*models.Notification, error) {
	return filter(s, notifications, func(n models.Notification) bool {
		return n.IsOpen != nil && f.Matches(&n)
	}), nil
}

// ListAllNotifications includes retracted rows.
func (s *Store) ListAllNotifications() []*models.Notification {
	return filter(s, notifications, nil)
}

func (s *Store) RetractNotifications(ctx context.Context, f models.NotificationFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, row := range s.d.notifications {
		if row.IsOpen == nil || !f.Matches(&row) {
			continue
		}
		row.Deleted = true
		row.IsOpen = nil
		s.d.notifications[id] = row
		n++
	}
	return n, nil
}

func (s *Store) ListSiteOperators(ctx context.Context, siteIds []int, roles []string) ([]*models.SiteOperator, error) {
	wantRole := map[string]bool{}
	for _, r := range roles {
		wantRole[r] = true
	}
	var out []*models.SiteOperator
	for _, siteId := range utils.SortedUniqueInts(siteIds) {
		site, err := s.GetSite(ctx, siteId)
		if err != nil {
			continue
		}
		orgPe := -1
		if org, err := s.GetOrganisation(ctx, site.OrganisationId); err == nil {
			orgPe = org.PeId
		}
		seen := map[int]bool{}
		for _, m := range filter(s, memberships, func(m models.RoleMembership) bool {
			return !m.Deleted && wantRole[m.Role] && m.PeId != nil && (*m.PeId == site.PeId || *m.PeId == orgPe)
		}) {
			if seen[m.UserId] {
				continue
			}
			u, err := s.GetUser(ctx, m.UserId)
			if err != nil {
				continue
			}
			seen[m.UserId] = true
			out = append(out, &models.SiteOperator{
				SiteId:   site.ID,
				SiteName: site.Name,
				UserId:   u.ID,
				PeId:     u.PeId,
				Email:    u.Email,
				Language: u.Language,
			})
		}
	}
	sortOperators(out)
	return out, nil
}

func sortOperators(ops []*models.SiteOperator) {
	for i := 1; i < len(ops); i++ {
		for j := i; j > 0 && (ops[j].SiteId < ops[j-1].SiteId || (ops[j].SiteId == ops[j-1].SiteId && ops[j].UserId < ops[j-1].UserId)); j-- {
			ops[j], ops[j-1] = ops[j-1], ops[j]
		}
	}
}

func (s *Store) CreateEmailOutbox(ctx context.Context, e *models.EmailOutbox) error {
	e.ID = s.allocID(e.ID)
	put(s, outbox, e.ID, *e)
	return nil
}

func (s *Store) ListEmailOutbox() []*models.EmailOutbox {
	return filter(s, outbox, nil)
}

func (s *Store) ClaimEmails(ctx context.Context, now, staleBefore time.Time, limit, maxAttempts int, lockedBy string) ([]*models.EmailOutbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.d.outbox))
	for id := range s.d.outbox {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var out []*models.EmailOutbox
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		e := s.d.outbox[id]
		due := (e.Status == models.OutboxStatusPending || e.Status == models.OutboxStatusFailed) &&
			(e.NextAttemptAt == nil || !e.NextAttemptAt.After(now))
		stale := e.Status == models.OutboxStatusProcessing && e.LockedAt != nil && !e.LockedAt.After(staleBefore)
		if !due && !stale {
			continue
		}
		if maxAttempts > 0 && e.Attempts >= maxAttempts {
			msg := fmt.Sprintf("max delivery attempts exceeded (%d)", maxAttempts)
			e.Status, e.LastError = models.OutboxStatusDead, &msg
			e.NextAttemptAt, e.LockedAt, e.LockedBy = nil, nil, nil
			s.d.outbox[id] = e
			continue
		}
		at, by := now, lockedBy
		e.Status = models.OutboxStatusProcessing
		e.LockedAt, e.LockedBy = &at, &by
		e.Attempts++
		e.LastError, e.NextAttemptAt = nil, nil
		s.d.outbox[id] = e
		c := e
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) MarkEmailSent(ctx context.Context, id int, at time.Time) error {
	return s.updateOutbox(id, func(e *models.EmailOutbox) {
		e.Status, e.SentAt = models.OutboxStatusSent, &at
		e.LockedAt, e.LockedBy, e.NextAttemptAt = nil, nil, nil
	})
}

func (s *Store) MarkEmailFailed(ctx context.Context, id int, msg string, next *time.Time) error {
	return s.updateOutbox(id, func(e *models.EmailOutbox) {
		e.Status = models.OutboxStatusFailed
		if next == nil {
			e.Status = models.OutboxStatusDead
		}
		e.LastError, e.NextAttemptAt = &msg, next
		e.LockedAt, e.LockedBy = nil, nil
	})
}

func (s *Store) ReplayDeadEmails(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for id, e := range s.d.outbox {
		if e.Status != models.OutboxStatusDead {
			continue
		}
		e.Status, e.Attempts, e.NextAttemptAt, e.LastError = models.OutboxStatusPending, 0, &now, nil
		s.d.outbox[id] = e
		n++
	}
	return n, nil
}

func (s *Store) updateOutbox(id int, fn func(e *models.EmailOutbox)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.d.outbox[id]
	if !ok {
		return utils.ErrorRecordNotFound
	}
	fn(&e)
	s.d.outbox[id] = e
	return nil
}
