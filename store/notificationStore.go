package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"gorm.io/gorm"
)

func (s *Store) FindOpenNotification(ctx context.Context, userId int, typ, tablename string, recordId int) (*models.Notification, error) {
	return first[models.Notification](s.conn(ctx).
		Where("user_id = ? AND type = ? AND tablename = ? AND record_id = ? AND is_open = ?", userId, typ, tablename, recordId, true))
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return create(s.conn(ctx), n)
}

func notificationScope(db *gorm.DB, f models.NotificationFilter) *gorm.DB {
	q := db.Where("is_open = ? AND deleted = ?", true, false)
	if len(f.UserIds) > 0 {
		q = q.Where("user_id IN ?", f.UserIds)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Tablename != "" {
		q = q.Where("tablename = ?", f.Tablename)
	}
	if f.RecordId != 0 {
		q = q.Where("record_id = ?", f.RecordId)
	}
	return q
}

func (s *Store) ListNotifications(ctx context.Context, f models.NotificationFilter) ([]*models.Notification, error) {
	return list[models.Notification](notificationScope(s.conn(ctx).Model(&models.Notification{}), f).Order("id ASC"))
}

// RetractNotifications soft-deletes the open notifications matching f and
// releases their slot in the open-row unique index.
func (s *Store) RetractNotifications(ctx context.Context, f models.NotificationFilter) (int64, error) {
	res := notificationScope(s.conn(ctx).Model(&models.Notification{}), f).
		Updates(map[string]interface{}{"deleted": true, "is_open": nil})
	return res.RowsAffected, res.Error
}

// ListSiteOperators returns the users holding one of roles on a site's entity
// or on the entity of the organisation running the site.
func (s *Store) ListSiteOperators(ctx context.Context, siteIds []int, roles []string) ([]*models.SiteOperator, error) {
	if len(siteIds) == 0 || len(roles) == 0 {
		return nil, nil
	}
	var out []*models.SiteOperator
	err := s.conn(ctx).Raw(`
		SELECT DISTINCT s.id AS site_id, s.name AS site_name, u.id AS user_id, u.pe_id AS pe_id,
			u.email AS email, u.language AS language
		FROM org_site s
		JOIN org_organisation o ON o.id = s.organisation_id
		JOIN auth_membership m ON m.deleted = 0 AND m.role IN ? AND (m.pe_id = s.pe_id OR m.pe_id = o.pe_id)
		JOIN auth_user u ON u.id = m.user_id AND u.deleted = 0
		WHERE s.id IN ? AND s.deleted = 0
		ORDER BY s.id ASC, u.id ASC`, roles, siteIds).Scan(&out).Error
	return out, err
}

func (s *Store) CreateEmailOutbox(ctx context.Context, e *models.EmailOutbox) error {
	return create(s.conn(ctx), e)
}
