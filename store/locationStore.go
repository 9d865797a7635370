package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

func (s *Store) GetLocation(ctx context.Context, id int) (*models.Location, error) {
	return first[models.Location](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) CreateLocation(ctx context.Context, l *models.Location) error {
	return create(s.conn(ctx), l)
}

func (s *Store) SaveLocation(ctx context.Context, l *models.Location) error {
	return s.conn(ctx).Save(l).Error
}

func (s *Store) ListLocationChildren(ctx context.Context, parentId int) ([]*models.Location, error) {
	return list[models.Location](s.conn(ctx).Where("parent_id = ? AND deleted = ?", parentId, false).Order("id ASC"))
}

// ListLocationsPage pages through the features of one level (nil = unlevelled) by id.
func (s *Store) ListLocationsPage(ctx context.Context, level *string, afterId int, limit int) ([]*models.Location, error) {
	q := s.conn(ctx).Where("id > ? AND deleted = ?", afterId, false)
	if level == nil {
		q = q.Where("level IS NULL")
	} else {
		q = q.Where("level = ?", *level)
	}
	return list[models.Location](q.Order("id ASC").Limit(limit))
}

// ListLocationsByLevel returns the features of level, optionally restricted to one parent.
func (s *Store) ListLocationsByLevel(ctx context.Context, level string, parentId *int) ([]*models.Location, error) {
	q := s.conn(ctx).Where("level = ? AND deleted = ?", level, false)
	if parentId != nil {
		q = q.Where("parent_id = ?", *parentId)
	}
	return list[models.Location](q.Order("id ASC"))
}
