package memstore

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

func locations(d *data) map[int]models.Location { return d.locations }

func (s *Store) GetLocation(ctx context.Context, id int) (*models.Location, error) {
	return get(s, locations, id, func(l models.Location) bool { return !l.Deleted })
}

func (s *Store) CreateLocation(ctx context.Context, l *models.Location) error {
	l.ID = s.allocID(l.ID)
	put(s, locations, l.ID, *l)
	return nil
}

func (s *Store) SaveLocation(ctx context.Context, l *models.Location) error {
	put(s, locations, l.ID, *l)
	return nil
}

func (s *Store) ListLocationChildren(ctx context.Context, parentId int) ([]*models.Location, error) {
	return filter(s, locations, func(l models.Location) bool {
		return !l.Deleted && l.ParentId != nil && *l.ParentId == parentId
	}), nil
}

func (s *Store) ListLocationsPage(ctx context.Context, level *string, afterId int, limit int) ([]*models.Location, error) {
	rows := filter(s, locations, func(l models.Location) bool {
		if l.Deleted || l.ID <= afterId {
			return false
		}
		if level == nil {
			return l.Level == nil
		}
		return l.Level != nil && *l.Level == *level
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) ListLocationsByLevel(ctx context.Context, level string, parentId *int) ([]*models.Location, error) {
	return filter(s, locations, func(l models.Location) bool {
		if l.Deleted || l.Level == nil || *l.Level != level {
			return false
		}
		return parentId == nil || (l.ParentId != nil && *l.ParentId == *parentId)
	}), nil
}
