package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
)

func (s *Store) GetEntity(ctx context.Context, id int) (*models.Entity, error) {
	return first[models.Entity](s.conn(ctx).Where("id = ?", id))
}

func (s *Store) GetEntityByName(ctx context.Context, name string) (*models.Entity, error) {
	return first[models.Entity](s.conn(ctx).Where("name = ?", name))
}

func (s *Store) CreateEntity(ctx context.Context, e *models.Entity) error {
	return create(s.conn(ctx), e)
}

func (s *Store) UpdateEntityInstance(ctx context.Context, id int, table string, instanceId int) error {
	return s.conn(ctx).Model(&models.Entity{}).Where("id = ?", id).
		Updates(map[string]interface{}{"instance_table": table, "instance_id": instanceId}).Error
}

// DeleteEntity removes the entity and every affiliation edge touching it.
func (s *Store) DeleteEntity(ctx context.Context, id int) error {
	db := s.conn(ctx)
	if err := db.Where("parent_id = ? OR child_id = ?", id, id).Delete(&models.Affiliation{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Entity{}).Error
}

func (s *Store) ListRealmEntities(ctx context.Context, prefix string) ([]*models.Entity, error) {
	return list[models.Entity](s.conn(ctx).
		Where("kind = ? AND name LIKE ?", models.EntityKindRealm, prefix+"%").
		Order("id ASC"))
}

func (s *Store) ListAffiliationsByChild(ctx context.Context, childId int) ([]*models.Affiliation, error) {
	return list[models.Affiliation](s.conn(ctx).Where("child_id = ?", childId).Order("id ASC"))
}

func (s *Store) ListAffiliationsByParent(ctx context.Context, parentId int) ([]*models.Affiliation, error) {
	return list[models.Affiliation](s.conn(ctx).Where("parent_id = ?", parentId).Order("id ASC"))
}

func (s *Store) CreateAffiliation(ctx context.Context, a *models.Affiliation) error {
	return create(s.conn(ctx), a)
}

func (s *Store) DeleteAffiliation(ctx context.Context, parentId, childId int, role string) error {
	return s.conn(ctx).
		Where("parent_id = ? AND child_id = ? AND role = ?", parentId, childId, role).
		Delete(&models.Affiliation{}).Error
}

// GetRealmEntity reads realm_entity of row id in table.
func (s *Store) GetRealmEntity(ctx context.Context, table string, id int) (*int, error) {
	var rows []struct {
		RealmEntity *int
	}
	if err := s.conn(ctx).Table(table).Select("realm_entity").Where("id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return rows[0].RealmEntity, nil
}

func (s *Store) UpdateRealmEntity(ctx context.Context, table string, id int, realm *int) error {
	ctx = utils.SkipRealmInContext(ctx)
	return s.conn(ctx).Table(table).Where("id = ?", id).Update("realm_entity", realm).Error
}

// CountRealmReferences counts rows of tables whose realm_entity is entityId.
func (s *Store) CountRealmReferences(ctx context.Context, entityId int, tables []string) (int64, error) {
	var total int64
	for _, t := range tables {
		var n int64
		if err := s.conn(ctx).Table(t).Where("realm_entity = ?", entityId).Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
