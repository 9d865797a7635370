package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

func (s *Store) GetUser(ctx context.Context, id int) (*models.User, error) {
	return first[models.User](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) GetPerson(ctx context.Context, id int) (*models.Person, error) {
	return first[models.Person](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) GetUserByPerson(ctx context.Context, personId int) (*models.User, error) {
	return first[models.User](s.conn(ctx).
		Joins("JOIN pr_person p ON p.user_id = auth_user.id AND p.deleted = ?", false).
		Where("p.id = ? AND auth_user.deleted = ?", personId, false))
}

// ListUsersByEntity returns the users represented by entity peId
// (the user's own entity or the entity of the linked person).
func (s *Store) ListUsersByEntity(ctx context.Context, peId int) ([]*models.User, error) {
	return list[models.User](s.conn(ctx).
		Where("auth_user.deleted = ?", false).
		Where("auth_user.pe_id = ? OR auth_user.id IN (?)", peId,
			s.conn(ctx).Model(&models.Person{}).Select("user_id").Where("pe_id = ? AND user_id IS NOT NULL", peId)).
		Order("auth_user.id ASC"))
}

func (s *Store) ListMemberships(ctx context.Context) ([]*models.RoleMembership, error) {
	return list[models.RoleMembership](s.conn(ctx).Where("deleted = ?", false).Order("id ASC"))
}

func (s *Store) ListUserMemberships(ctx context.Context, userId int) ([]*models.RoleMembership, error) {
	return list[models.RoleMembership](s.conn(ctx).Where("user_id = ? AND deleted = ?", userId, false).Order("id ASC"))
}

func (s *Store) CreateMembership(ctx context.Context, m *models.RoleMembership) error {
	return create(s.conn(ctx), m)
}

func (s *Store) DeleteMembership(ctx context.Context, userId int, role string, peId *int) (int64, error) {
	q := s.conn(ctx).Model(&models.RoleMembership{}).Where("user_id = ? AND role = ? AND deleted = ?", userId, role, false)
	if peId == nil {
		q = q.Where("pe_id IS NULL")
	} else {
		q = q.Where("pe_id = ?", *peId)
	}
	res := q.Update("deleted", true)
	return res.RowsAffected, res.Error
}

func (s *Store) ListHumanResources(ctx context.Context, personId int) ([]*models.HumanResource, error) {
	return list[models.HumanResource](s.conn(ctx).Where("person_id = ? AND deleted = ?", personId, false).Order("id ASC"))
}

func (s *Store) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	return first[models.Course](s.conn(ctx).Where("id = ?", id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](s.conn(ctx).Where("email = ? AND deleted = ?", email, false))
}
