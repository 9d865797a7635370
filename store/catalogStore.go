package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

// Writers used by fixtures and ops endpoints.

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return create(s.conn(ctx), u)
}

func (s *Store) CreatePerson(ctx context.Context, p *models.Person) error {
	return create(s.conn(ctx), p)
}

func (s *Store) CreateItem(ctx context.Context, it *models.Item) error {
	return create(s.conn(ctx), it)
}

func (s *Store) CreateItemPack(ctx context.Context, p *models.ItemPack) error {
	return create(s.conn(ctx), p)
}

func (s *Store) CreateKitItem(ctx context.Context, k *models.KitItem) error {
	return create(s.conn(ctx), k)
}

func (s *Store) CreateHumanResource(ctx context.Context, h *models.HumanResource) error {
	return create(s.conn(ctx), h)
}

func (s *Store) CreateCourse(ctx context.Context, c *models.Course) error {
	return create(s.conn(ctx), c)
}

func (s *Store) CreateTraining(ctx context.Context, t *models.Training) error {
	return create(s.conn(ctx), t)
}

func (s *Store) GetTraining(ctx context.Context, id int) (*models.Training, error) {
	return first[models.Training](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) GetOrderItem(ctx context.Context, id int) (*models.OrderItem, error) {
	return first[models.OrderItem](s.conn(ctx).Where("id = ?", id))
}

func (s *Store) GetTrackItem(ctx context.Context, id int) (*models.TrackItem, error) {
	return first[models.TrackItem](s.conn(ctx).Where("id = ?", id))
}
