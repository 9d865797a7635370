package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

func (s *Store) CreateSend(ctx context.Context, send *models.Send) error {
	return create(s.conn(ctx), send)
}

func (s *Store) GetSend(ctx context.Context, id int) (*models.Send, error) {
	return first[models.Send](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) UpdateSendStatus(ctx context.Context, id int, status models.ShipmentStatus) error {
	return s.conn(ctx).Model(&models.Send{}).Where("id = ?", id).Update("status", status).Error
}

func (s *Store) CreateRecv(ctx context.Context, recv *models.Recv) error {
	return create(s.conn(ctx), recv)
}

func (s *Store) GetRecv(ctx context.Context, id int) (*models.Recv, error) {
	return first[models.Recv](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) UpdateRecvStatus(ctx context.Context, id int, status models.ShipmentStatus) error {
	return s.conn(ctx).Model(&models.Recv{}).Where("id = ?", id).Update("status", status).Error
}

func (s *Store) CreateTrackItem(ctx context.Context, t *models.TrackItem) error {
	return create(s.conn(ctx), t)
}

func (s *Store) ListTrackItemsBySend(ctx context.Context, sendId int) ([]*models.TrackItem, error) {
	return list[models.TrackItem](s.conn(ctx).Where("send_id = ? AND deleted = ?", sendId, false).Order("id ASC"))
}

func (s *Store) ListTrackItemsByRecv(ctx context.Context, recvId int) ([]*models.TrackItem, error) {
	return list[models.TrackItem](s.conn(ctx).Where("recv_id = ? AND deleted = ?", recvId, false).Order("id ASC"))
}

// UpdateTrackItem saves the shipment links, counts and status of a track item.
// Goes through the model so the realm plugin re-resolves ownership.
func (s *Store) UpdateTrackItem(ctx context.Context, t *models.TrackItem) error {
	return s.conn(ctx).Model(t).Select("send_id", "recv_id", "recv_quantity", "status", "realm_entity").Updates(t).Error
}
