package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

func (s *Store) CreateReq(ctx context.Context, req *models.Req) error {
	return create(s.conn(ctx).Omit("Items"), req)
}

func (s *Store) GetReq(ctx context.Context, id int) (*models.Req, error) {
	return first[models.Req](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) UpdateReqStatus(ctx context.Context, id int, workflow models.ReqWorkflowStatus, transit, fulfil models.ReqProgress) error {
	return s.conn(ctx).Model(&models.Req{}).Where("id = ?", id).Updates(map[string]interface{}{
		"workflow_status": workflow,
		"transit_status":  transit,
		"fulfil_status":   fulfil,
	}).Error
}

func (s *Store) CreateReqItem(ctx context.Context, item *models.ReqItem) error {
	return create(s.conn(ctx), item)
}

func (s *Store) GetReqItem(ctx context.Context, id int) (*models.ReqItem, error) {
	return first[models.ReqItem](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) ListReqItems(ctx context.Context, reqId int) ([]*models.ReqItem, error) {
	return list[models.ReqItem](s.conn(ctx).Where("req_id = ? AND deleted = ?", reqId, false).Order("id ASC"))
}

func (s *Store) UpdateReqItem(ctx context.Context, item *models.ReqItem) error {
	return s.conn(ctx).Model(item).Select("site_id", "quantity", "quantity_reserved", "quantity_transit", "quantity_fulfil", "realm_entity").Updates(item).Error
}

func (s *Store) ListApproversForEntities(ctx context.Context, peIds []int) ([]*models.Approver, error) {
	if len(peIds) == 0 {
		return nil, nil
	}
	return list[models.Approver](s.conn(ctx).Where("pe_id IN ? AND deleted = ?", peIds, false).Order("id ASC"))
}

func (s *Store) CreateApprover(ctx context.Context, a *models.Approver) error {
	return create(s.conn(ctx), a)
}

func (s *Store) CreateReqApproval(ctx context.Context, a *models.ReqApproval) error {
	return create(s.conn(ctx), a)
}

func (s *Store) ListReqApprovals(ctx context.Context, reqId int) ([]*models.ReqApproval, error) {
	return list[models.ReqApproval](s.conn(ctx).Where("req_id = ?", reqId).Order("id ASC"))
}

func (s *Store) CreateOrderItem(ctx context.Context, o *models.OrderItem) error {
	return create(s.conn(ctx), o)
}

func (s *Store) ListOpenOrderItems(ctx context.Context, reqId, itemId int, purchaseRef string) ([]*models.OrderItem, error) {
	return list[models.OrderItem](s.conn(ctx).
		Where("req_id = ? AND item_id = ? AND purchase_ref = ? AND recv_id IS NULL AND deleted = ?", reqId, itemId, purchaseRef, false).
		Order("id ASC"))
}

// StampOrderItemRecv binds an order line to recvId unless another shipment already claimed it.
func (s *Store) StampOrderItemRecv(ctx context.Context, id, recvId int) (bool, error) {
	res := s.conn(ctx).Model(&models.OrderItem{}).Where("id = ? AND recv_id IS NULL", id).Update("recv_id", recvId)
	return res.RowsAffected == 1, res.Error
}
