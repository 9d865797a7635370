package memstore

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
)

func reqs(d *data) map[int]models.Req { return d.reqs }
func reqItems(d *data) map[int]models.ReqItem { return d.reqItems }
func approvers(d *data) map[int]models.Approver { return d.approvers }
func approvals(d *data) map[int]models.ReqApproval { return d.approvals }
func orderItems(d *data) map[int]models.OrderItem { return d.orderItems }
func sends(d *data) map[int]models.Send { return d.sends }
func recvs(d *data) map[int]models.Recv { return d.recvs }
func tracks(d *data) map[int]models.TrackItem { return d.tracks }

func (s *Store) CreateReq(ctx context.Context, req *models.Req) error {
	req.ID = s.allocID(req.ID)
	realm, err := s.resolveRealm(ctx, "inv_req", req.Row(), req.RealmEntity)
	if err != nil {
		return err
	}
	req.RealmEntity = realm
	row := *req
	row.Items = nil
	return insertUnique(s, reqs, req.ID, row, func(x models.Req) bool { return x.ReqRef == req.ReqRef })
}

func (s *Store) GetReq(ctx context.Context, id int) (*models.Req, error) {
	return get(s, reqs, id, func(r models.Req) bool { return !r.Deleted })
}

func (s *Store) UpdateReqStatus(ctx context.Context, id int, workflow models.ReqWorkflowStatus, transit, fulfil models.ReqProgress) error {
	return update(s, reqs, id, func(r *models.Req) {
		r.WorkflowStatus = workflow
		r.TransitStatus = transit
		r.FulfilStatus = fulfil
	})
}

func (s *Store) CreateReqItem(ctx context.Context, item *models.ReqItem) error {
	item.ID = s.allocID(item.ID)
	realm, err := s.resolveRealm(ctx, "inv_req_item", item.Row(), item.RealmEntity)
	if err != nil {
		return err
	}
	item.RealmEntity = realm
	put(s, reqItems, item.ID, *item)
	return nil
}

func (s *Store) GetReqItem(ctx context.Context, id int) (*models.ReqItem, error) {
	return get(s, reqItems, id, func(i models.ReqItem) bool { return !i.Deleted })
}

func (s *Store) ListReqItems(ctx context.Context, reqId int) ([]*models.ReqItem, error) {
	return filter(s, reqItems, func(i models.ReqItem) bool { return !i.Deleted && i.ReqId == reqId }), nil
}

func (s *Store) UpdateReqItem(ctx context.Context, item *models.ReqItem) error {
	realm, err := s.resolveRealm(ctx, "inv_req_item", item.Row(), item.RealmEntity)
	if err != nil {
		return err
	}
	item.RealmEntity = realm
	return update(s, reqItems, item.ID, func(v *models.ReqItem) {
		v.SiteId = item.SiteId
		v.Quantity = item.Quantity
		v.QuantityReserved = item.QuantityReserved
		v.QuantityTransit = item.QuantityTransit
		v.QuantityFulfil = item.QuantityFulfil
		v.RealmEntity = item.RealmEntity
	})
}

func (s *Store) CreateApprover(ctx context.Context, a *models.Approver) error {
	a.ID = s.allocID(a.ID)
	realm, err := s.resolveRealm(ctx, "inv_req_approver", a.Row(), a.RealmEntity)
	if err != nil {
		return err
	}
	a.RealmEntity = realm
	return insertUnique(s, approvers, a.ID, *a, func(x models.Approver) bool {
		return !x.Deleted && x.PeId == a.PeId && x.PersonId == a.PersonId
	})
}

func (s *Store) ListApproversForEntities(ctx context.Context, peIds []int) ([]*models.Approver, error) {
	want := make(map[int]bool, len(peIds))
	for _, id := range peIds {
		want[id] = true
	}
	return filter(s, approvers, func(a models.Approver) bool { return !a.Deleted && want[a.PeId] }), nil
}

func (s *Store) CreateReqApproval(ctx context.Context, a *models.ReqApproval) error {
	a.ID = s.allocID(a.ID)
	return insertUnique(s, approvals, a.ID, *a, func(x models.ReqApproval) bool {
		return x.ReqId == a.ReqId && x.PersonId == a.PersonId
	})
}

func (s *Store) ListReqApprovals(ctx context.Context, reqId int) ([]*models.ReqApproval, error) {
	return filter(s, approvals, func(a models.ReqApproval) bool { return a.ReqId == reqId }), nil
}

func (s *Store) CreateOrderItem(ctx context.Context, o *models.OrderItem) error {
	o.ID = s.allocID(o.ID)
	realm, err := s.resolveRealm(ctx, "inv_order_item", o.Row(), o.RealmEntity)
	if err != nil {
		return err
	}
	o.RealmEntity = realm
	put(s, orderItems, o.ID, *o)
	return nil
}

func (s *Store) GetOrderItem(ctx context.Context, id int) (*models.OrderItem, error) {
	return get(s, orderItems, id, nil)
}

func (s *Store) ListOpenOrderItems(ctx context.Context, reqId, itemId int, purchaseRef string) ([]*models.OrderItem, error) {
	return filter(s, orderItems, func(o models.OrderItem) bool {
		return !o.Deleted && o.RecvId == nil && o.ReqId == reqId && o.ItemId == itemId && o.PurchaseRef == purchaseRef
	}), nil
}

func (s *Store) StampOrderItemRecv(ctx context.Context, id, recvId int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.d.orderItems[id]
	if !ok || o.RecvId != nil {
		return false, nil
	}
	o.RecvId = &recvId
	s.d.orderItems[id] = o
	return true, nil
}

func (s *Store) CreateSend(ctx context.Context, send *models.Send) error {
	send.ID = s.allocID(send.ID)
	realm, err := s.resolveRealm(ctx, "inv_send", send.Row(), send.RealmEntity)
	if err != nil {
		return err
	}
	send.RealmEntity = realm
	return insertUnique(s, sends, send.ID, *send, func(x models.Send) bool { return x.SendRef == send.SendRef })
}

func (s *Store) GetSend(ctx context.Context, id int) (*models.Send, error) {
	return get(s, sends, id, func(v models.Send) bool { return !v.Deleted })
}

func (s *Store) UpdateSendStatus(ctx context.Context, id int, status models.ShipmentStatus) error {
	return update(s, sends, id, func(v *models.Send) { v.Status = status })
}

func (s *Store) CreateRecv(ctx context.Context, recv *models.Recv) error {
	recv.ID = s.allocID(recv.ID)
	realm, err := s.resolveRealm(ctx, "inv_recv", recv.Row(), recv.RealmEntity)
	if err != nil {
		return err
	}
	recv.RealmEntity = realm
	return insertUnique(s, recvs, recv.ID, *recv, func(x models.Recv) bool { return x.RecvRef == recv.RecvRef })
}

func (s *Store) GetRecv(ctx context.Context, id int) (*models.Recv, error) {
	return get(s, recvs, id, func(v models.Recv) bool { return !v.Deleted })
}

func (s *Store) UpdateRecvStatus(ctx context.Context, id int, status models.ShipmentStatus) error {
	return update(s, recvs, id, func(v *models.Recv) { v.Status = status })
}

func (s *Store) CreateTrackItem(ctx context.Context, t *models.TrackItem) error {
	t.ID = s.allocID(t.ID)
	realm, err := s.resolveRealm(ctx, "inv_track_item", t.Row(), t.RealmEntity)
	if err != nil {
		return err
	}
	t.RealmEntity = realm
	put(s, tracks, t.ID, *t)
	return nil
}

func (s *Store) GetTrackItem(ctx context.Context, id int) (*models.TrackItem, error) {
	return get(s, tracks, id, nil)
}

func (s *Store) ListTrackItemsBySend(ctx context.Context, sendId int) ([]*models.TrackItem, error) {
	return filter(s, tracks, func(t models.TrackItem) bool {
		return !t.Deleted && t.SendId != nil && *t.SendId == sendId
	}), nil
}

func (s *Store) ListTrackItemsByRecv(ctx context.Context, recvId int) ([]*models.TrackItem, error) {
	return filter(s, tracks, func(t models.TrackItem) bool {
		return !t.Deleted && t.RecvId != nil && *t.RecvId == recvId
	}), nil
}

func (s *Store) UpdateTrackItem(ctx context.Context, t *models.TrackItem) error {
	realm, err := s.resolveRealm(ctx, "inv_track_item", t.Row(), t.RealmEntity)
	if err != nil {
		return err
	}
	t.RealmEntity = realm
	return update(s, tracks, t.ID, func(v *models.TrackItem) {
		v.SendId = t.SendId
		v.RecvId = t.RecvId
		v.RecvQuantity = t.RecvQuantity
		v.Status = t.Status
		v.RealmEntity = t.RealmEntity
	})
}
