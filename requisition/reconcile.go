package requisition

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// progress derives a none/partial/complete status from per-item quantities.
func progress(items []*models.ReqItem, done func(*models.ReqItem) decimal.Decimal) models.ReqProgress {
	if len(items) == 0 {
		return models.ReqProgressNone
	}
	complete, started := true, false
	for _, it := range items {
		q := done(it)
		if q.IsPositive() {
			started = true
		}
		if q.LessThan(it.Quantity) {
			complete = false
		}
	}
	switch {
	case complete:
		return models.ReqProgressComplete
	case started:
		return models.ReqProgressPartial
	}
	return models.ReqProgressNone
}

func transitOf(it *models.ReqItem) decimal.Decimal { return it.QuantityTransit }
func fulfilOf(it *models.ReqItem) decimal.Decimal { return it.QuantityFulfil }

// Reconcile derives the transit and fulfil statuses of a requisition from
// its items. An approved requisition whose items are all in transit is
// completed and its req_fulfil notifications retracted; otherwise the
// operators of sourcing sites that have dispatched all their lines are
// released from theirs.
func (s *Service) Reconcile(ctx context.Context, reqID int) error {
	req, err := s.st.GetReq(ctx, reqID)
	if err != nil {
		return errors.Wrapf(err, "requisition %d", reqID)
	}
	items, err := s.st.ListReqItems(ctx, reqID)
	if err != nil {
		return errors.Wrap(err, "list requisition items")
	}
	transit := progress(items, transitOf)
	fulfil := progress(items, fulfilOf)

	workflow := req.WorkflowStatus
	if workflow == models.ReqStatusApproved && transit == models.ReqProgressComplete {
		workflow = models.ReqStatusCompleted
	}
	if workflow != req.WorkflowStatus || transit != req.TransitStatus || fulfil != req.FulfilStatus {
		if err := s.st.UpdateReqStatus(ctx, req.ID, workflow, transit, fulfil); err != nil {
			return errors.Wrap(err, "update requisition status")
		}
		req.WorkflowStatus, req.TransitStatus, req.FulfilStatus = workflow, transit, fulfil
	}

	switch workflow {
	case models.ReqStatusCompleted:
		_, err := s.fabric.Retract(ctx, models.NotificationFilter{
			Type:      models.NotificationReqFulfil,
			Tablename: "inv_req",
			RecordId:  req.ID,
		})
		return err
	case models.ReqStatusApproved:
		return s.retractDispatchedSites(ctx, req, items)
	}
	return nil
}

// retractDispatchedSites retracts the req_fulfil notification of every
// operator whose sourcing sites of req have all their lines in transit.
// An operator of a site that still has lines to ship keeps it.
func (s *Service) retractDispatchedSites(ctx context.Context, req *models.Req, items []*models.ReqItem) error {
	pending := map[int]bool{}
	var siteIDs []int
	for _, it := range items {
		if it.SiteId == nil {
			continue
		}
		if _, seen := pending[*it.SiteId]; !seen {
			siteIDs = append(siteIDs, *it.SiteId)
			pending[*it.SiteId] = false
		}
		if it.QuantityTransit.LessThan(it.Quantity) {
			pending[*it.SiteId] = true
		}
	}
	groups, err := s.fabric.OperatorsForSites(ctx, siteIDs)
	if err != nil {
		return err
	}

	busy := map[int]bool{}
	for siteID, g := range groups {
		if !pending[siteID] {
			continue
		}
		for _, op := range g.Operators {
			busy[op.UserId] = true
		}
	}
	var release []int
	for siteID, g := range groups {
		if pending[siteID] {
			continue
		}
		for _, op := range g.Operators {
			if !busy[op.UserId] {
				release = append(release, op.UserId)
			}
		}
	}
	if len(release) == 0 {
		return nil
	}
	_, err = s.fabric.Retract(ctx, models.NotificationFilter{
		UserIds:   release,
		Type:      models.NotificationReqFulfil,
		Tablename: "inv_req",
		RecordId:  req.ID,
	})
	return err
}
