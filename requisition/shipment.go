package requisition

import (
	"context"
	"time"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ShipLine struct {
	ReqItemId     *int            `validate:"omitempty,gt=0"`
	ItemId        int             `validate:"required"`
	ItemPackId    int             `validate:"required"`
	SendInvItemId *int            `validate:"omitempty,gt=0"`
	Quantity      decimal.Decimal `validate:"-"`
}

type NewSend struct {
	SendRef  string     `validate:"max=64"`
	SiteId   int        `validate:"required"`
	ToSiteId *int       `validate:"omitempty,gt=0"`
	Comments string     `validate:"max=2000"`
	Lines    []ShipLine `validate:"required,min=1,dive"`
}

type NewRecv struct {
	RecvRef     string     `validate:"max=64"`
	SiteId      int        `validate:"required"`
	FromSiteId  *int       `validate:"omitempty,gt=0"`
	SendId      *int       `validate:"omitempty,gt=0"`
	PurchaseRef string     `validate:"max=64"`
	Lines       []ShipLine `validate:"required_without=SendId,dive"`

	// Counted overrides the received quantity of the lines of SendId, keyed
	// by track item id.
	Counted map[int]decimal.Decimal `validate:"-"`
}

func checkLines(lines []ShipLine) error {
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return errors.New("invalid input: Quantity: gt")
		}
	}
	return nil
}

// CreateSend prepares a shipment out of in.SiteId.
func (s *Service) CreateSend(ctx context.Context, in NewSend) (*models.Send, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := checkLines(in.Lines); err != nil {
		return nil, err
	}
	send := &models.Send{SendRef: in.SendRef, SiteId: in.SiteId, ToSiteId: in.ToSiteId, Status: models.ShipStatusInProcess, Date: time.Now().UTC(), Comments: in.Comments}
	err := s.st.Transaction(ctx, func(ctx context.Context) error {
		site, err := s.st.GetSite(ctx, in.SiteId)
		if err != nil {
			return errors.Wrapf(err, "site %d", in.SiteId)
		}
		if send.SendRef == "" {
			send.SendRef = newRef(site.Code, "WB")
		}
		if err := s.st.CreateSend(ctx, send); err != nil {
			return errors.Wrap(err, "create send")
		}
		for _, l := range in.Lines {
			if err := s.st.CreateTrackItem(ctx, &models.TrackItem{
				SendId:        &send.ID,
				ReqItemId:     l.ReqItemId,
				ItemId:        l.ItemId,
				ItemPackId:    l.ItemPackId,
				SendInvItemId: l.SendInvItemId,
				Quantity:      l.Quantity,
				Status:        models.TrackStatusPreparing,
			}); err != nil {
				return errors.Wrap(err, "create track item")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return send, nil
}

// ProcessSend dispatches a prepared shipment. Lines linked to a requisition
// item count as in transit when the shipment goes to the requisition's site.
func (s *Service) ProcessSend(ctx context.Context, sendID int) (send *models.Send, err error) {
	ctx, span := s.span(ctx, "ProcessSend")
	defer func() { endSpan(span, err) }()

	err = s.st.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if send, err = s.st.GetSend(ctx, sendID); err != nil {
			return errors.Wrapf(err, "send %d", sendID)
		}
		if send.Status != models.ShipStatusInProcess {
			return errors.Wrapf(ErrInvalidTransition, "send %s already processed", send.SendRef)
		}
		lines, err := s.st.ListTrackItemsBySend(ctx, send.ID)
		if err != nil {
			return errors.Wrap(err, "list track items")
		}
		if s.Stock != nil {
			if err := s.Stock.Dispatch(ctx, send, lines); err != nil {
				return err
			}
		}

		touched := map[int]bool{}
		for _, l := range lines {
			l.Status = models.TrackStatusTransit
			if err := s.st.UpdateTrackItem(ctx, l); err != nil {
				return errors.Wrap(err, "update track item")
			}
			if l.ReqItemId == nil {
				continue
			}
			item, req, err := s.lineTarget(ctx, *l.ReqItemId)
			if err != nil {
				return err
			}
			if item == nil || send.ToSiteId == nil || *send.ToSiteId != req.SiteId {
				continue
			}
			if !s.lineMatches("ProcessSend", l, item, &send.SiteId) {
				continue
			}
			qty, err := s.toReqPacks(ctx, item, l.ItemPackId, l.Quantity)
			if err != nil {
				return err
			}
			item.QuantityTransit = decimal.Min(item.Quantity, item.QuantityTransit.Add(qty))
			if err := s.st.UpdateReqItem(ctx, item); err != nil {
				return errors.Wrap(err, "update requisition item")
			}
			touched[req.ID] = true
		}

		if err := s.st.UpdateSendStatus(ctx, send.ID, models.ShipStatusSent); err != nil {
			return errors.Wrap(err, "update send status")
		}
		send.Status = models.ShipStatusSent
		for reqID := range touched {
			if err := s.Reconcile(ctx, reqID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Stock != nil {
		s.Stock.OnInvSendProcess(ctx, send)
	}
	return send, nil
}

// lineTarget loads the requisition item a shipment line refers to. A
// missing item is logged and yields nil.
func (s *Service) lineTarget(ctx context.Context, reqItemID int) (*models.ReqItem, *models.Req, error) {
	item, err := s.st.GetReqItem(ctx, reqItemID)
	if utils.IsNotFound(err) {
		config.LogError(s.logger, "requisition", "lineTarget", "requisition item of shipment line", reqItemID, err)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "requisition item %d", reqItemID)
	}
	req, err := s.st.GetReq(ctx, item.ReqId)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "requisition %d", item.ReqId)
	}
	return item, req, nil
}

// lineMatches reports whether a shipment line can count against the
// requisition item it names: same item and, when fromSite is given, shipped
// from the item's sourcing site. Mismatches are logged and skipped.
func (s *Service) lineMatches(funcName string, l *models.TrackItem, item *models.ReqItem, fromSite *int) bool {
	reason := ""
	switch {
	case l.ItemId != item.ItemId:
		reason = "shipment line is another item than its requisition item"
	case fromSite != nil && item.SiteId != nil && *item.SiteId != *fromSite:
		reason = "shipment line leaves another site than its requisition item is sourced at"
	default:
		return true
	}
	s.logger.WithFields(logrus.Fields{
		"field":         funcName,
		"track_item_id": l.ID,
		"req_item_id":   item.ID,
		"item_id":       l.ItemId,
	}).Warn(reason)
	return false
}

// CreateRecv registers an incoming shipment, either the arrival of a send
// (its lines are taken over) or a delivery described by in.Lines.
func (s *Service) CreateRecv(ctx context.Context, in NewRecv) (*models.Recv, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := checkLines(in.Lines); err != nil {
		return nil, err
	}
	recv := &models.Recv{RecvRef: in.RecvRef, SiteId: in.SiteId, FromSiteId: in.FromSiteId, SendId: in.SendId, PurchaseRef: in.PurchaseRef, Status: models.ShipStatusInProcess, Date: time.Now().UTC()}
	err := s.st.Transaction(ctx, func(ctx context.Context) error {
		site, err := s.st.GetSite(ctx, in.SiteId)
		if err != nil {
			return errors.Wrapf(err, "site %d", in.SiteId)
		}
		var sendLines []*models.TrackItem
		if in.SendId != nil {
			send, err := s.st.GetSend(ctx, *in.SendId)
			if err != nil {
				return errors.Wrapf(err, "send %d", *in.SendId)
			}
			if send.Status != models.ShipStatusSent {
				return errors.Wrapf(ErrInvalidTransition, "send %s is not in transit", send.SendRef)
			}
			if recv.FromSiteId == nil {
				recv.FromSiteId = utils.NewInt(send.SiteId)
			}
			if sendLines, err = s.st.ListTrackItemsBySend(ctx, send.ID); err != nil {
				return errors.Wrap(err, "list track items")
			}
		}
		if recv.RecvRef == "" {
			recv.RecvRef = newRef(site.Code, "GRN")
		}
		if err := s.st.CreateRecv(ctx, recv); err != nil {
			return errors.Wrap(err, "create recv")
		}
		for _, l := range sendLines {
			l.RecvId = &recv.ID
			if q, ok := in.Counted[l.ID]; ok {
				l.RecvQuantity = utils.NewDecimal(q)
			}
			if err := s.st.UpdateTrackItem(ctx, l); err != nil {
				return errors.Wrap(err, "update track item")
			}
		}
		for _, l := range in.Lines {
			if err := s.st.CreateTrackItem(ctx, &models.TrackItem{
				RecvId:     &recv.ID,
				ReqItemId:  l.ReqItemId,
				ItemId:     l.ItemId,
				ItemPackId: l.ItemPackId,
				Quantity:   l.Quantity,
				Status:     models.TrackStatusTransit,
			}); err != nil {
				return errors.Wrap(err, "create track item")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recv, nil
}

// ProcessRecv books an incoming shipment. Received quantities count as
// fulfilled on their requisition items, and open purchase order lines
// matching (requisition, item, purchase ref) are stamped with the receive.
func (s *Service) ProcessRecv(ctx context.Context, recvID int) (recv *models.Recv, err error) {
	ctx, span := s.span(ctx, "ProcessRecv")
	defer func() { endSpan(span, err) }()

	err = s.st.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if recv, err = s.st.GetRecv(ctx, recvID); err != nil {
			return errors.Wrapf(err, "recv %d", recvID)
		}
		if recv.Status != models.ShipStatusInProcess {
			return errors.Wrapf(ErrInvalidTransition, "recv %s already processed", recv.RecvRef)
		}
		lines, err := s.st.ListTrackItemsByRecv(ctx, recv.ID)
		if err != nil {
			return errors.Wrap(err, "list track items")
		}
		if s.Stock != nil {
			if err := s.Stock.Receive(ctx, recv, lines); err != nil {
				return err
			}
		}

		touched := map[int]bool{}
		for _, l := range lines {
			l.Status = models.TrackStatusArrived
			if err := s.st.UpdateTrackItem(ctx, l); err != nil {
				return errors.Wrap(err, "update track item")
			}
			if l.ReqItemId == nil {
				continue
			}
			item, req, err := s.lineTarget(ctx, *l.ReqItemId)
			if err != nil {
				return err
			}
			if item == nil || !s.lineMatches("ProcessRecv", l, item, nil) {
				continue
			}
			qty, err := s.toReqPacks(ctx, item, l.ItemPackId, l.ReceivedQuantity())
			if err != nil {
				return err
			}
			item.QuantityFulfil = decimal.Min(item.Quantity, item.QuantityFulfil.Add(qty))
			// Goods that arrived have been in transit.
			item.QuantityTransit = decimal.Max(item.QuantityTransit, item.QuantityFulfil)
			if err := s.st.UpdateReqItem(ctx, item); err != nil {
				return errors.Wrap(err, "update requisition item")
			}
			touched[req.ID] = true

			if recv.PurchaseRef != "" {
				if err := s.stampOrderItems(ctx, req.ID, item.ItemId, recv); err != nil {
					return err
				}
			}
		}

		if err := s.st.UpdateRecvStatus(ctx, recv.ID, models.ShipStatusReceived); err != nil {
			return errors.Wrap(err, "update recv status")
		}
		recv.Status = models.ShipStatusReceived
		if recv.SendId != nil {
			if err := s.st.UpdateSendStatus(ctx, *recv.SendId, models.ShipStatusReceived); err != nil {
				return errors.Wrap(err, "update send status")
			}
		}
		for reqID := range touched {
			if err := s.Reconcile(ctx, reqID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Stock != nil {
		s.Stock.OnInvRecvProcess(ctx, recv)
	}
	return recv, nil
}

func (s *Service) stampOrderItems(ctx context.Context, reqID, itemID int, recv *models.Recv) error {
	open, err := s.st.ListOpenOrderItems(ctx, reqID, itemID, recv.PurchaseRef)
	if err != nil {
		return errors.Wrap(err, "list order items")
	}
	for _, o := range open {
		if _, err := s.st.StampOrderItemRecv(ctx, o.ID, recv.ID); err != nil {
			return errors.Wrapf(err, "stamp order item %d", o.ID)
		}
	}
	return nil
}

// AddOrderItem records a purchase order line raised for a requisition item.
func (s *Service) AddOrderItem(ctx context.Context, reqID, itemID int, purchaseRef string) (*models.OrderItem, error) {
	if purchaseRef == "" {
		return nil, errors.New("invalid input: PurchaseRef: required")
	}
	if _, err := s.st.GetReq(ctx, reqID); err != nil {
		return nil, errors.Wrapf(err, "requisition %d", reqID)
	}
	o := &models.OrderItem{ReqId: reqID, ItemId: itemID, PurchaseRef: purchaseRef}
	if err := s.st.CreateOrderItem(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order item")
	}
	return o, nil
}
