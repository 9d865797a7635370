// Package requisition implements the requisition workflow: drafting,
// submission and approval, shipments against requisition items and the
// derived transit and fulfilment statuses.
package requisition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/rms_backend/access"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/inventory"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("not permitted")
	ErrNotApprover       = errors.New("user is not an approver of this requisition")
	ErrAlreadyApproved   = errors.New("requisition already approved by this user")
	ErrNoItems           = errors.New("requisition has no items")
)

type Store interface {
	realm.Store
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	CreateReq(ctx context.Context, req *models.Req) error
	UpdateReqStatus(ctx context.Context, id int, workflow models.ReqWorkflowStatus, transit, fulfil models.ReqProgress) error
	CreateReqItem(ctx context.Context, item *models.ReqItem) error
	GetReqItem(ctx context.Context, id int) (*models.ReqItem, error)
	UpdateReqItem(ctx context.Context, item *models.ReqItem) error
	GetItemPack(ctx context.Context, id int) (*models.ItemPack, error)

	ListApproversForEntities(ctx context.Context, peIds []int) ([]*models.Approver, error)
	CreateApprover(ctx context.Context, a *models.Approver) error
	CreateReqApproval(ctx context.Context, a *models.ReqApproval) error
	ListReqApprovals(ctx context.Context, reqId int) ([]*models.ReqApproval, error)
	GetPerson(ctx context.Context, id int) (*models.Person, error)
	GetUserByPerson(ctx context.Context, personId int) (*models.User, error)

	CreateOrderItem(ctx context.Context, o *models.OrderItem) error
	ListOpenOrderItems(ctx context.Context, reqId, itemId int, purchaseRef string) ([]*models.OrderItem, error)
	StampOrderItemRecv(ctx context.Context, id, recvId int) (bool, error)

	CreateSend(ctx context.Context, send *models.Send) error
	UpdateSendStatus(ctx context.Context, id int, status models.ShipmentStatus) error
	CreateRecv(ctx context.Context, recv *models.Recv) error
	UpdateRecvStatus(ctx context.Context, id int, status models.ShipmentStatus) error
	CreateTrackItem(ctx context.Context, t *models.TrackItem) error
	ListTrackItemsBySend(ctx context.Context, sendId int) ([]*models.TrackItem, error)
	ListTrackItemsByRecv(ctx context.Context, recvId int) ([]*models.TrackItem, error)
	UpdateTrackItem(ctx context.Context, t *models.TrackItem) error
}

type Service struct {
	st       Store
	resolver *realm.Resolver
	fabric   *notify.Fabric
	access   *access.Service
	logger   *logrus.Logger

	// Stock applies shipments to the stock of the sites when set.
	Stock  *inventory.Service
	Tracer trace.Tracer
}

func New(st Store, resolver *realm.Resolver, fabric *notify.Fabric, acl *access.Service, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{
		st:       st,
		resolver: resolver,
		fabric:   fabric,
		access:   acl,
		logger:   logger,
		Tracer:   otel.Tracer("rms_backend"),
	}
}

func (s *Service) span(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.Tracer.Start(ctx, "requisition."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func reqURL(id int) string { return fmt.Sprintf("/inv/req/%d", id) }

func currentUser(ctx context.Context) (int, error) {
	id, ok := utils.GetUserIdFromContext(ctx)
	if !ok || id == 0 {
		return 0, errors.Wrap(ErrForbidden, "no authenticated user")
	}
	return id, nil
}

func (s *Service) isAdmin(ctx context.Context, userID int) bool {
	if s.access == nil {
		return false
	}
	ok, err := s.access.HasRole(ctx, userID, access.RoleAdmin, nil)
	if err != nil {
		config.LogError(s.logger, "requisition", "isAdmin", "has role", userID, err)
		return false
	}
	return ok
}

type NewReq struct {
	ReqRef       string     `validate:"max=64"`
	SiteId       int        `validate:"required"`
	DateRequired *time.Time `validate:"-"`
	Priority     int        `validate:"omitempty,min=1,max=3"`
	Comments     string     `validate:"max=2000"`
	Items        []NewItem  `validate:"dive"`
}

type NewItem struct {
	ItemId     int             `validate:"required"`
	ItemPackId int             `validate:"required"`
	Quantity   decimal.Decimal `validate:"-"`
	SiteId     *int            `validate:"omitempty,gt=0"`
}

func (in NewItem) check() error {
	if !in.Quantity.IsPositive() {
		return errors.New("invalid input: Quantity: gt")
	}
	return nil
}

// CreateReq drafts a requisition for the current user.
func (s *Service) CreateReq(ctx context.Context, in NewReq) (*models.Req, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	for _, it := range in.Items {
		if err := it.check(); err != nil {
			return nil, err
		}
	}
	userID, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	req := &models.Req{
		ReqRef:         in.ReqRef,
		SiteId:         in.SiteId,
		RequesterId:    userID,
		Date:           time.Now().UTC(),
		DateRequired:   in.DateRequired,
		Priority:       in.Priority,
		WorkflowStatus: models.ReqStatusDraft,
		Comments:       in.Comments,
	}
	if req.Priority == 0 {
		req.Priority = 2
	}
	err = s.st.Transaction(ctx, func(ctx context.Context) error {
		site, err := s.st.GetSite(ctx, in.SiteId)
		if err != nil {
			return errors.Wrapf(err, "site %d", in.SiteId)
		}
		if req.ReqRef == "" {
			req.ReqRef = newRef(site.Code, "REQ")
		}
		req.CreatedBy = utils.NewInt(userID)
		if err := s.st.CreateReq(ctx, req); err != nil {
			return errors.Wrap(err, "create requisition")
		}
		for _, it := range in.Items {
			item := &models.ReqItem{ReqId: req.ID, ItemId: it.ItemId, ItemPackId: it.ItemPackId, Quantity: it.Quantity, SiteId: it.SiteId}
			if err := s.st.CreateReqItem(ctx, item); err != nil {
				return errors.Wrap(err, "create requisition item")
			}
			req.Items = append(req.Items, item)
		}
		return s.refresh(ctx, req.ID)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func newRef(code, kind string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	if code == "" {
		return kind + "-" + suffix
	}
	return code + "-" + kind + "-" + suffix
}

func editable(req *models.Req) error {
	switch req.WorkflowStatus {
	case models.ReqStatusDraft, models.ReqStatusSubmitted:
		return nil
	}
	return errors.Wrapf(ErrInvalidTransition, "requisition %s is %s", req.ReqRef, req.WorkflowStatus)
}

// AddItem adds a line to a draft or submitted requisition.
func (s *Service) AddItem(ctx context.Context, reqID int, in NewItem) (*models.ReqItem, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := in.check(); err != nil {
		return nil, err
	}
	item := &models.ReqItem{ReqId: reqID, ItemId: in.ItemId, ItemPackId: in.ItemPackId, Quantity: in.Quantity, SiteId: in.SiteId}
	err := s.st.Transaction(ctx, func(ctx context.Context) error {
		req, err := s.st.GetReq(ctx, reqID)
		if err != nil {
			return errors.Wrapf(err, "requisition %d", reqID)
		}
		if err := editable(req); err != nil {
			return err
		}
		if err := s.st.CreateReqItem(ctx, item); err != nil {
			return errors.Wrap(err, "create requisition item")
		}
		return s.refresh(ctx, reqID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SetItemSite changes the sourcing site of a line. A nil site clears it.
func (s *Service) SetItemSite(ctx context.Context, itemID int, siteID *int) (*models.ReqItem, error) {
	var item *models.ReqItem
	err := s.st.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if item, err = s.st.GetReqItem(ctx, itemID); err != nil {
			return errors.Wrapf(err, "requisition item %d", itemID)
		}
		req, err := s.st.GetReq(ctx, item.ReqId)
		if err != nil {
			return errors.Wrapf(err, "requisition %d", item.ReqId)
		}
		if err := editable(req); err != nil {
			return err
		}
		if utils.IntPtrEqual(item.SiteId, siteID) {
			return nil
		}
		item.SiteId = siteID
		if err := s.st.UpdateReqItem(ctx, item); err != nil {
			return errors.Wrap(err, "update requisition item")
		}
		return s.refresh(ctx, req.ID)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// refresh recomputes the realm of a requisition and of all its items, which
// all depend on the set of sites the requisition touches.
func (s *Service) refresh(ctx context.Context, reqID int) error {
	if s.resolver == nil {
		return nil
	}
	req, err := s.st.GetReq(ctx, reqID)
	if err != nil {
		return errors.Wrapf(err, "requisition %d", reqID)
	}
	if _, err := s.resolver.Refresh(ctx, s.st, "inv_req", req.ID, req.Row()); err != nil {
		return errors.Wrap(err, "refresh requisition realm")
	}
	items, err := s.st.ListReqItems(ctx, reqID)
	if err != nil {
		return errors.Wrap(err, "list requisition items")
	}
	for _, it := range items {
		if _, err := s.resolver.Refresh(ctx, s.st, "inv_req_item", it.ID, it.Row()); err != nil {
			return errors.Wrapf(err, "refresh realm of requisition item %d", it.ID)
		}
	}
	return nil
}

// toReqPacks converts qty of pack packID into packs of the requisition line.
func (s *Service) toReqPacks(ctx context.Context, item *models.ReqItem, packID int, qty decimal.Decimal) (decimal.Decimal, error) {
	if packID == item.ItemPackId {
		return qty, nil
	}
	from, err := s.st.GetItemPack(ctx, packID)
	if err != nil && !utils.IsNotFound(err) {
		return decimal.Zero, errors.Wrapf(err, "item pack %d", packID)
	}
	to, err := s.st.GetItemPack(ctx, item.ItemPackId)
	if err != nil && !utils.IsNotFound(err) {
		return decimal.Zero, errors.Wrapf(err, "item pack %d", item.ItemPackId)
	}
	base := from.BaseQuantity(qty)
	if to == nil || to.Quantity.IsZero() {
		return base, nil
	}
	return base.Div(to.Quantity), nil
}
