package requisition

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mmdatafocus/rms_backend/inventory"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/mmdatafocus/rms_backend/store/memstore"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	sent []notify.Mail
}

func (m *recordingMailer) Send(ctx context.Context, mail notify.Mail) error {
	m.sent = append(m.sent, mail)
	return nil
}

const (
	requester = 500
	approver  = 600
	op20      = 700
	op30      = 800
)

type fixture struct {
	ms     *memstore.Store
	svc    *Service
	fabric *notify.Fabric
	sites  map[int]*models.Site
	org    *models.Organisation
	pack   *models.ItemPack
}

func n(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// newFixture seeds one organisation with warehouses 10, 20 and 30, a
// requester, a matcher approver on site 10 and one operator for each of
// sites 20 and 30.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := memstore.New()
	r := realm.New(nil, false)
	ms.RealmHook = func(ctx context.Context, table string, row models.Row) (int, bool, error) {
		return r.Resolve(ctx, ms, table, row)
	}
	fx := &fixture{ms: ms, sites: map[int]*models.Site{}}
	fx.org = ms.SeedOrganisation(1, "Red Cross", models.OrganisationTypeRedCross, 0)
	for _, id := range []int{10, 20, 30} {
		fx.sites[id] = ms.SeedSite(id, 1, models.SiteTypeWarehouse, fmt.Sprintf("Warehouse %d", id))
	}
	ms.SeedUser(requester, 1, "requester@example.org", "en")
	ms.SeedUser(approver, 1, "approver@example.org", "es")
	ms.SeedUser(op20, 1, "op20@example.org", "en")
	ms.SeedUser(op30, 1, "op30@example.org", "fr")
	ms.SeedMembership(op20, "wh_operator", &fx.sites[20].PeId)
	ms.SeedMembership(op30, "wh_operator", &fx.sites[30].PeId)
	_, fx.pack = ms.SeedItem(1, "Blanket", "1", "")

	fx.fabric = notify.NewFabric(ms, &recordingMailer{}, nil, nil)
	fx.fabric.OperatorRoles = []string{"wh_operator"}
	fx.fabric.DefaultLanguage = "en"
	fx.svc = New(ms, r, fx.fabric, nil, nil)

	_, err := fx.svc.AddApprover(context.Background(), fx.sites[10].PeId, ms.PersonOf(approver).ID, "Logistics Manager", true)
	require.NoError(t, err)
	return fx
}

func as(userID int) context.Context {
	return utils.SetUserIdInContext(context.Background(), userID)
}

func (fx *fixture) line(siteID int) NewItem {
	return NewItem{ItemId: 1, ItemPackId: fx.pack.ID, Quantity: n(5), SiteId: utils.NewInt(siteID)}
}

func (fx *fixture) open(t *testing.T, typ string, reqID int) map[int]bool {
	t.Helper()
	rows, err := fx.fabric.Open(context.Background(), models.NotificationFilter{Type: typ, Tablename: "inv_req", RecordId: reqID})
	require.NoError(t, err)
	users := map[int]bool{}
	for _, r := range rows {
		assert.False(t, users[r.UserId], "two open notifications for user %d", r.UserId)
		users[r.UserId] = true
	}
	return users
}

func (fx *fixture) approvedReq(t *testing.T, sourcing ...int) *models.Req {
	t.Helper()
	in := NewReq{SiteId: 10}
	for _, s := range sourcing {
		in.Items = append(in.Items, fx.line(s))
	}
	req, err := fx.svc.CreateReq(as(requester), in)
	require.NoError(t, err)
	_, err = fx.svc.Submit(as(requester), req.ID)
	require.NoError(t, err)
	req, err = fx.svc.Approve(as(approver), req.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReqStatusApproved, req.WorkflowStatus)
	return req
}

func TestSubmitAndApprove(t *testing.T) {
	fx := newFixture(t)

	req, err := fx.svc.CreateReq(as(requester), NewReq{SiteId: 10, Items: []NewItem{fx.line(20)}})
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusDraft, req.WorkflowStatus)
	assert.NotEmpty(t, req.ReqRef)

	req, err = fx.svc.Submit(as(requester), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusSubmitted, req.WorkflowStatus)

	open, err := fx.fabric.Open(context.Background(), models.NotificationFilter{Type: models.NotificationReqApprove, RecordId: req.ID})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, approver, open[0].UserId)
	assert.Equal(t, reqURL(req.ID), open[0].Url)
	assert.Equal(t, "inv_req", open[0].Tablename)

	req, err = fx.svc.Approve(as(approver), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusApproved, req.WorkflowStatus)

	assert.Empty(t, fx.open(t, models.NotificationReqApprove, req.ID))
	assert.Equal(t, map[int]bool{op20: true}, fx.open(t, models.NotificationReqFulfil, req.ID))

	stored, err := fx.ms.GetReq(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusApproved, stored.WorkflowStatus)
}

func TestSubmitRequiresRequester(t *testing.T) {
	fx := newFixture(t)
	req, err := fx.svc.CreateReq(as(requester), NewReq{SiteId: 10, Items: []NewItem{fx.line(20)}})
	require.NoError(t, err)

	_, err = fx.svc.Submit(as(op20), req.ID)
	assert.True(t, errors.Is(err, ErrForbidden))

	_, err = fx.svc.Submit(context.Background(), req.ID)
	assert.True(t, errors.Is(err, ErrForbidden))
}

func TestSubmitWithoutItems(t *testing.T) {
	fx := newFixture(t)
	req, err := fx.svc.CreateReq(as(requester), NewReq{SiteId: 10})
	require.NoError(t, err)
	_, err = fx.svc.Submit(as(requester), req.ID)
	assert.True(t, errors.Is(err, ErrNoItems))
}

func TestSubmitWithoutApproversApproves(t *testing.T) {
	fx := newFixture(t)
	// Nobody approves for site 20.
	req, err := fx.svc.CreateReq(as(requester), NewReq{SiteId: 20, Items: []NewItem{fx.line(30)}})
	require.NoError(t, err)

	req, err = fx.svc.Submit(as(requester), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusApproved, req.WorkflowStatus)
	assert.Equal(t, map[int]bool{op30: true}, fx.open(t, models.NotificationReqFulfil, req.ID))
}

func TestNonMatcherApproval(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.ms.SeedUser(650, 1, "deputy@example.org", "en")
	_, err := fx.svc.AddApprover(ctx, fx.org.PeId, fx.ms.PersonOf(650).ID, "Deputy", false)
	require.NoError(t, err)

	req, err := fx.svc.CreateReq(as(requester), NewReq{SiteId: 10, Items: []NewItem{fx.line(20)}})
	require.NoError(t, err)
	_, err = fx.svc.Submit(as(requester), req.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{approver: true, 650: true}, fx.open(t, models.NotificationReqApprove, req.ID))

	req, err = fx.svc.Approve(as(650), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusSubmitted, req.WorkflowStatus)
	assert.Equal(t, map[int]bool{approver: true}, fx.open(t, models.NotificationReqApprove, req.ID))

	_, err = fx.svc.Approve(as(650), req.ID)
	assert.True(t, errors.Is(err, ErrAlreadyApproved))

	_, err = fx.svc.Approve(as(op20), req.ID)
	assert.True(t, errors.Is(err, ErrNotApprover))

	approvals, err := fx.ms.ListReqApprovals(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, approvals, 1)
}

func TestApproversNearestRuleWins(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	person := fx.ms.PersonOf(approver).ID
	_, err := fx.svc.AddApprover(ctx, fx.org.PeId, person, "Country Manager", false)
	require.NoError(t, err)

	rules, err := fx.svc.Approvers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, fx.sites[10].PeId, rules[0].PeId)
	assert.Equal(t, "Logistics Manager", rules[0].Title)
	assert.True(t, rules[0].Matcher)

	rules, err = fx.svc.Approvers(ctx, 20)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Country Manager", rules[0].Title)
	assert.False(t, rules[0].Matcher)

	_, err = fx.svc.AddApprover(ctx, fx.org.PeId, person, "again", true)
	assert.True(t, utils.IsDuplicate(err))
}

func TestCancel(t *testing.T) {
	fx := newFixture(t)
	req, err := fx.svc.CreateReq(as(requester), NewReq{SiteId: 10, Items: []NewItem{fx.line(20)}})
	require.NoError(t, err)
	_, err = fx.svc.Submit(as(requester), req.ID)
	require.NoError(t, err)

	req, err = fx.svc.Cancel(as(requester), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusCancelled, req.WorkflowStatus)
	assert.Empty(t, fx.open(t, models.NotificationReqApprove, req.ID))

	_, err = fx.svc.Cancel(as(requester), req.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	approved := fx.approvedReq(t, 20)
	_, err = fx.svc.Cancel(as(requester), approved.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	_, err = fx.svc.AddItem(as(requester), approved.ID, fx.line(20))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestRequisitionRealmFollowsSourcingSites(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req, err := fx.svc.CreateReq(as(requester), NewReq{SiteId: 10, Items: []NewItem{fx.line(20)}})
	require.NoError(t, err)
	shared, err := fx.ms.GetEntityByName(ctx, realm.TwoSitesName(10, 20))
	require.NoError(t, err)
	stored, err := fx.ms.GetReq(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.RealmEntity)
	assert.Equal(t, shared.ID, *stored.RealmEntity)

	item, err := fx.svc.SetItemSite(as(requester), req.Items[0].ID, utils.NewInt(30))
	require.NoError(t, err)
	moved, err := fx.ms.GetEntityByName(ctx, realm.TwoSitesName(10, 30))
	require.NoError(t, err)
	stored, err = fx.ms.GetReq(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.ID, *stored.RealmEntity)
	stored2, err := fx.ms.GetReqItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, moved.ID, *stored2.RealmEntity)
}

func (fx *fixture) ship(t *testing.T, req *models.Req, from int, itemIdx int) {
	t.Helper()
	items, err := fx.ms.ListReqItems(context.Background(), req.ID)
	require.NoError(t, err)
	send, err := fx.svc.CreateSend(as(requester), NewSend{
		SiteId:   from,
		ToSiteId: utils.NewInt(req.SiteId),
		Lines:    []ShipLine{{ReqItemId: &items[itemIdx].ID, ItemId: 1, ItemPackId: fx.pack.ID, Quantity: n(5)}},
	})
	require.NoError(t, err)
	_, err = fx.svc.ProcessSend(as(requester), send.ID)
	require.NoError(t, err)

	recv, err := fx.svc.CreateRecv(as(requester), NewRecv{SiteId: req.SiteId, SendId: &send.ID})
	require.NoError(t, err)
	assert.Equal(t, from, *recv.FromSiteId)
	_, err = fx.svc.ProcessRecv(as(requester), recv.ID)
	require.NoError(t, err)
}

func TestFulfilmentPartialRetract(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.svc.Stock = inventory.New(fx.ms, fx.fabric, nil)
	for _, site := range []int{20, 30} {
		require.NoError(t, fx.ms.CreateInvItem(ctx, &models.InvItem{SiteId: site, ItemId: 1, ItemPackId: fx.pack.ID, Quantity: n(10)}))
	}

	req := fx.approvedReq(t, 20, 30)
	assert.Equal(t, map[int]bool{op20: true, op30: true}, fx.open(t, models.NotificationReqFulfil, req.ID))

	fx.ship(t, req, 20, 0)

	items, err := fx.ms.ListReqItems(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, items[0].QuantityTransit.Equal(n(5)))
	assert.True(t, items[0].QuantityFulfil.Equal(n(5)))
	assert.True(t, items[1].QuantityTransit.IsZero())
	assert.Equal(t, map[int]bool{op30: true}, fx.open(t, models.NotificationReqFulfil, req.ID))

	stored, err := fx.ms.GetReq(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusApproved, stored.WorkflowStatus)
	assert.Equal(t, models.ReqProgressPartial, stored.FulfilStatus)
	assert.Equal(t, models.ReqProgressPartial, stored.TransitStatus)

	fx.ship(t, req, 30, 1)

	stored, err = fx.ms.GetReq(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusCompleted, stored.WorkflowStatus)
	assert.Equal(t, models.ReqProgressComplete, stored.FulfilStatus)
	assert.Empty(t, fx.open(t, models.NotificationReqFulfil, req.ID))

	stock, err := fx.svc.Stock.Stock(ctx, 10, 1)
	require.NoError(t, err)
	assert.True(t, stock.Equal(n(10)))
	left, err := fx.svc.Stock.Stock(ctx, 20, 1)
	require.NoError(t, err)
	assert.True(t, left.Equal(n(5)))
}

func TestCompletedImpliesAllInTransit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	req := fx.approvedReq(t, 20, 20)

	fx.ship(t, req, 20, 0)
	stored, err := fx.ms.GetReq(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusApproved, stored.WorkflowStatus)
	// Site 20 still has a line to ship.
	assert.Equal(t, map[int]bool{op20: true}, fx.open(t, models.NotificationReqFulfil, req.ID))

	fx.ship(t, req, 20, 1)
	stored, err = fx.ms.GetReq(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReqStatusCompleted, stored.WorkflowStatus)
	items, err := fx.ms.ListReqItems(ctx, req.ID)
	require.NoError(t, err)
	for _, it := range items {
		assert.True(t, it.QuantityTransit.GreaterThanOrEqual(it.Quantity))
	}
}

func TestSendElsewhereIsNotTransit(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	req := fx.approvedReq(t, 20)
	items, err := fx.ms.ListReqItems(ctx, req.ID)
	require.NoError(t, err)

	send, err := fx.svc.CreateSend(as(requester), NewSend{
		SiteId:   20,
		ToSiteId: utils.NewInt(30),
		Lines:    []ShipLine{{ReqItemId: &items[0].ID, ItemId: 1, ItemPackId: fx.pack.ID, Quantity: n(5)}},
	})
	require.NoError(t, err)
	_, err = fx.svc.ProcessSend(as(requester), send.ID)
	require.NoError(t, err)

	item, err := fx.ms.GetReqItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.True(t, item.QuantityTransit.IsZero())

	_, err = fx.svc.ProcessSend(as(requester), send.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestShipmentLinesMustMatchRequisitionItem(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, tent := fx.ms.SeedItem(2, "Tent", "1", "")
	req := fx.approvedReq(t, 20, 30)
	items, err := fx.ms.ListReqItems(ctx, req.ID)
	require.NoError(t, err)

	send, err := fx.svc.CreateSend(as(requester), NewSend{
		SiteId:   30,
		ToSiteId: utils.NewInt(req.SiteId),
		Lines: []ShipLine{
			// items[0] is sourced at site 20
			{ReqItemId: &items[0].ID, ItemId: 1, ItemPackId: fx.pack.ID, Quantity: n(5)},
			{ReqItemId: &items[1].ID, ItemId: 2, ItemPackId: tent.ID, Quantity: n(5)},
		},
	})
	require.NoError(t, err)
	_, err = fx.svc.ProcessSend(as(requester), send.ID)
	require.NoError(t, err)

	for _, it := range items {
		got, err := fx.ms.GetReqItem(ctx, it.ID)
		require.NoError(t, err)
		assert.True(t, got.QuantityTransit.IsZero())
	}
	assert.Equal(t, map[int]bool{op20: true, op30: true}, fx.open(t, models.NotificationReqFulfil, req.ID))

	recv, err := fx.svc.CreateRecv(as(requester), NewRecv{
		SiteId:     10,
		FromSiteId: utils.NewInt(30),
		Lines:      []ShipLine{{ReqItemId: &items[1].ID, ItemId: 2, ItemPackId: tent.ID, Quantity: n(5)}},
	})
	require.NoError(t, err)
	_, err = fx.svc.ProcessRecv(as(requester), recv.ID)
	require.NoError(t, err)

	got, err := fx.ms.GetReqItem(ctx, items[1].ID)
	require.NoError(t, err)
	assert.True(t, got.QuantityFulfil.IsZero())
	assert.True(t, got.QuantityTransit.IsZero())
	assert.Equal(t, map[int]bool{op20: true, op30: true}, fx.open(t, models.NotificationReqFulfil, req.ID))
}

func TestPurchaseReceiptStampsOrderItems(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	req := fx.approvedReq(t, 20)
	items, err := fx.ms.ListReqItems(ctx, req.ID)
	require.NoError(t, err)

	order, err := fx.svc.AddOrderItem(ctx, req.ID, 1, "PO-1")
	require.NoError(t, err)
	other, err := fx.svc.AddOrderItem(ctx, req.ID, 1, "PO-2")
	require.NoError(t, err)

	recv, err := fx.svc.CreateRecv(as(requester), NewRecv{
		SiteId:      10,
		PurchaseRef: "PO-1",
		Lines:       []ShipLine{{ReqItemId: &items[0].ID, ItemId: 1, ItemPackId: fx.pack.ID, Quantity: n(2)}},
	})
	require.NoError(t, err)
	_, err = fx.svc.ProcessRecv(as(requester), recv.ID)
	require.NoError(t, err)

	stamped, err := fx.ms.GetOrderItem(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stamped.RecvId)
	assert.Equal(t, recv.ID, *stamped.RecvId)
	untouched, err := fx.ms.GetOrderItem(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, untouched.RecvId)

	item, err := fx.ms.GetReqItem(ctx, items[0].ID)
	require.NoError(t, err)
	assert.True(t, item.QuantityFulfil.Equal(n(2)))
	assert.True(t, item.QuantityTransit.Equal(n(2)))

	// A second delivery on the same PO leaves the first stamp alone.
	again, err := fx.svc.CreateRecv(as(requester), NewRecv{
		SiteId:      10,
		PurchaseRef: "PO-1",
		Lines:       []ShipLine{{ReqItemId: &items[0].ID, ItemId: 1, ItemPackId: fx.pack.ID, Quantity: n(1)}},
	})
	require.NoError(t, err)
	_, err = fx.svc.ProcessRecv(as(requester), again.ID)
	require.NoError(t, err)
	stamped, err = fx.ms.GetOrderItem(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, recv.ID, *stamped.RecvId)
}

func TestCreateReqValidation(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.CreateReq(as(requester), NewReq{})
	assert.Error(t, err)

	_, err = fx.svc.CreateReq(as(requester), NewReq{SiteId: 10, Items: []NewItem{{ItemId: 1, ItemPackId: fx.pack.ID}}})
	assert.Error(t, err)
}
