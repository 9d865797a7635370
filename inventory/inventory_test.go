package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
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

type fixture struct {
	ms     *memstore.Store
	svc    *Service
	mailer *recordingMailer
	item   *models.Item
	pack   *models.ItemPack
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// newFixture seeds warehouse site 10 (capacity 1000 m3) with one operator,
// user 500, and item 1 in packs of one unit taking 1 m3 each.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ms := memstore.New()
	ms.SeedOrganisation(1, "Red Cross", models.OrganisationTypeRedCross, 0)
	site := ms.SeedSite(10, 1, models.SiteTypeWarehouse, "Central")
	ms.SeedSite(20, 1, models.SiteTypeWarehouse, "North")
	ms.SeedWarehouse(10, "1000", "1000")
	ms.SeedUser(500, 1, "op@example.org", "en")
	ms.SeedMembership(500, "wh_operator", &site.PeId)
	item, pack := ms.SeedItem(1, "Blanket", "1", "1")

	mailer := &recordingMailer{}
	fabric := notify.NewFabric(ms, mailer, nil, nil)
	fabric.OperatorRoles = []string{"wh_operator"}
	fabric.DefaultLanguage = "en"
	svc := New(ms, fabric, nil)
	svc.ThresholdRatio = d("0.1")
	return &fixture{ms: ms, svc: svc, mailer: mailer, item: item, pack: pack}
}

func (f *fixture) stockLine(t *testing.T, siteID int, qty string) *models.InvItem {
	t.Helper()
	line := &models.InvItem{SiteId: siteID, ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d(qty)}
	require.NoError(t, f.ms.CreateInvItem(context.Background(), line))
	return line
}

func (f *fixture) open(t *testing.T, typ string) []*models.Notification {
	t.Helper()
	open, err := f.svc.fabric.Open(context.Background(), models.NotificationFilter{Type: typ})
	require.NoError(t, err)
	return open
}

func TestMinimumStockAlertLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stockLine(t, 10, "150")

	m, err := f.svc.SetMinimum(ctx, 10, f.item.ID, d("100"))
	require.NoError(t, err)
	assert.Empty(t, f.open(t, models.NotificationMinStock))

	adj, err := f.svc.OpenAdj(ctx, AdjInput{
		SiteId: 10,
		Lines:  []AdjLine{{ItemId: f.item.ID, ItemPackId: f.pack.ID, NewQuantity: d("80")}},
	})
	require.NoError(t, err)
	assert.True(t, adj.Items[0].OldQuantity.Equal(d("150")))

	_, err = f.svc.CloseAdj(ctx, adj.ID)
	require.NoError(t, err)

	stock, err := f.svc.Stock(ctx, 10, f.item.ID)
	require.NoError(t, err)
	assert.True(t, stock.Equal(d("80")))

	open := f.open(t, models.NotificationMinStock)
	require.Len(t, open, 1)
	assert.Equal(t, 500, open[0].UserId)
	assert.Equal(t, "inv_minimum", open[0].Tablename)
	assert.Equal(t, m.ID, open[0].RecordId)
	assert.Contains(t, open[0].Name, "Blanket")
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "op@example.org", f.mailer.sent[0].To)

	// A rescan while still short does not alert twice.
	require.NoError(t, f.svc.ScanMinimums(ctx, 10))
	assert.Len(t, f.open(t, models.NotificationMinStock), 1)
	assert.Len(t, f.mailer.sent, 1)

	recv := &models.Recv{ID: 70, SiteId: 10, PurchaseRef: "PO-1"}
	require.NoError(t, f.svc.Receive(ctx, recv, []*models.TrackItem{
		{ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d("40")},
	}))
	f.svc.OnInvRecvProcess(ctx, recv)

	assert.Empty(t, f.open(t, models.NotificationMinStock))
}

func TestCloseAdjTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stockLine(t, 10, "5")

	adj, err := f.svc.OpenAdj(ctx, AdjInput{
		SiteId: 10,
		Lines:  []AdjLine{{ItemId: f.item.ID, ItemPackId: f.pack.ID, NewQuantity: d("3")}},
	})
	require.NoError(t, err)
	_, err = f.svc.CloseAdj(ctx, adj.ID)
	require.NoError(t, err)

	_, err = f.svc.CloseAdj(ctx, adj.ID)
	assert.True(t, errors.Is(err, ErrAdjClosed))
}

func TestOpenAdjValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.OpenAdj(context.Background(), AdjInput{SiteId: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input")
}

func TestCapacityAlertLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ms.SeedWarehouse(20, "1000", "150")
	north, err := f.ms.GetSite(ctx, 20)
	require.NoError(t, err)
	f.ms.SeedMembership(500, "wh_operator", &north.PeId)

	require.NoError(t, f.svc.SetFreeCapacity(ctx, 20, d("150")))
	assert.Empty(t, f.open(t, models.NotificationCapacity))

	require.NoError(t, f.svc.SetFreeCapacity(ctx, 20, d("80")))
	open := f.open(t, models.NotificationCapacity)
	require.Len(t, open, 1)
	assert.Equal(t, "/inv/warehouse/20", open[0].Url)

	// Still below the threshold: the open alert stands, nothing new is sent.
	require.NoError(t, f.svc.SetFreeCapacity(ctx, 20, d("60")))
	assert.Len(t, f.open(t, models.NotificationCapacity), 1)
	assert.Len(t, f.mailer.sent, 1)

	require.NoError(t, f.svc.SetFreeCapacity(ctx, 20, d("200")))
	assert.Empty(t, f.open(t, models.NotificationCapacity))
}

func TestRecomputeFreeCapacityFromStockVolume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stockLine(t, 10, "950")

	require.NoError(t, f.svc.RecomputeFreeCapacity(ctx, 10))
	w, err := f.ms.GetWarehouseBySite(ctx, 10)
	require.NoError(t, err)
	assert.True(t, w.FreeCapacity.Equal(d("50")))
	assert.Len(t, f.open(t, models.NotificationCapacity), 1)

	// Offices have no warehouse record.
	f.ms.SeedSite(30, 1, models.SiteTypeOffice, "Office")
	assert.NoError(t, f.svc.RecomputeFreeCapacity(ctx, 30))
}

func TestDispatchAndStockCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	recv := &models.Recv{ID: 71, SiteId: 10, PurchaseRef: "PO-7"}
	require.NoError(t, f.svc.Receive(ctx, recv, []*models.TrackItem{
		{ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d("30"), RecvQuantity: utils.NewDecimal(d("25"))},
	}))

	send := &models.Send{ID: 72, SiteId: 10, ToSiteId: utils.NewInt(20)}
	require.NoError(t, f.svc.Dispatch(ctx, send, []*models.TrackItem{
		{ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d("10")},
	}))

	err := f.svc.Dispatch(ctx, send, []*models.TrackItem{
		{ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d("100")},
	})
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	logs, err := f.svc.StockCard(ctx, 10, f.item.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, models.StockMovementRecv, logs[0].Kind)
	assert.Equal(t, "PO-7", logs[0].Counterparty)
	assert.True(t, logs[0].QuantityDelta.Equal(d("25")))
	assert.True(t, logs[0].Balance.Equal(d("25")))

	assert.Equal(t, models.StockMovementSend, logs[1].Kind)
	assert.Equal(t, "North", logs[1].Counterparty)
	assert.True(t, logs[1].QuantityDelta.Equal(d("-10")))
	assert.True(t, logs[1].Balance.Equal(d("15")))
	assert.Equal(t, "inv_send", logs[1].ReferenceTable)
	assert.Equal(t, 72, logs[1].ReferenceId)

	none, err := f.svc.StockCard(ctx, 20, f.item.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDispatchRejectsLineOfAnotherSite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	central := f.stockLine(t, 10, "40")

	send := &models.Send{ID: 73, SiteId: 20, ToSiteId: utils.NewInt(10)}
	err := f.svc.Dispatch(ctx, send, []*models.TrackItem{
		{ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d("5"), SendInvItemId: &central.ID},
	})
	assert.True(t, errors.Is(err, ErrLineMismatch))

	got, err := f.ms.GetInvItem(ctx, central.ID)
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(d("40")))

	logs, err := f.svc.StockCard(ctx, 20, f.item.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestKit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stockLine(t, 10, "150")

	kit := &models.Item{ID: 3, Name: "Shelter kit", Kit: true}
	require.NoError(t, f.ms.CreateItem(ctx, kit))
	kitPack := &models.ItemPack{ItemId: kit.ID, Name: "kit", Quantity: d("1")}
	require.NoError(t, f.ms.CreateItemPack(ctx, kitPack))
	require.NoError(t, f.ms.CreateKitItem(ctx, &models.KitItem{KitId: kit.ID, ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d("2")}))

	k, err := f.svc.Kit(ctx, KitInput{SiteId: 10, ItemId: kit.ID, ItemPackId: kitPack.ID, Quantity: d("10")})
	require.NoError(t, err)
	assert.NotZero(t, k.ID)

	blankets, err := f.svc.Stock(ctx, 10, f.item.ID)
	require.NoError(t, err)
	assert.True(t, blankets.Equal(d("130")))
	kits, err := f.svc.Stock(ctx, 10, kit.ID)
	require.NoError(t, err)
	assert.True(t, kits.Equal(d("10")))

	_, err = f.svc.Kit(ctx, KitInput{SiteId: 10, ItemId: kit.ID, ItemPackId: kitPack.ID, Quantity: d("100")})
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	blankets, err = f.svc.Stock(ctx, 10, f.item.ID)
	require.NoError(t, err)
	assert.True(t, blankets.Equal(d("130")), "failed kitting leaves stock untouched")

	_, err = f.svc.Kit(ctx, KitInput{SiteId: 10, ItemId: f.item.ID, ItemPackId: f.pack.ID, Quantity: d("1")})
	assert.True(t, errors.Is(err, ErrNotKit))
}

func TestRegisterWarehouse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	site, w, err := f.svc.RegisterWarehouse(ctx, NewWarehouse{
		OrganisationId: 1,
		Name:           "Port",
		Phone:          utils.NewString("6123-4567"),
		Capacity:       utils.NewDecimal(d("500")),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SiteTypeWarehouse, site.InstanceType)
	assert.Equal(t, "+50761234567", *site.Phone)
	assert.True(t, w.FreeCapacity.Equal(d("500")))

	e, err := f.ms.GetEntity(ctx, site.PeId)
	require.NoError(t, err)
	assert.Equal(t, site.ID, e.InstanceId)

	_, _, err = f.svc.RegisterWarehouse(ctx, NewWarehouse{OrganisationId: 1, Name: "Bad", Phone: utils.NewString("12")})
	assert.Error(t, err)
}

func TestScanAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stockLine(t, 10, "5")
	_, err := f.svc.SetMinimum(ctx, 10, f.item.ID, d("10"))
	require.NoError(t, err)

	scanned, failed, err := f.svc.ScanAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, scanned)
	assert.Zero(t, failed)
	assert.Len(t, f.open(t, models.NotificationMinStock), 1)
}
