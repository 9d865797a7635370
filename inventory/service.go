// Package inventory keeps stock levels, the stock card ledger and the
// minimum-stock and warehouse-capacity alerts of each site.
package inventory

import (
	"context"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAdjClosed         = errors.New("adjustment already closed")
	ErrNotKit            = errors.New("item is not a kit")
	ErrLineMismatch      = errors.New("stock line belongs to another site, item or pack")
)

type Store interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error

	CreateEntity(ctx context.Context, e *models.Entity) error
	UpdateEntityInstance(ctx context.Context, id int, table string, instanceId int) error
	CreateAffiliation(ctx context.Context, a *models.Affiliation) error
	GetOrganisation(ctx context.Context, id int) (*models.Organisation, error)
	CreateSite(ctx context.Context, site *models.Site) error
	GetSite(ctx context.Context, id int) (*models.Site, error)
	ListSites(ctx context.Context) ([]*models.Site, error)

	CreateWarehouse(ctx context.Context, w *models.Warehouse) error
	GetWarehouseBySite(ctx context.Context, siteId int) (*models.Warehouse, error)
	UpdateWarehouseFreeCapacity(ctx context.Context, id int, free decimal.Decimal) error

	GetItem(ctx context.Context, id int) (*models.Item, error)
	GetItemPack(ctx context.Context, id int) (*models.ItemPack, error)
	ListKitItems(ctx context.Context, kitId int) ([]*models.KitItem, error)

	ListInvItems(ctx context.Context, siteId int, itemId int) ([]*models.InvItem, error)
	GetInvItem(ctx context.Context, id int) (*models.InvItem, error)
	FindInvItem(ctx context.Context, siteId, itemId, itemPackId int) (*models.InvItem, error)
	CreateInvItem(ctx context.Context, item *models.InvItem) error
	UpdateInvItemQuantity(ctx context.Context, id int, quantity decimal.Decimal) error

	ListMinimums(ctx context.Context, siteId int) ([]*models.Minimum, error)
	CreateMinimum(ctx context.Context, m *models.Minimum) error
	GetAdj(ctx context.Context, id int) (*models.Adj, error)
	CreateAdj(ctx context.Context, adj *models.Adj) error
	UpdateAdjStatus(ctx context.Context, id int, status models.AdjStatus) error
	CreateKitting(ctx context.Context, k *models.Kitting) error

	GetStockCard(ctx context.Context, siteId, itemId int) (*models.StockCard, error)
	CreateStockCard(ctx context.Context, card *models.StockCard) error
	CreateStockLog(ctx context.Context, entry *models.StockLog) error
	ListStockLogs(ctx context.Context, cardId int) ([]*models.StockLog, error)
}

type Service struct {
	st     Store
	fabric *notify.Fabric
	logger *logrus.Logger

	// ThresholdRatio of the capacity below which a warehouse is alerted.
	ThresholdRatio decimal.Decimal
}

func New(st Store, fabric *notify.Fabric, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{
		st:             st,
		fabric:         fabric,
		logger:         logger,
		ThresholdRatio: decimal.NewFromFloat(config.GetSettings().CapacityThresholdRatio),
	}
}

// packCache memoizes pack lookups for the duration of one operation.
type packCache struct {
	st Store
	m  map[int]*models.ItemPack
}

func (s *Service) packs() *packCache {
	return &packCache{st: s.st, m: map[int]*models.ItemPack{}}
}

func (c *packCache) get(ctx context.Context, id int) (*models.ItemPack, error) {
	if p, ok := c.m[id]; ok {
		return p, nil
	}
	p, err := c.st.GetItemPack(ctx, id)
	if err != nil && !utils.IsNotFound(err) {
		return nil, errors.Wrapf(err, "item pack %d", id)
	}
	c.m[id] = p
	return p, nil
}

// Stock is the quantity of itemID at siteID in base units.
func (s *Service) Stock(ctx context.Context, siteID, itemID int) (decimal.Decimal, error) {
	return s.stock(ctx, s.packs(), siteID, itemID)
}

func (s *Service) stock(ctx context.Context, packs *packCache, siteID, itemID int) (decimal.Decimal, error) {
	lines, err := s.st.ListInvItems(ctx, siteID, itemID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "list inv items")
	}
	total := decimal.Zero
	for _, l := range lines {
		p, err := packs.get(ctx, l.ItemPackId)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(p.BaseQuantity(l.Quantity))
	}
	return total, nil
}

// usedVolume is the space (m3) taken by the stock of a site. Packs without a
// volume take none.
func (s *Service) usedVolume(ctx context.Context, siteID int) (decimal.Decimal, error) {
	lines, err := s.st.ListInvItems(ctx, siteID, 0)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "list inv items")
	}
	packs := s.packs()
	used := decimal.Zero
	for _, l := range lines {
		p, err := packs.get(ctx, l.ItemPackId)
		if err != nil {
			return decimal.Zero, err
		}
		if p == nil || p.Volume == nil {
			continue
		}
		used = used.Add(l.Quantity.Mul(*p.Volume))
	}
	return used, nil
}
