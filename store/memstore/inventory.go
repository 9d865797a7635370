package memstore

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/shopspring/decimal"
)

func items(d *data) map[int]models.Item { return d.items }
func packs(d *data) map[int]models.ItemPack { return d.packs }
func kitItems(d *data) map[int]models.KitItem { return d.kitItems }
func invItems(d *data) map[int]models.InvItem { return d.invItems }
func minimums(d *data) map[int]models.Minimum { return d.minimums }
func adjs(d *data) map[int]models.Adj { return d.adjs }
func adjItems(d *data) map[int]models.AdjItem { return d.adjItems }
func kittings(d *data) map[int]models.Kitting { return d.kittings }
func cards(d *data) map[int]models.StockCard { return d.cards }
func logs(d *data) map[int]models.StockLog { return d.logs }

func (s *Store) CreateWarehouse(ctx context.Context, w *models.Warehouse) error {
	w.ID = s.allocID(w.ID)
	realm, err := s.resolveRealm(ctx, "inv_warehouse", w.Row(), w.RealmEntity)
	if err != nil {
		return err
	}
	w.RealmEntity = realm
	return insertUnique(s, warehouses, w.ID, *w, func(x models.Warehouse) bool { return x.SiteId == w.SiteId })
}

func (s *Store) GetWarehouseBySite(ctx context.Context, siteId int) (*models.Warehouse, error) {
	rows := filter(s, warehouses, func(w models.Warehouse) bool { return !w.Deleted && w.SiteId == siteId })
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return rows[0], nil
}

func (s *Store) UpdateWarehouseFreeCapacity(ctx context.Context, id int, free decimal.Decimal) error {
	return update(s, warehouses, id, func(w *models.Warehouse) { w.FreeCapacity = free })
}

func (s *Store) CreateItem(ctx context.Context, it *models.Item) error {
	it.ID = s.allocID(it.ID)
	put(s, items, it.ID, *it)
	return nil
}

func (s *Store) GetItem(ctx context.Context, id int) (*models.Item, error) {
	return get(s, items, id, nil)
}

func (s *Store) CreateItemPack(ctx context.Context, p *models.ItemPack) error {
	p.ID = s.allocID(p.ID)
	put(s, packs, p.ID, *p)
	return nil
}

func (s *Store) GetItemPack(ctx context.Context, id int) (*models.ItemPack, error) {
	return get(s, packs, id, nil)
}

func (s *Store) CreateKitItem(ctx context.Context, k *models.KitItem) error {
	k.ID = s.allocID(k.ID)
	put(s, kitItems, k.ID, *k)
	return nil
}

func (s *Store) ListKitItems(ctx context.Context, kitId int) ([]*models.KitItem, error) {
	return filter(s, kitItems, func(k models.KitItem) bool { return k.KitId == kitId }), nil
}

func (s *Store) ListInvItems(ctx context.Context, siteId int, itemId int) ([]*models.InvItem, error) {
	return filter(s, invItems, func(i models.InvItem) bool {
		return !i.Deleted && i.SiteId == siteId && (itemId == 0 || i.ItemId == itemId)
	}), nil
}

func (s *Store) GetInvItem(ctx context.Context, id int) (*models.InvItem, error) {
	return get(s, invItems, id, func(i models.InvItem) bool { return !i.Deleted })
}

func (s *Store) FindInvItem(ctx context.Context, siteId, itemId, itemPackId int) (*models.InvItem, error) {
	rows := filter(s, invItems, func(i models.InvItem) bool {
		return !i.Deleted && i.SiteId == siteId && i.ItemId == itemId && i.ItemPackId == itemPackId
	})
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return rows[0], nil
}

func (s *Store) CreateInvItem(ctx context.Context, item *models.InvItem) error {
	item.ID = s.allocID(item.ID)
	realm, err := s.resolveRealm(ctx, "inv_inv_item", item.Row(), item.RealmEntity)
	if err != nil {
		return err
	}
	item.RealmEntity = realm
	put(s, invItems, item.ID, *item)
	return nil
}

func (s *Store) UpdateInvItemQuantity(ctx context.Context, id int, quantity decimal.Decimal) error {
	return update(s, invItems, id, func(i *models.InvItem) { i.Quantity = quantity })
}

func (s *Store) CreateMinimum(ctx context.Context, m *models.Minimum) error {
	m.ID = s.allocID(m.ID)
	realm, err := s.resolveRealm(ctx, "inv_minimum", m.Row(), m.RealmEntity)
	if err != nil {
		return err
	}
	m.RealmEntity = realm
	return insertUnique(s, minimums, m.ID, *m, func(x models.Minimum) bool {
		return !x.Deleted && x.SiteId == m.SiteId && x.ItemId == m.ItemId
	})
}

func (s *Store) ListMinimums(ctx context.Context, siteId int) ([]*models.Minimum, error) {
	return filter(s, minimums, func(m models.Minimum) bool { return !m.Deleted && m.SiteId == siteId }), nil
}

func (s *Store) CreateAdj(ctx context.Context, adj *models.Adj) error {
	adj.ID = s.allocID(adj.ID)
	realm, err := s.resolveRealm(ctx, "inv_adj", adj.Row(), adj.RealmEntity)
	if err != nil {
		return err
	}
	adj.RealmEntity = realm
	for _, it := range adj.Items {
		it.ID = s.allocID(it.ID)
		it.AdjId = adj.ID
		put(s, adjItems, it.ID, *it)
	}
	header := *adj
	header.Items = nil
	put(s, adjs, adj.ID, header)
	return nil
}

func (s *Store) GetAdj(ctx context.Context, id int) (*models.Adj, error) {
	adj, err := get(s, adjs, id, func(a models.Adj) bool { return !a.Deleted })
	if err != nil {
		return nil, err
	}
	adj.Items = filter(s, adjItems, func(i models.AdjItem) bool { return i.AdjId == id })
	return adj, nil
}

func (s *Store) UpdateAdjStatus(ctx context.Context, id int, status models.AdjStatus) error {
	return update(s, adjs, id, func(a *models.Adj) { a.Status = status })
}

func (s *Store) CreateKitting(ctx context.Context, k *models.Kitting) error {
	k.ID = s.allocID(k.ID)
	realm, err := s.resolveRealm(ctx, "inv_kitting", k.Row(), k.RealmEntity)
	if err != nil {
		return err
	}
	k.RealmEntity = realm
	put(s, kittings, k.ID, *k)
	return nil
}

func (s *Store) GetStockCard(ctx context.Context, siteId, itemId int) (*models.StockCard, error) {
	rows := filter(s, cards, func(c models.StockCard) bool { return c.SiteId == siteId && c.ItemId == itemId })
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return rows[0], nil
}

func (s *Store) CreateStockCard(ctx context.Context, card *models.StockCard) error {
	card.ID = s.allocID(card.ID)
	return insertUnique(s, cards, card.ID, *card, func(x models.StockCard) bool {
		return x.SiteId == card.SiteId && x.ItemId == card.ItemId
	})
}

func (s *Store) CreateStockLog(ctx context.Context, entry *models.StockLog) error {
	entry.ID = s.allocID(entry.ID)
	put(s, logs, entry.ID, *entry)
	return nil
}

func (s *Store) ListStockLogs(ctx context.Context, cardId int) ([]*models.StockLog, error) {
	return filter(s, logs, func(l models.StockLog) bool { return l.CardId == cardId }), nil
}
