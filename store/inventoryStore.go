package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/shopspring/decimal"
)

// ListInvItems returns the stock lines of a site; itemId 0 means every item.
func (s *Store) ListInvItems(ctx context.Context, siteId int, itemId int) ([]*models.InvItem, error) {
	q := s.conn(ctx).Where("site_id = ? AND deleted = ?", siteId, false)
	if itemId != 0 {
		q = q.Where("item_id = ?", itemId)
	}
	return list[models.InvItem](q.Order("id ASC"))
}

func (s *Store) GetInvItem(ctx context.Context, id int) (*models.InvItem, error) {
	return first[models.InvItem](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) FindInvItem(ctx context.Context, siteId, itemId, itemPackId int) (*models.InvItem, error) {
	return first[models.InvItem](s.conn(ctx).
		Where("site_id = ? AND item_id = ? AND item_pack_id = ? AND deleted = ?", siteId, itemId, itemPackId, false).
		Order("id ASC"))
}

func (s *Store) CreateInvItem(ctx context.Context, item *models.InvItem) error {
	return create(s.conn(ctx), item)
}

func (s *Store) UpdateInvItemQuantity(ctx context.Context, id int, quantity decimal.Decimal) error {
	return s.conn(ctx).Model(&models.InvItem{}).Where("id = ?", id).Update("quantity", quantity).Error
}

func (s *Store) ListMinimums(ctx context.Context, siteId int) ([]*models.Minimum, error) {
	return list[models.Minimum](s.conn(ctx).Where("site_id = ? AND deleted = ?", siteId, false).Order("id ASC"))
}

func (s *Store) CreateMinimum(ctx context.Context, m *models.Minimum) error {
	return create(s.conn(ctx), m)
}

func (s *Store) GetAdj(ctx context.Context, id int) (*models.Adj, error) {
	return first[models.Adj](s.conn(ctx).Preload("Items").Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) CreateAdj(ctx context.Context, adj *models.Adj) error {
	return create(s.conn(ctx), adj)
}

func (s *Store) UpdateAdjStatus(ctx context.Context, id int, status models.AdjStatus) error {
	return s.conn(ctx).Model(&models.Adj{}).Where("id = ?", id).Update("status", status).Error
}

func (s *Store) CreateKitting(ctx context.Context, k *models.Kitting) error {
	return create(s.conn(ctx), k)
}

func (s *Store) GetStockCard(ctx context.Context, siteId, itemId int) (*models.StockCard, error) {
	return first[models.StockCard](s.conn(ctx).Where("site_id = ? AND item_id = ?", siteId, itemId))
}

func (s *Store) CreateStockCard(ctx context.Context, card *models.StockCard) error {
	return create(s.conn(ctx), card)
}

func (s *Store) CreateStockLog(ctx context.Context, entry *models.StockLog) error {
	return create(s.conn(ctx), entry)
}

func (s *Store) ListStockLogs(ctx context.Context, cardId int) ([]*models.StockLog, error) {
	return list[models.StockLog](s.conn(ctx).Where("card_id = ?", cardId).Order("id ASC"))
}
