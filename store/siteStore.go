package store

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/shopspring/decimal"
)

func (s *Store) GetOrganisation(ctx context.Context, id int) (*models.Organisation, error) {
	return first[models.Organisation](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) CreateOrganisation(ctx context.Context, o *models.Organisation) error {
	return create(s.conn(ctx), o)
}

func (s *Store) GetSite(ctx context.Context, id int) (*models.Site, error) {
	return first[models.Site](s.conn(ctx).Where("id = ? AND deleted = ?", id, false))
}

func (s *Store) ListSites(ctx context.Context) ([]*models.Site, error) {
	return list[models.Site](s.conn(ctx).Where("deleted = ?", false).Order("id ASC"))
}

func (s *Store) CreateSite(ctx context.Context, site *models.Site) error {
	return create(s.conn(ctx), site)
}

func (s *Store) GetWarehouseBySite(ctx context.Context, siteId int) (*models.Warehouse, error) {
	return first[models.Warehouse](s.conn(ctx).Where("site_id = ? AND deleted = ?", siteId, false))
}

func (s *Store) CreateWarehouse(ctx context.Context, w *models.Warehouse) error {
	return create(s.conn(ctx), w)
}

func (s *Store) UpdateWarehouseFreeCapacity(ctx context.Context, id int, free decimal.Decimal) error {
	return s.conn(ctx).Model(&models.Warehouse{}).Where("id = ?", id).Update("free_capacity", free).Error
}

func (s *Store) GetItem(ctx context.Context, id int) (*models.Item, error) {
	return first[models.Item](s.conn(ctx).Where("id = ?", id))
}

func (s *Store) GetItemPack(ctx context.Context, id int) (*models.ItemPack, error) {
	return first[models.ItemPack](s.conn(ctx).Where("id = ?", id))
}

func (s *Store) ListKitItems(ctx context.Context, kitId int) ([]*models.KitItem, error) {
	return list[models.KitItem](s.conn(ctx).Where("kit_id = ?", kitId).Order("id ASC"))
}
