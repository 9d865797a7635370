package inventory

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func (s *Service) operators(ctx context.Context, siteID int) ([]notify.Recipient, string, error) {
	groups, err := s.fabric.OperatorsForSites(ctx, []int{siteID})
	if err != nil {
		return nil, "", err
	}
	if g, ok := groups[siteID]; ok {
		return g.Operators, g.Name, nil
	}
	return nil, "", nil
}

// ScanMinimums compares the stock of every item with a minimum at siteID
// and raises or retracts the min_stock notifications of the site operators.
func (s *Service) ScanMinimums(ctx context.Context, siteID int) error {
	minimums, err := s.st.ListMinimums(ctx, siteID)
	if err != nil {
		return errors.Wrap(err, "list minimums")
	}
	if len(minimums) == 0 {
		return nil
	}
	site, err := s.st.GetSite(ctx, siteID)
	if err != nil {
		return errors.Wrapf(err, "site %d", siteID)
	}

	var (
		recipients []notify.Recipient
		loaded     bool
	)
	packs := s.packs()
	for _, m := range minimums {
		stock, err := s.stock(ctx, packs, siteID, m.ItemId)
		if err != nil {
			return err
		}
		if stock.GreaterThanOrEqual(m.Quantity) {
			if _, err := s.fabric.Retract(ctx, models.NotificationFilter{
				Type:      models.NotificationMinStock,
				Tablename: "inv_minimum",
				RecordId:  m.ID,
			}); err != nil {
				return err
			}
			continue
		}

		if !loaded {
			if recipients, _, err = s.operators(ctx, siteID); err != nil {
				return err
			}
			loaded = true
		}
		if len(recipients) == 0 {
			continue
		}
		itemName := fmt.Sprintf("#%d", m.ItemId)
		if it, err := s.st.GetItem(ctx, m.ItemId); err == nil {
			itemName = it.Name
		}
		url := fmt.Sprintf("/inv/minimum/%d", m.ID)
		data := map[string]any{
			"Item":    itemName,
			"Site":    site.Name,
			"Stock":   stock.String(),
			"Minimum": m.Quantity.String(),
			"Url":     url,
		}
		if _, err := s.fabric.Broadcast(ctx, recipients, notify.Message{
			Type:      models.NotificationMinStock,
			Tablename: "inv_minimum",
			RecordId:  m.ID,
			Url:       url,
			Render:    s.fabric.Localized("MinStock", data),
		}); err != nil {
			return err
		}
	}
	return nil
}

// OnFreeCapacityUpdate raises a capacity alert for the operators of the
// warehouse when its free capacity falls below the threshold and none is
// open, and retracts open alerts once it is back above.
func (s *Service) OnFreeCapacityUpdate(ctx context.Context, w *models.Warehouse) error {
	threshold := w.Capacity.Mul(s.ThresholdRatio)
	filter := models.NotificationFilter{
		Type:      models.NotificationCapacity,
		Tablename: "inv_warehouse",
		RecordId:  w.ID,
	}
	if w.FreeCapacity.GreaterThanOrEqual(threshold) {
		_, err := s.fabric.Retract(ctx, filter)
		return err
	}

	open, err := s.fabric.Open(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "open capacity alerts")
	}
	if len(open) > 0 {
		return nil
	}
	recipients, siteName, err := s.operators(ctx, w.SiteId)
	if err != nil || len(recipients) == 0 {
		return err
	}
	url := fmt.Sprintf("/inv/warehouse/%d", w.SiteId)
	_, err = s.fabric.Broadcast(ctx, recipients, notify.Message{
		Type:      models.NotificationCapacity,
		Tablename: "inv_warehouse",
		RecordId:  w.ID,
		Url:       url,
		Render: s.fabric.Localized("Capacity", map[string]any{
			"Site":     siteName,
			"Free":     w.FreeCapacity.String(),
			"Capacity": w.Capacity.String(),
			"Url":      url,
		}),
	})
	return err
}

// SetFreeCapacity records a new free capacity for the warehouse of siteID.
func (s *Service) SetFreeCapacity(ctx context.Context, siteID int, free decimal.Decimal) error {
	w, err := s.st.GetWarehouseBySite(ctx, siteID)
	if err != nil {
		return errors.Wrapf(err, "warehouse of site %d", siteID)
	}
	if err := s.st.UpdateWarehouseFreeCapacity(ctx, w.ID, free); err != nil {
		return errors.Wrap(err, "update free capacity")
	}
	w.FreeCapacity = free
	return s.OnFreeCapacityUpdate(ctx, w)
}

// RecomputeFreeCapacity derives the free capacity of the warehouse of siteID
// from the volume of its stock. Sites without a warehouse are ignored.
func (s *Service) RecomputeFreeCapacity(ctx context.Context, siteID int) error {
	w, err := s.st.GetWarehouseBySite(ctx, siteID)
	if utils.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "warehouse of site %d", siteID)
	}
	used, err := s.usedVolume(ctx, siteID)
	if err != nil {
		return err
	}
	free := w.Capacity.Sub(used)
	if free.Equal(w.FreeCapacity) {
		return nil
	}
	return s.SetFreeCapacity(ctx, siteID, free)
}

// ScanAll runs the minimum scan and the capacity recompute for every site.
// Failures of one site are logged, counted and the scan continues.
func (s *Service) ScanAll(ctx context.Context) (scanned, failed int, err error) {
	sites, err := s.st.ListSites(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "list sites")
	}
	for _, site := range sites {
		if err := s.ScanMinimums(ctx, site.ID); err != nil {
			failed++
			config.LogError(s.logger, "inventory", "ScanAll", "scan minimums", site.ID, err)
		}
		if site.InstanceType != models.SiteTypeWarehouse {
			continue
		}
		if err := s.RecomputeFreeCapacity(ctx, site.ID); err != nil {
			failed++
			config.LogError(s.logger, "inventory", "ScanAll", "recompute free capacity", site.ID, err)
		}
	}
	return len(sites), failed, nil
}
