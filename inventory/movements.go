package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/metrics"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// siteName labels the counterparty of a movement.
func (s *Service) siteName(ctx context.Context, siteID *int) string {
	if siteID == nil {
		return ""
	}
	site, err := s.st.GetSite(ctx, *siteID)
	if err != nil {
		return fmt.Sprintf("site %d", *siteID)
	}
	return site.Name
}

// logMovement appends a line to the stock card of (siteID, itemID). delta is
// in base units; the balance is read after the movement was applied.
func (s *Service) logMovement(ctx context.Context, packs *packCache, kind models.StockMovementKind, siteID, itemID int, counterparty string, delta decimal.Decimal, refTable string, refID int) error {
	card, err := s.st.GetStockCard(ctx, siteID, itemID)
	if utils.IsNotFound(err) {
		card = &models.StockCard{SiteId: siteID, ItemId: itemID}
		err = s.st.CreateStockCard(ctx, card)
		if utils.IsDuplicate(err) {
			card, err = s.st.GetStockCard(ctx, siteID, itemID)
		}
	}
	if err != nil {
		return errors.Wrap(err, "stock card")
	}
	balance, err := s.stock(ctx, packs, siteID, itemID)
	if err != nil {
		return err
	}
	if err := s.st.CreateStockLog(ctx, &models.StockLog{
		CardId:         card.ID,
		Date:           time.Now().UTC(),
		Kind:           kind,
		SiteId:         siteID,
		Counterparty:   counterparty,
		QuantityDelta:  delta,
		Balance:        balance,
		ReferenceTable: refTable,
		ReferenceId:    refID,
	}); err != nil {
		return errors.Wrap(err, "stock log")
	}
	metrics.StockMovement(string(kind))
	return nil
}

// StockCard returns the ledger of (siteID, itemID), oldest first.
func (s *Service) StockCard(ctx context.Context, siteID, itemID int) ([]*models.StockLog, error) {
	card, err := s.st.GetStockCard(ctx, siteID, itemID)
	if utils.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.st.ListStockLogs(ctx, card.ID)
}

// adjustLine adds qty packs to the stock line of (site, item, pack), creating
// the line when needed. The resulting quantity may not be negative.
func (s *Service) adjustLine(ctx context.Context, invItemID *int, siteID, itemID, packID int, qty decimal.Decimal) (*models.InvItem, error) {
	line, err := s.lookupLine(ctx, invItemID, siteID, itemID, packID)
	if utils.IsNotFound(err) {
		if qty.IsNegative() {
			return nil, errors.Wrapf(ErrInsufficientStock, "item %d at site %d", itemID, siteID)
		}
		line = &models.InvItem{SiteId: siteID, ItemId: itemID, ItemPackId: packID, Quantity: qty}
		if err := s.st.CreateInvItem(ctx, line); err != nil {
			return nil, errors.Wrap(err, "create inv item")
		}
		return line, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "inv item")
	}
	next := line.Quantity.Add(qty)
	if next.IsNegative() {
		return nil, errors.Wrapf(ErrInsufficientStock, "item %d at site %d: have %s, need %s", itemID, siteID, line.Quantity, qty.Neg())
	}
	if err := s.st.UpdateInvItemQuantity(ctx, line.ID, next); err != nil {
		return nil, errors.Wrap(err, "update inv item")
	}
	line.Quantity = next
	return line, nil
}

// Dispatch takes the lines of a send out of the stock of its site.
func (s *Service) Dispatch(ctx context.Context, send *models.Send, lines []*models.TrackItem) error {
	packs := s.packs()
	counterparty := s.siteName(ctx, send.ToSiteId)
	for _, l := range lines {
		if _, err := s.adjustLine(ctx, l.SendInvItemId, send.SiteId, l.ItemId, l.ItemPackId, l.Quantity.Neg()); err != nil {
			return err
		}
		p, err := packs.get(ctx, l.ItemPackId)
		if err != nil {
			return err
		}
		if err := s.logMovement(ctx, packs, models.StockMovementSend, send.SiteId, l.ItemId, counterparty, p.BaseQuantity(l.Quantity).Neg(), "inv_send", send.ID); err != nil {
			return err
		}
	}
	return nil
}

// Receive adds the counted quantities of a receive to the stock of its site.
func (s *Service) Receive(ctx context.Context, recv *models.Recv, lines []*models.TrackItem) error {
	packs := s.packs()
	counterparty := s.siteName(ctx, recv.FromSiteId)
	if counterparty == "" && recv.PurchaseRef != "" {
		counterparty = recv.PurchaseRef
	}
	for _, l := range lines {
		qty := l.ReceivedQuantity()
		if _, err := s.adjustLine(ctx, nil, recv.SiteId, l.ItemId, l.ItemPackId, qty); err != nil {
			return err
		}
		p, err := packs.get(ctx, l.ItemPackId)
		if err != nil {
			return err
		}
		if err := s.logMovement(ctx, packs, models.StockMovementRecv, recv.SiteId, l.ItemId, counterparty, p.BaseQuantity(qty), "inv_recv", recv.ID); err != nil {
			return err
		}
	}
	return nil
}

// AdjLine is one counted line of a stock adjustment.
type AdjLine struct {
	InvItemId   *int
	ItemId      int             `validate:"required"`
	ItemPackId  int             `validate:"required"`
	NewQuantity decimal.Decimal `validate:"-"`
}

type AdjInput struct {
	SiteId     int       `validate:"required"`
	AdjusterId *int      `validate:"omitempty,gt=0"`
	Comments   string    `validate:"max=2000"`
	Lines      []AdjLine `validate:"required,min=1,dive"`
}

// OpenAdj records an adjustment with the current quantity of each line.
func (s *Service) OpenAdj(ctx context.Context, in AdjInput) (*models.Adj, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	adj := &models.Adj{SiteId: in.SiteId, AdjusterId: in.AdjusterId, Comments: in.Comments, Date: time.Now().UTC(), Status: models.AdjStatusOpen}
	for _, l := range in.Lines {
		if l.NewQuantity.IsNegative() {
			return nil, errors.New("invalid input: NewQuantity: gte")
		}
		old := decimal.Zero
		line, err := s.lookupLine(ctx, l.InvItemId, in.SiteId, l.ItemId, l.ItemPackId)
		switch {
		case err == nil:
			old = line.Quantity
		case !utils.IsNotFound(err):
			return nil, errors.Wrap(err, "inv item")
		}
		adj.Items = append(adj.Items, &models.AdjItem{
			InvItemId:   l.InvItemId,
			ItemId:      l.ItemId,
			ItemPackId:  l.ItemPackId,
			OldQuantity: old,
			NewQuantity: l.NewQuantity,
		})
	}
	if err := s.st.CreateAdj(ctx, adj); err != nil {
		return nil, errors.Wrap(err, "create adjustment")
	}
	return adj, nil
}

// CloseAdj applies the counted quantities of an open adjustment and runs the
// stock hooks of its site.
func (s *Service) CloseAdj(ctx context.Context, adjID int) (*models.Adj, error) {
	var adj *models.Adj
	err := s.st.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if adj, err = s.st.GetAdj(ctx, adjID); err != nil {
			return errors.Wrapf(err, "adjustment %d", adjID)
		}
		if adj.Status == models.AdjStatusClosed {
			return ErrAdjClosed
		}
		packs := s.packs()
		for _, it := range adj.Items {
			current := decimal.Zero
			if line, err := s.findLine(ctx, it.InvItemId, adj.SiteId, it.ItemId, it.ItemPackId); err != nil {
				return err
			} else if line != nil {
				current = line.Quantity
			}
			delta := it.NewQuantity.Sub(current)
			if delta.IsZero() {
				continue
			}
			if _, err := s.adjustLine(ctx, it.InvItemId, adj.SiteId, it.ItemId, it.ItemPackId, delta); err != nil {
				return err
			}
			p, err := packs.get(ctx, it.ItemPackId)
			if err != nil {
				return err
			}
			if err := s.logMovement(ctx, packs, models.StockMovementAdjust, adj.SiteId, it.ItemId, "", p.BaseQuantity(delta), "inv_adj", adj.ID); err != nil {
				return err
			}
		}
		if err := s.st.UpdateAdjStatus(ctx, adj.ID, models.AdjStatusClosed); err != nil {
			return errors.Wrap(err, "close adjustment")
		}
		adj.Status = models.AdjStatusClosed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.OnInvAdjClose(ctx, adj)
	return adj, nil
}

// lookupLine loads the stock line named by invItemID, or the line of
// (site, item, pack) when no id is given. A named line of another site, item
// or pack is rejected with ErrLineMismatch.
func (s *Service) lookupLine(ctx context.Context, invItemID *int, siteID, itemID, packID int) (*models.InvItem, error) {
	if invItemID == nil {
		return s.st.FindInvItem(ctx, siteID, itemID, packID)
	}
	line, err := s.st.GetInvItem(ctx, *invItemID)
	if err != nil {
		return nil, err
	}
	if line.SiteId != siteID || line.ItemId != itemID || line.ItemPackId != packID {
		return nil, errors.Wrapf(ErrLineMismatch, "inv item %d is item %d pack %d at site %d, want item %d pack %d at site %d",
			line.ID, line.ItemId, line.ItemPackId, line.SiteId, itemID, packID, siteID)
	}
	return line, nil
}

func (s *Service) findLine(ctx context.Context, invItemID *int, siteID, itemID, packID int) (*models.InvItem, error) {
	line, err := s.lookupLine(ctx, invItemID, siteID, itemID, packID)
	if utils.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "inv item")
	}
	return line, nil
}

type KitInput struct {
	SiteId     int             `validate:"required"`
	ItemId     int             `validate:"required"`
	ItemPackId int             `validate:"required"`
	Quantity   decimal.Decimal `validate:"-"`
}

// Kit assembles in.Quantity kits at a site, consuming the components of the
// kit definition from the site's stock.
func (s *Service) Kit(ctx context.Context, in KitInput) (*models.Kitting, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}
	if !in.Quantity.IsPositive() {
		return nil, errors.New("invalid input: Quantity: gt")
	}
	kitting := &models.Kitting{SiteId: in.SiteId, ItemId: in.ItemId, ItemPackId: in.ItemPackId, Quantity: in.Quantity, Date: time.Now().UTC()}
	err := s.st.Transaction(ctx, func(ctx context.Context) error {
		item, err := s.st.GetItem(ctx, in.ItemId)
		if err != nil {
			return errors.Wrapf(err, "item %d", in.ItemId)
		}
		if !item.Kit {
			return ErrNotKit
		}
		components, err := s.st.ListKitItems(ctx, item.ID)
		if err != nil {
			return errors.Wrap(err, "kit components")
		}
		if err := s.st.CreateKitting(ctx, kitting); err != nil {
			return errors.Wrap(err, "create kitting")
		}

		packs := s.packs()
		for _, c := range components {
			need := c.Quantity.Mul(in.Quantity)
			if _, err := s.adjustLine(ctx, nil, in.SiteId, c.ItemId, c.ItemPackId, need.Neg()); err != nil {
				return err
			}
			p, err := packs.get(ctx, c.ItemPackId)
			if err != nil {
				return err
			}
			if err := s.logMovement(ctx, packs, models.StockMovementKit, in.SiteId, c.ItemId, item.Name, p.BaseQuantity(need).Neg(), "inv_kitting", kitting.ID); err != nil {
				return err
			}
		}
		if _, err := s.adjustLine(ctx, nil, in.SiteId, in.ItemId, in.ItemPackId, in.Quantity); err != nil {
			return err
		}
		p, err := packs.get(ctx, in.ItemPackId)
		if err != nil {
			return err
		}
		return s.logMovement(ctx, packs, models.StockMovementKit, in.SiteId, in.ItemId, "", p.BaseQuantity(in.Quantity), "inv_kitting", kitting.ID)
	})
	if err != nil {
		return nil, err
	}
	s.OnInvKitting(ctx, kitting)
	return kitting, nil
}

// afterMovement re-evaluates the alerts of a site whose stock changed.
// Failures are logged: the movement itself already succeeded.
func (s *Service) afterMovement(ctx context.Context, hook string, siteID int) {
	if err := s.ScanMinimums(ctx, siteID); err != nil {
		config.LogError(s.logger, "inventory", hook, "scan minimums", siteID, err)
	}
	if err := s.RecomputeFreeCapacity(ctx, siteID); err != nil {
		config.LogError(s.logger, "inventory", hook, "recompute free capacity", siteID, err)
	}
}

func (s *Service) OnInvSendProcess(ctx context.Context, send *models.Send) {
	s.afterMovement(ctx, "OnInvSendProcess", send.SiteId)
}

func (s *Service) OnInvRecvProcess(ctx context.Context, recv *models.Recv) {
	s.afterMovement(ctx, "OnInvRecvProcess", recv.SiteId)
}

func (s *Service) OnInvAdjClose(ctx context.Context, adj *models.Adj) {
	s.afterMovement(ctx, "OnInvAdjClose", adj.SiteId)
}

func (s *Service) OnInvKitting(ctx context.Context, k *models.Kitting) {
	s.afterMovement(ctx, "OnInvKitting", k.SiteId)
}
