package inventory

import (
	"context"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type NewWarehouse struct {
	OrganisationId int              `validate:"required"`
	Name           string           `validate:"required,max=128"`
	Code           string           `validate:"max=32"`
	Phone          *string          `validate:"omitempty,max=32"`
	LocationId     *int             `validate:"omitempty,gt=0"`
	Capacity       *decimal.Decimal `validate:"-"`
}

// RegisterWarehouse creates a warehouse site below its organisation. A new
// warehouse is empty, so its free capacity starts at the capacity.
func (s *Service) RegisterWarehouse(ctx context.Context, in NewWarehouse) (*models.Site, *models.Warehouse, error) {
	if err := utils.ValidateStruct(in); err != nil {
		return nil, nil, err
	}
	if in.Phone != nil && *in.Phone != "" {
		if err := utils.ValidatePhoneNumber(*in.Phone, ""); err != nil {
			return nil, nil, errors.Wrap(err, "invalid input: Phone")
		}
		in.Phone = utils.NewString(utils.FormatPhoneNumber(*in.Phone, ""))
	}
	capacity := utils.DereferencePtr(in.Capacity)
	if capacity.IsNegative() {
		return nil, nil, errors.New("invalid input: Capacity: gte")
	}

	site := &models.Site{
		InstanceType:   models.SiteTypeWarehouse,
		OrganisationId: in.OrganisationId,
		Name:           in.Name,
		Code:           in.Code,
		Phone:          in.Phone,
		LocationId:     in.LocationId,
	}
	w := &models.Warehouse{Capacity: capacity, FreeCapacity: capacity}
	err := s.st.Transaction(ctx, func(ctx context.Context) error {
		org, err := s.st.GetOrganisation(ctx, in.OrganisationId)
		if err != nil {
			return errors.Wrapf(err, "organisation %d", in.OrganisationId)
		}
		e := &models.Entity{Kind: models.EntityKindSite, InstanceTable: "org_site"}
		if err := s.st.CreateEntity(ctx, e); err != nil {
			return errors.Wrap(err, "create site entity")
		}
		if err := s.st.CreateAffiliation(ctx, &models.Affiliation{
			ParentId: org.PeId,
			ChildId:  e.ID,
			Role:     "OU",
			RoleType: models.RoleTypeOUMember,
		}); err != nil {
			return errors.Wrap(err, "affiliate site")
		}
		site.PeId = e.ID
		if err := s.st.CreateSite(ctx, site); err != nil {
			return errors.Wrap(err, "create site")
		}
		if err := s.st.UpdateEntityInstance(ctx, e.ID, "org_site", site.ID); err != nil {
			return errors.Wrap(err, "link site entity")
		}
		w.SiteId = site.ID
		if err := s.st.CreateWarehouse(ctx, w); err != nil {
			return errors.Wrap(err, "create warehouse")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return site, w, nil
}

// SetMinimum records the minimum stock (base units) of an item at a site and
// evaluates it straight away.
func (s *Service) SetMinimum(ctx context.Context, siteID, itemID int, quantity decimal.Decimal) (*models.Minimum, error) {
	if quantity.IsNegative() {
		return nil, errors.New("invalid input: Quantity: gte")
	}
	m := &models.Minimum{SiteId: siteID, ItemId: itemID, Quantity: quantity}
	if err := s.st.CreateMinimum(ctx, m); err != nil {
		return nil, errors.Wrap(err, "create minimum")
	}
	if err := s.ScanMinimums(ctx, siteID); err != nil {
		return m, err
	}
	return m, nil
}
