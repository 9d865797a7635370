package memstore

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/shopspring/decimal"
)

// Seed helpers build fixtures with explicit ids. They panic on error and are
// meant for tests and local demo data only.

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// SeedOrganisation creates an organisation and its entity. root 0 makes the
// organisation its own root.
func (s *Store) SeedOrganisation(id int, name, typ string, root int) *models.Organisation {
	ctx := context.Background()
	e := &models.Entity{Kind: models.EntityKindOrganisation, InstanceTable: "org_organisation", InstanceId: id}
	must(s.CreateEntity(ctx, e))
	if root == 0 {
		root = id
	}
	o := &models.Organisation{ID: id, PeId: e.ID, Name: name, OrganisationType: typ, RootOrganisation: root}
	must(s.CreateOrganisation(ctx, o))
	return o
}

// SeedSite creates a site with its instance entity, affiliated below the
// entity of its organisation.
func (s *Store) SeedSite(id, organisationID int, instanceType, name string) *models.Site {
	ctx := context.Background()
	e := &models.Entity{Kind: models.EntityKindSite, InstanceTable: "org_site", InstanceId: id}
	must(s.CreateEntity(ctx, e))
	if org, err := s.GetOrganisation(ctx, organisationID); err == nil {
		s.SeedAffiliation(org.PeId, e.ID)
	}
	site := &models.Site{ID: id, InstanceType: instanceType, PeId: e.ID, OrganisationId: organisationID, Name: name, Code: fmt.Sprintf("S%d", id)}
	must(s.CreateSite(ctx, site))
	return site
}

func (s *Store) SeedWarehouse(siteID int, capacity, free string) *models.Warehouse {
	w := &models.Warehouse{SiteId: siteID, Capacity: decimalOf(capacity), FreeCapacity: decimalOf(free)}
	must(s.CreateWarehouse(context.Background(), w))
	return w
}

// SeedUser creates a user with a person record and person entity.
func (s *Store) SeedUser(id, organisationID int, email, language string) *models.User {
	ctx := context.Background()
	e := &models.Entity{Kind: models.EntityKindPerson, InstanceTable: "pr_person"}
	must(s.CreateEntity(ctx, e))
	u := &models.User{ID: id, Email: email, FirstName: email, Language: language, PeId: e.ID}
	if organisationID != 0 {
		u.OrganisationId = &organisationID
	}
	must(s.CreateUser(ctx, u))
	p := &models.Person{PeId: e.ID, UserId: &u.ID, FirstName: email}
	must(s.CreatePerson(ctx, p))
	must(s.UpdateEntityInstance(ctx, e.ID, "pr_person", p.ID))
	return u
}

// PersonOf returns the person record linked to userID.
func (s *Store) PersonOf(userID int) *models.Person {
	rows := filter(s, persons, func(p models.Person) bool { return p.UserId != nil && *p.UserId == userID })
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

func (s *Store) SeedMembership(userID int, role string, peID *int) {
	must(s.CreateMembership(context.Background(), &models.RoleMembership{UserId: userID, Role: role, PeId: peID}))
}

func (s *Store) SeedAffiliation(parentID, childID int) {
	must(s.CreateAffiliation(context.Background(), &models.Affiliation{
		ParentId: parentID,
		ChildId:  childID,
		Role:     "OU",
		RoleType: models.RoleTypeOUMember,
	}))
}

func (s *Store) SeedItem(id int, name string, packQuantity, packVolume string) (*models.Item, *models.ItemPack) {
	ctx := context.Background()
	it := &models.Item{ID: id, Code: fmt.Sprintf("I%d", id), Name: name}
	must(s.CreateItem(ctx, it))
	pack := &models.ItemPack{ItemId: it.ID, Name: "pack", Quantity: decimalOf(packQuantity)}
	if packVolume != "" {
		v := decimalOf(packVolume)
		pack.Volume = &v
	}
	must(s.CreateItemPack(ctx, pack))
	return it, pack
}

func decimalOf(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	must(err)
	return d
}
