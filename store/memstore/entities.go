package memstore

import (
	"context"
	"strings"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
)

func entities(d *data) map[int]models.Entity { return d.entities }
func affiliations(d *data) map[int]models.Affiliation { return d.affiliations }
func users(d *data) map[int]models.User { return d.users }
func persons(d *data) map[int]models.Person { return d.persons }
func memberships(d *data) map[int]models.RoleMembership { return d.memberships }
func organisations(d *data) map[int]models.Organisation { return d.organisations }
func sites(d *data) map[int]models.Site { return d.sites }
func warehouses(d *data) map[int]models.Warehouse { return d.warehouses }
func hrs(d *data) map[int]models.HumanResource { return d.hrs }
func courses(d *data) map[int]models.Course { return d.courses }
func trainings(d *data) map[int]models.Training { return d.trainings }

func (s *Store) GetEntity(ctx context.Context, id int) (*models.Entity, error) {
	return get(s, entities, id, nil)
}

func (s *Store) GetEntityByName(ctx context.Context, name string) (*models.Entity, error) {
	rows := filter(s, entities, func(e models.Entity) bool { return e.Name != nil && *e.Name == name })
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return rows[0], nil
}

func (s *Store) CreateEntity(ctx context.Context, e *models.Entity) error {
	e.ID = s.allocID(e.ID)
	return insertUnique(s, entities, e.ID, *e, func(x models.Entity) bool {
		return x.ID == e.ID || (e.Name != nil && x.Name != nil && *x.Name == *e.Name)
	})
}

func (s *Store) UpdateEntityInstance(ctx context.Context, id int, table string, instanceId int) error {
	return update(s, entities, id, func(e *models.Entity) {
		e.InstanceTable = table
		e.InstanceId = instanceId
	})
}

func (s *Store) DeleteEntity(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for aid, a := range s.d.affiliations {
		if a.ParentId == id || a.ChildId == id {
			delete(s.d.affiliations, aid)
		}
	}
	delete(s.d.entities, id)
	return nil
}

func (s *Store) ListRealmEntities(ctx context.Context, prefix string) ([]*models.Entity, error) {
	return filter(s, entities, func(e models.Entity) bool {
		return e.Kind == models.EntityKindRealm && e.Name != nil && strings.HasPrefix(*e.Name, prefix)
	}), nil
}

func (s *Store) ListAffiliationsByChild(ctx context.Context, childId int) ([]*models.Affiliation, error) {
	return filter(s, affiliations, func(a models.Affiliation) bool { return a.ChildId == childId }), nil
}

func (s *Store) ListAffiliationsByParent(ctx context.Context, parentId int) ([]*models.Affiliation, error) {
	return filter(s, affiliations, func(a models.Affiliation) bool { return a.ParentId == parentId }), nil
}

func (s *Store) CreateAffiliation(ctx context.Context, a *models.Affiliation) error {
	a.ID = s.allocID(a.ID)
	return insertUnique(s, affiliations, a.ID, *a, func(x models.Affiliation) bool {
		return x.ParentId == a.ParentId && x.ChildId == a.ChildId && x.Role == a.Role
	})
}

func (s *Store) DeleteAffiliation(ctx context.Context, parentId, childId int, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.d.affiliations {
		if a.ParentId == parentId && a.ChildId == childId && a.Role == role {
			delete(s.d.affiliations, id)
		}
	}
	return nil
}

// SetRealmRow registers the realm of a row of a table without a typed collection.
func (s *Store) SetRealmRow(table string, id int, realm *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.d.extra[table] == nil {
		s.d.extra[table] = map[int]*int{}
	}
	s.d.extra[table][id] = realm
}

func (s *Store) GetRealmEntity(ctx context.Context, table string, id int) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		realm *int
		found bool
	)
	switch table {
	case "org_organisation":
		var v models.Organisation
		v, found = s.d.organisations[id]
		realm = v.RealmEntity
	case "org_site":
		var v models.Site
		v, found = s.d.sites[id]
		realm = v.RealmEntity
	case "inv_warehouse":
		var v models.Warehouse
		v, found = s.d.warehouses[id]
		realm = v.RealmEntity
	case "inv_req":
		var v models.Req
		v, found = s.d.reqs[id]
		realm = v.RealmEntity
	case "inv_req_item":
		var v models.ReqItem
		v, found = s.d.reqItems[id]
		realm = v.RealmEntity
	case "inv_send":
		var v models.Send
		v, found = s.d.sends[id]
		realm = v.RealmEntity
	case "inv_recv":
		var v models.Recv
		v, found = s.d.recvs[id]
		realm = v.RealmEntity
	case "inv_track_item":
		var v models.TrackItem
		v, found = s.d.tracks[id]
		realm = v.RealmEntity
	case "inv_inv_item":
		var v models.InvItem
		v, found = s.d.invItems[id]
		realm = v.RealmEntity
	case "pr_person":
		var v models.Person
		v, found = s.d.persons[id]
		realm = v.RealmEntity
	case "hrm_human_resource":
		var v models.HumanResource
		v, found = s.d.hrs[id]
		realm = v.RealmEntity
	default:
		realm, found = s.d.extra[table][id]
	}
	if !found {
		return nil, utils.ErrorRecordNotFound
	}
	return realm, nil
}

func (s *Store) UpdateRealmEntity(ctx context.Context, table string, id int, realm *int) error {
	switch table {
	case "inv_req":
		return update(s, reqs, id, func(v *models.Req) { v.RealmEntity = realm })
	case "inv_req_item":
		return update(s, reqItems, id, func(v *models.ReqItem) { v.RealmEntity = realm })
	case "inv_track_item":
		return update(s, tracks, id, func(v *models.TrackItem) { v.RealmEntity = realm })
	case "inv_send":
		return update(s, sends, id, func(v *models.Send) { v.RealmEntity = realm })
	case "inv_recv":
		return update(s, recvs, id, func(v *models.Recv) { v.RealmEntity = realm })
	case "org_site":
		return update(s, sites, id, func(v *models.Site) { v.RealmEntity = realm })
	case "org_organisation":
		return update(s, organisations, id, func(v *models.Organisation) { v.RealmEntity = realm })
	}
	s.SetRealmRow(table, id, realm)
	return nil
}

func (s *Store) CountRealmReferences(ctx context.Context, entityId int, tables []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	ref := func(r *int) {
		if r != nil && *r == entityId {
			n++
		}
	}
	for _, t := range tables {
		switch t {
		case "inv_req":
			for _, v := range s.d.reqs {
				ref(v.RealmEntity)
			}
		case "inv_req_item":
			for _, v := range s.d.reqItems {
				ref(v.RealmEntity)
			}
		case "inv_track_item":
			for _, v := range s.d.tracks {
				ref(v.RealmEntity)
			}
		case "inv_send":
			for _, v := range s.d.sends {
				ref(v.RealmEntity)
			}
		case "inv_recv":
			for _, v := range s.d.recvs {
				ref(v.RealmEntity)
			}
		case "inv_order_item":
			for _, v := range s.d.orderItems {
				ref(v.RealmEntity)
			}
		default:
			for _, r := range s.d.extra[t] {
				ref(r)
			}
		}
	}
	return n, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	u.ID = s.allocID(u.ID)
	return insertUnique(s, users, u.ID, *u, func(x models.User) bool { return x.Email == u.Email })
}

func (s *Store) GetUser(ctx context.Context, id int) (*models.User, error) {
	return get(s, users, id, func(u models.User) bool { return !u.Deleted })
}

func (s *Store) CreatePerson(ctx context.Context, p *models.Person) error {
	p.ID = s.allocID(p.ID)
	put(s, persons, p.ID, *p)
	return nil
}

func (s *Store) GetPerson(ctx context.Context, id int) (*models.Person, error) {
	return get(s, persons, id, func(p models.Person) bool { return !p.Deleted })
}

func (s *Store) GetUserByPerson(ctx context.Context, personId int) (*models.User, error) {
	p, err := s.GetPerson(ctx, personId)
	if err != nil {
		return nil, err
	}
	if p.UserId == nil {
		return nil, utils.ErrorRecordNotFound
	}
	return s.GetUser(ctx, *p.UserId)
}

func (s *Store) ListUsersByEntity(ctx context.Context, peId int) ([]*models.User, error) {
	linked := map[int]bool{}
	for _, p := range filter(s, persons, func(p models.Person) bool { return p.PeId == peId && p.UserId != nil }) {
		linked[*p.UserId] = true
	}
	return filter(s, users, func(u models.User) bool {
		return !u.Deleted && (u.PeId == peId || linked[u.ID])
	}), nil
}

func (s *Store) ListMemberships(ctx context.Context) ([]*models.RoleMembership, error) {
	return filter(s, memberships, func(m models.RoleMembership) bool { return !m.Deleted }), nil
}

func (s *Store) ListUserMemberships(ctx context.Context, userId int) ([]*models.RoleMembership, error) {
	return filter(s, memberships, func(m models.RoleMembership) bool { return !m.Deleted && m.UserId == userId }), nil
}

func (s *Store) CreateMembership(ctx context.Context, m *models.RoleMembership) error {
	m.ID = s.allocID(m.ID)
	put(s, memberships, m.ID, *m)
	return nil
}

func (s *Store) DeleteMembership(ctx context.Context, userId int, role string, peId *int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.d.memberships {
		if m.Deleted || m.UserId != userId || m.Role != role || !utils.IntPtrEqual(m.PeId, peId) {
			continue
		}
		m.Deleted = true
		s.d.memberships[id] = m
		n++
	}
	return n, nil
}

func (s *Store) CreateOrganisation(ctx context.Context, o *models.Organisation) error {
	o.ID = s.allocID(o.ID)
	realm, err := s.resolveRealm(ctx, "org_organisation", o.Row(), o.RealmEntity)
	if err != nil {
		return err
	}
	o.RealmEntity = realm
	put(s, organisations, o.ID, *o)
	return nil
}

func (s *Store) GetOrganisation(ctx context.Context, id int) (*models.Organisation, error) {
	return get(s, organisations, id, func(o models.Organisation) bool { return !o.Deleted })
}

func (s *Store) CreateSite(ctx context.Context, site *models.Site) error {
	site.ID = s.allocID(site.ID)
	realm, err := s.resolveRealm(ctx, "org_site", site.Row(), site.RealmEntity)
	if err != nil {
		return err
	}
	site.RealmEntity = realm
	put(s, sites, site.ID, *site)
	return nil
}

func (s *Store) GetSite(ctx context.Context, id int) (*models.Site, error) {
	return get(s, sites, id, func(v models.Site) bool { return !v.Deleted })
}

func (s *Store) ListSites(ctx context.Context) ([]*models.Site, error) {
	return filter(s, sites, func(v models.Site) bool { return !v.Deleted }), nil
}

func (s *Store) CreateHumanResource(ctx context.Context, h *models.HumanResource) error {
	h.ID = s.allocID(h.ID)
	realm, err := s.resolveRealm(ctx, "hrm_human_resource", h.Row(), h.RealmEntity)
	if err != nil {
		return err
	}
	h.RealmEntity = realm
	put(s, hrs, h.ID, *h)
	return nil
}

func (s *Store) ListHumanResources(ctx context.Context, personId int) ([]*models.HumanResource, error) {
	return filter(s, hrs, func(h models.HumanResource) bool { return !h.Deleted && h.PersonId == personId }), nil
}

func (s *Store) CreateCourse(ctx context.Context, c *models.Course) error {
	c.ID = s.allocID(c.ID)
	put(s, courses, c.ID, *c)
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	return get(s, courses, id, nil)
}

func (s *Store) CreateTraining(ctx context.Context, t *models.Training) error {
	t.ID = s.allocID(t.ID)
	realm, err := s.resolveRealm(ctx, "hrm_training", t.Row(), t.RealmEntity)
	if err != nil {
		return err
	}
	t.RealmEntity = realm
	put(s, trainings, t.ID, *t)
	return nil
}

func (s *Store) GetTraining(ctx context.Context, id int) (*models.Training, error) {
	return get(s, trainings, id, nil)
}
