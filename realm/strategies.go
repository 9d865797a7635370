package realm

import (
	"context"
	"sort"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
)

// miss turns a lookup miss into Keep and passes other errors through.
func miss(err error) (int, Outcome, error) {
	if utils.IsNotFound(err) {
		return 0, Keep, nil
	}
	return 0, Keep, err
}

func assignEntity(id int) (int, Outcome, error) {
	if id == 0 {
		return 0, Keep, nil
	}
	return id, Assign, nil
}

// requisition derives the realm of a requisition or one of its items from
// the set of sites the requisition touches.
func (r *Resolver) requisition(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error) {
	rowID, _ := row.Int("id")
	sites := map[int]bool{}
	var reqID int
	if table == "inv_req" {
		reqID = rowID
		if s, ok := row.Int("site_id"); ok {
			sites[s] = true
		}
	} else {
		var ok bool
		if reqID, ok = row.Int("req_id"); !ok {
			return 0, Keep, nil
		}
		req, err := st.GetReq(ctx, reqID)
		if err != nil {
			return miss(err)
		}
		sites[req.SiteId] = true
		if s, ok := row.Int("site_id"); ok {
			sites[s] = true
		}
	}

	if reqID != 0 {
		items, err := st.ListReqItems(ctx, reqID)
		if err != nil {
			return 0, Keep, err
		}
		for _, it := range items {
			if table == "inv_req_item" && it.ID == rowID {
				continue
			}
			if it.SiteId != nil && *it.SiteId != 0 {
				sites[*it.SiteId] = true
			}
		}
	}
	delete(sites, 0)

	ids := make([]int, 0, len(sites))
	for id := range sites {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	switch len(ids) {
	case 0:
		return 0, Keep, nil
	case 1:
		return r.siteEntity(ctx, st, ids[0])
	case 2:
		return r.twoSites(ctx, st, ids[0], ids[1])
	}
	if reqID == 0 {
		return 0, Keep, nil
	}
	parents := make([]int, 0, len(ids))
	for _, id := range ids {
		site, err := st.GetSite(ctx, id)
		if err != nil {
			return miss(err)
		}
		parents = append(parents, site.PeId)
	}
	realm, err := r.sharedRealm(ctx, st, ReqRealmName(reqID), parents, true)
	if err != nil {
		return 0, Keep, err
	}
	return realm, Assign, nil
}

func (r *Resolver) siteEntity(ctx context.Context, st Store, siteID int) (int, Outcome, error) {
	site, err := st.GetSite(ctx, siteID)
	if err != nil {
		return miss(err)
	}
	return assignEntity(site.PeId)
}

// twoSites returns the stable realm shared by sites a and b.
func (r *Resolver) twoSites(ctx context.Context, st Store, a, b int) (int, Outcome, error) {
	if a == b {
		return r.siteEntity(ctx, st, a)
	}
	if a > b {
		a, b = b, a
	}
	siteA, err := st.GetSite(ctx, a)
	if err != nil {
		return miss(err)
	}
	siteB, err := st.GetSite(ctx, b)
	if err != nil {
		return miss(err)
	}
	realm, err := r.sharedRealm(ctx, st, TwoSitesName(a, b), []int{siteA.PeId, siteB.PeId}, false)
	if err != nil {
		return 0, Keep, err
	}
	return realm, Assign, nil
}

// trackItem resolves the send first: with both shipments present the item
// belongs to the realm shared by the two sites of the send, otherwise it
// inherits the realm of whichever shipment exists.
func (r *Resolver) trackItem(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error) {
	var (
		send *models.Send
		recv *models.Recv
		err  error
	)
	if id, ok := row.Int("send_id"); ok {
		if send, err = st.GetSend(ctx, id); err != nil && !utils.IsNotFound(err) {
			return 0, Keep, err
		}
	}
	if id, ok := row.Int("recv_id"); ok {
		if recv, err = st.GetRecv(ctx, id); err != nil && !utils.IsNotFound(err) {
			return 0, Keep, err
		}
	}

	switch {
	case send != nil && recv != nil:
		to := recv.SiteId
		if send.ToSiteId != nil {
			to = *send.ToSiteId
		}
		return r.twoSites(ctx, st, send.SiteId, to)
	case send != nil:
		return assignEntity(utils.DereferencePtr(send.RealmEntity))
	case recv != nil:
		return assignEntity(utils.DereferencePtr(recv.RealmEntity))
	}
	return 0, Keep, nil
}

// organisation: Red Cross societies own themselves, training centres use the
// fallback and every other organisation belongs to the root organisation of
// whoever registered it.
func (r *Resolver) organisation(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error) {
	typ, _ := row.String("organisation_type")
	switch typ {
	case models.OrganisationTypeRedCross:
		pe, _ := row.Int("pe_id")
		return assignEntity(pe)
	case models.OrganisationTypeTrainingCentre:
		return 0, Defer, nil
	}
	org, err := r.creatorOrganisation(ctx, st, row)
	if err != nil {
		return 0, Keep, err
	}
	if org == nil {
		return 0, Defer, nil
	}
	root, err := r.rootOrganisation(ctx, st, org)
	if err != nil {
		return 0, Keep, err
	}
	return assignEntity(root.PeId)
}

func (r *Resolver) site(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error) {
	if typ, _ := row.String("instance_type"); typ == models.SiteTypeFacility {
		return r.userOrganisation(ctx, st, table, row)
	}
	return 0, Defer, nil
}

func (r *Resolver) userOrganisation(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error) {
	org, err := r.creatorOrganisation(ctx, st, row)
	if err != nil {
		return 0, Keep, err
	}
	if org == nil {
		return 0, Defer, nil
	}
	return assignEntity(org.PeId)
}

// training follows the trainee's human resource record when there is exactly
// one, else the organisation running the course.
func (r *Resolver) training(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error) {
	if person, ok := row.Int("person_id"); ok {
		hrs, err := st.ListHumanResources(ctx, person)
		if err != nil {
			return 0, Keep, err
		}
		if len(hrs) == 1 && hrs[0].RealmEntity != nil {
			return assignEntity(*hrs[0].RealmEntity)
		}
	}
	if courseID, ok := row.Int("course_id"); ok {
		course, err := st.GetCourse(ctx, courseID)
		if err != nil {
			return miss(err)
		}
		if course.OrganisationId != nil {
			org, err := st.GetOrganisation(ctx, *course.OrganisationId)
			if err != nil {
				return miss(err)
			}
			return assignEntity(org.PeId)
		}
	}
	return 0, Defer, nil
}

// inherit follows the first foreign key present in row. Defer means no
// candidate key was set.
func (r *Resolver) inherit(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error) {
	fks := append(append([]string{}, preferredFKs[table]...), defaultFKs...)
	for _, fk := range fks {
		id, ok := row.Int(fk)
		if !ok {
			continue
		}
		return r.follow(ctx, st, fk, id)
	}
	return 0, Defer, nil
}

func (r *Resolver) follow(ctx context.Context, st Store, fk string, id int) (int, Outcome, error) {
	switch fk {
	case "site_id":
		return r.siteEntity(ctx, st, id)
	case "pe_id":
		e, err := st.GetEntity(ctx, id)
		if err != nil {
			return miss(err)
		}
		switch e.Kind {
		case models.EntityKindOrganisation, models.EntityKindSite, models.EntityKindRealm:
			return e.ID, Assign, nil
		}
		if e.InstanceTable == "" || e.InstanceId == 0 {
			return 0, Keep, nil
		}
		realm, err := st.GetRealmEntity(ctx, e.InstanceTable, e.InstanceId)
		if err != nil {
			return miss(err)
		}
		return assignEntity(utils.DereferencePtr(realm))
	case "organisation_id":
		org, err := st.GetOrganisation(ctx, id)
		if err != nil {
			return miss(err)
		}
		if org.RealmEntity != nil {
			return assignEntity(*org.RealmEntity)
		}
		return assignEntity(org.PeId)
	}
	table, ok := fkTables[fk]
	if !ok {
		return 0, Keep, nil
	}
	realm, err := st.GetRealmEntity(ctx, table, id)
	if err != nil {
		return miss(err)
	}
	return assignEntity(utils.DereferencePtr(realm))
}

// fallback is the organisation of the creating user, or its root.
func (r *Resolver) fallback(ctx context.Context, st Store, row models.Row) (int, bool, error) {
	org, err := r.creatorOrganisation(ctx, st, row)
	if err != nil || org == nil {
		return 0, false, err
	}
	if r.FallbackRootOrg {
		if org, err = r.rootOrganisation(ctx, st, org); err != nil {
			return 0, false, err
		}
	}
	if org.PeId == 0 {
		return 0, false, nil
	}
	return org.PeId, true, nil
}

// creatorOrganisation is the organisation of the row's creator (created_by,
// else the user of ctx). nil when unknown.
func (r *Resolver) creatorOrganisation(ctx context.Context, st Store, row models.Row) (*models.Organisation, error) {
	userID, ok := row.Int("created_by")
	if !ok {
		if userID, ok = utils.GetUserIdFromContext(ctx); !ok || userID == 0 {
			return nil, nil
		}
	}
	user, err := st.GetUser(ctx, userID)
	if err != nil {
		if utils.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if user.OrganisationId == nil {
		return nil, nil
	}
	org, err := st.GetOrganisation(ctx, *user.OrganisationId)
	if err != nil {
		if utils.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return org, nil
}

func (r *Resolver) rootOrganisation(ctx context.Context, st Store, org *models.Organisation) (*models.Organisation, error) {
	if org.RootOrganisation == 0 || org.RootOrganisation == org.ID {
		return org, nil
	}
	root, err := st.GetOrganisation(ctx, org.RootOrganisation)
	if err != nil {
		if utils.IsNotFound(err) {
			return org, nil
		}
		return nil, err
	}
	return root, nil
}
