// Package realm assigns every written record its owning entity (realm) and
// maintains the shared realms of records owned by several sites.
package realm

import (
	"context"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/sirupsen/logrus"
)

// Outcome tells Resolve what a strategy decided.
type Outcome int

const (
	// Keep leaves realm_entity untouched.
	Keep Outcome = iota
	// Assign sets realm_entity to the returned entity.
	Assign
	// Defer hands the row to the generic foreign-key walk and the fallback.
	Defer
)

// Strategy computes the realm of rows of one table.
type Strategy func(ctx context.Context, st Store, table string, row models.Row) (int, Outcome, error)

// referenceTables are globally visible and never get a realm.
var referenceTables = map[string]bool{
	"hrm_certificate":        true,
	"hrm_department":         true,
	"hrm_job_title":          true,
	"hrm_course":             true,
	"hrm_programme":          true,
	"inv_package":            true,
	"member_membership_type": true,
	"hrm_award":              true,
}

// preferredFKs lists, per table, the foreign keys followed before the
// defaults.
var preferredFKs = map[string][]string{
	"org_site":           {"organisation_id"},
	"inv_warehouse":      {"site_id"},
	"inv_inv_item":       {"site_id"},
	"inv_minimum":        {"site_id"},
	"inv_adj":            {"site_id"},
	"inv_kitting":        {"site_id"},
	"inv_send":           {"site_id"},
	"inv_recv":           {"site_id"},
	"inv_order_item":     {"req_id"},
	"inv_req_approver":   {"pe_id"},
	"hrm_human_resource": {"organisation_id", "site_id"},
	"pr_person":          {"pe_id"},
	"project_activity":   {"project_id", "project_location_id"},
	"supply_catalog":     {"organisation_id"},
}

var defaultFKs = []string{"catalog_id", "project_id", "project_location_id"}

// fkTables maps a foreign key column to the table it references.
var fkTables = map[string]string{
	"organisation_id":     "org_organisation",
	"person_id":           "pr_person",
	"req_id":              "inv_req",
	"send_id":             "inv_send",
	"recv_id":             "inv_recv",
	"human_resource_id":   "hrm_human_resource",
	"catalog_id":          "supply_catalog",
	"project_id":          "project_project",
	"project_location_id": "project_location",
}

type Resolver struct {
	Logger *logrus.Logger
	// FallbackRootOrg makes the fallback realm the root organisation of the
	// creating user instead of the user's organisation.
	FallbackRootOrg bool
	// Locker optionally serializes shared realm creation across processes.
	Locker Locker

	strategies map[string]Strategy
}

func New(logger *logrus.Logger, fallbackRootOrg bool) *Resolver {
	r := &Resolver{Logger: logger, FallbackRootOrg: fallbackRootOrg}
	r.strategies = map[string]Strategy{
		"inv_req":          r.requisition,
		"inv_req_item":     r.requisition,
		"inv_track_item":   r.trackItem,
		"org_organisation": r.organisation,
		"org_site":         r.site,
		"pr_forum":         r.userOrganisation,
		"pr_group":         r.userOrganisation,
		"hrm_training":     r.training,
	}
	return r
}

// Register installs or replaces the strategy of table.
func (r *Resolver) Register(table string, s Strategy) {
	r.strategies[table] = s
}

func (r *Resolver) logger() *logrus.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return config.GetLogger()
}

// Resolve computes the realm of row, about to be written to table.
// ok=false means realm_entity is left as it is; referenced rows that do not
// exist yield ok=false rather than an error.
func (r *Resolver) Resolve(ctx context.Context, st Store, table string, row models.Row) (entityID int, ok bool, err error) {
	if referenceTables[table] {
		return 0, false, nil
	}
	if s, found := r.strategies[table]; found {
		id, outcome, err := s(ctx, st, table, row)
		if err != nil {
			return 0, false, err
		}
		switch outcome {
		case Assign:
			return id, true, nil
		case Keep:
			return 0, false, nil
		}
	}

	id, outcome, err := r.inherit(ctx, st, table, row)
	if err != nil {
		return 0, false, err
	}
	switch outcome {
	case Assign:
		return id, true, nil
	case Keep:
		return 0, false, nil
	}
	return r.fallback(ctx, st, row)
}

// Refresh recomputes the realm of an existing row and writes it only when it
// changed. It reports whether a write happened.
func (r *Resolver) Refresh(ctx context.Context, st Store, table string, id int, row models.Row) (bool, error) {
	entity, ok, err := r.Resolve(ctx, st, table, row)
	if err != nil || !ok {
		return false, err
	}
	current, err := st.GetRealmEntity(ctx, table, id)
	if utils.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if current != nil && *current == entity {
		return false, nil
	}
	if err := st.UpdateRealmEntity(ctx, table, id, &entity); err != nil {
		return false, err
	}
	return true, nil
}
