// Package access answers role questions on top of auth_membership. Memberships
// are mirrored into a casbin RBAC-with-domains enforcer whose domains are
// entity ids; a global membership lives in the "*" domain.
package access

import (
	"context"
	"strconv"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/mmdatafocus/rms_backend/config"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/realm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const GlobalDomain = "*"

// Role names used across the engine.
const (
	RoleAdmin      = "admin"
	RoleOperator   = "wh_operator"
	RoleLogManager = "logs_manager"
)

const modelText = `
[request_definition]
r = sub, dom, role

[policy_definition]
p = sub, dom, role

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, r.role, r.dom) || g(r.sub, r.role, "*")
`

type Store interface {
	realm.AncestryStore
	ListMemberships(ctx context.Context) ([]*models.RoleMembership, error)
	CreateMembership(ctx context.Context, m *models.RoleMembership) error
	DeleteMembership(ctx context.Context, userId int, role string, peId *int) (int64, error)
}

type Service struct {
	st       Store
	logger   *logrus.Logger
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	// domains of each user, to answer unscoped questions
	domains map[string]map[string]int
}

func New(st Store, logger *logrus.Logger) (*Service, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, errors.Wrap(err, "access model")
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "access enforcer")
	}
	return &Service{st: st, logger: logger, enforcer: enf, domains: map[string]map[string]int{}}, nil
}

func subject(userID int) string { return "user:" + strconv.Itoa(userID) }

func domain(peID *int) string {
	if peID == nil {
		return GlobalDomain
	}
	return strconv.Itoa(*peID)
}

// Load replaces the enforcer state with the memberships of the store.
func (s *Service) Load(ctx context.Context) error {
	rows, err := s.st.ListMemberships(ctx)
	if err != nil {
		return errors.Wrap(err, "load memberships")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enforcer.ClearPolicy()
	s.domains = map[string]map[string]int{}
	for _, m := range rows {
		if m.Deleted {
			continue
		}
		if err := s.grant(m.UserId, m.Role, m.PeId); err != nil {
			return err
		}
	}
	s.logger.WithFields(logrus.Fields{"field": "Load", "memberships": len(rows)}).Debug("role memberships loaded")
	return nil
}

func (s *Service) grant(userID int, role string, peID *int) error {
	sub, dom := subject(userID), domain(peID)
	added, err := s.enforcer.AddGroupingPolicy(sub, role, dom)
	if err != nil {
		return errors.Wrapf(err, "grant %s to user %d", role, userID)
	}
	if added {
		if s.domains[sub] == nil {
			s.domains[sub] = map[string]int{}
		}
		s.domains[sub][dom]++
	}
	return nil
}

func (s *Service) revoke(userID int, role string, peID *int) error {
	sub, dom := subject(userID), domain(peID)
	removed, err := s.enforcer.RemoveGroupingPolicy(sub, role, dom)
	if err != nil {
		return errors.Wrapf(err, "revoke %s from user %d", role, userID)
	}
	if removed && s.domains[sub] != nil {
		if s.domains[sub][dom]--; s.domains[sub][dom] <= 0 {
			delete(s.domains[sub], dom)
		}
	}
	return nil
}

// AddMembership persists the membership and grants it. A nil peID makes it global.
func (s *Service) AddMembership(ctx context.Context, userID int, role string, peID *int) error {
	if err := s.st.CreateMembership(ctx, &models.RoleMembership{UserId: userID, Role: role, PeId: peID}); err != nil {
		return errors.Wrap(err, "create membership")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grant(userID, role, peID)
}

func (s *Service) RemoveMembership(ctx context.Context, userID int, role string, peID *int) error {
	if _, err := s.st.DeleteMembership(ctx, userID, role, peID); err != nil {
		return errors.Wrap(err, "delete membership")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoke(userID, role, peID)
}

// HasRole reports whether the user holds role. With forEntity set, only
// global grants and grants on the entity or one of its ancestors count;
// without it any grant counts.
func (s *Service) HasRole(ctx context.Context, userID int, role string, forEntity *int) (bool, error) {
	sub := subject(userID)
	if forEntity == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for dom := range s.domains[sub] {
			for _, r := range s.enforcer.GetRolesForUserInDomain(sub, dom) {
				if r == role {
					return true, nil
				}
			}
		}
		return false, nil
	}

	lineage, err := realm.Lineage(ctx, s.st, *forEntity)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pe := range lineage {
		ok, err := s.enforcer.Enforce(sub, strconv.Itoa(pe), role)
		if err != nil {
			return false, errors.Wrap(err, "enforce")
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
