package realm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/rms_backend/metrics"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	TwoSitesPrefix = "2SITES_"
	ReqPrefix      = "REQ_"
)

// TwoSitesName names the realm shared by two sites, lowest id first.
func TwoSitesName(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%s%d_%d", TwoSitesPrefix, a, b)
}

func ReqRealmName(reqID int) string {
	return fmt.Sprintf("%s%d", ReqPrefix, reqID)
}

// Locker serializes shared realm creation across processes.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker is a Locker on top of redislock. A nil client never locks.
type RedisLocker struct {
	Client *redislock.Client
}

func (l RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.Client == nil {
		return func() {}, nil
	}
	lock, err := l.Client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = lock.Release(context.Background()) }, nil
}

// sharedRealm returns the realm entity called name, creating it when absent,
// and makes sure each of parents has a Parent edge to it. With reconcile set,
// Parent edges from entities outside parents are removed.
func (r *Resolver) sharedRealm(ctx context.Context, st Store, name string, parents []int, reconcile bool) (int, error) {
	e, err := st.GetEntityByName(ctx, name)
	if err != nil && !utils.IsNotFound(err) {
		return 0, errors.Wrapf(err, "lookup realm %s", name)
	}
	if e == nil {
		if e, err = r.createRealm(ctx, st, name); err != nil {
			return 0, err
		}
	}

	edges, err := st.ListAffiliationsByChild(ctx, e.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "affiliations of realm %s", name)
	}
	have := map[int]bool{}
	for _, a := range edges {
		if a.Role == models.RoleParent {
			have[a.ParentId] = true
		}
	}
	want := map[int]bool{}
	changed := false
	for _, p := range parents {
		want[p] = true
		if have[p] {
			continue
		}
		err := st.CreateAffiliation(ctx, &models.Affiliation{
			ParentId: p,
			ChildId:  e.ID,
			Role:     models.RoleParent,
			RoleType: models.RoleTypeOUMember,
		})
		if err != nil && !utils.IsDuplicate(err) {
			return 0, errors.Wrapf(err, "affiliate %d to realm %s", p, name)
		}
		changed = true
	}
	if reconcile {
		for p := range have {
			if want[p] {
				continue
			}
			if err := st.DeleteAffiliation(ctx, p, e.ID, models.RoleParent); err != nil {
				return 0, errors.Wrapf(err, "detach %d from realm %s", p, name)
			}
			changed = true
		}
	}
	if changed {
		InvalidateCache(ctx)
	}
	return e.ID, nil
}

// createRealm inserts the realm entity; a concurrent insert of the same
// name is resolved by reading the winning row back.
func (r *Resolver) createRealm(ctx context.Context, st Store, name string) (*models.Entity, error) {
	if r.Locker != nil {
		release, err := r.Locker.Obtain(ctx, "lock:realm:"+name, 10*time.Second)
		if err != nil {
			r.logger().WithFields(logrus.Fields{
				"field": "createRealm",
				"realm": name,
			}).Warn("could not obtain realm lock; relying on unique name: " + err.Error())
		} else {
			defer release()
		}
	}

	n := name
	e := &models.Entity{Kind: models.EntityKindRealm, Name: &n}
	if err := st.CreateEntity(ctx, e); err != nil {
		if !utils.IsDuplicate(err) {
			return nil, errors.Wrapf(err, "create realm %s", name)
		}
		winner, err := st.GetEntityByName(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "read back realm %s", name)
		}
		return winner, nil
	}
	kind := "req"
	if strings.HasPrefix(name, TwoSitesPrefix) {
		kind = "2sites"
	}
	metrics.RealmCreated(kind)
	return e, nil
}
