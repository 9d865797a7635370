package realm

import (
	"context"

	"github.com/mmdatafocus/rms_backend/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SharedRealmTables are the tables whose rows may point at a shared realm.
var SharedRealmTables = []string{
	"inv_req",
	"inv_req_item",
	"inv_track_item",
	"inv_send",
	"inv_recv",
	"inv_order_item",
}

// PruneSharedRealms deletes 2SITES_* and REQ_* realms (with their edges)
// that no row of SharedRealmTables references any more.
func PruneSharedRealms(ctx context.Context, st Store, logger *logrus.Logger) (int, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	deleted := 0
	for _, prefix := range []string{TwoSitesPrefix, ReqPrefix} {
		realms, err := st.ListRealmEntities(ctx, prefix)
		if err != nil {
			return deleted, errors.Wrapf(err, "list %s realms", prefix)
		}
		for _, e := range realms {
			n, err := st.CountRealmReferences(ctx, e.ID, SharedRealmTables)
			if err != nil {
				return deleted, errors.Wrapf(err, "count references of realm %d", e.ID)
			}
			if n > 0 {
				continue
			}
			if err := st.DeleteEntity(ctx, e.ID); err != nil {
				return deleted, errors.Wrapf(err, "delete realm %d", e.ID)
			}
			deleted++
			logger.WithFields(logrus.Fields{
				"field":     "PruneSharedRealms",
				"entity_id": e.ID,
				"name":      *e.Name,
			}).Info("pruned unreferenced shared realm")
		}
	}
	return deleted, nil
}
