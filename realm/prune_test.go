package realm

import (
	"context"
	"testing"

	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPruneSharedRealms(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req := fx.createReq(t, 1, 10)
	item := fx.addItem(t, req.ID, utils.NewInt(20))
	fx.refreshReq(t, req.ID)
	used, err := fx.ms.GetEntityByName(ctx, "2SITES_10_20")
	require.NoError(t, err)

	_, err = fx.resolver.sharedRealm(ctx, fx.ms, TwoSitesName(30, 40), []int{fx.sites[30].PeId, fx.sites[40].PeId}, false)
	require.NoError(t, err)
	_, err = fx.resolver.sharedRealm(ctx, fx.ms, ReqRealmName(99), []int{fx.sites[30].PeId}, true)
	require.NoError(t, err)

	n, err := PruneSharedRealms(ctx, fx.ms, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = fx.ms.GetEntityByName(ctx, "2SITES_30_40")
	assert.True(t, utils.IsNotFound(err))
	_, err = fx.ms.GetEntityByName(ctx, "REQ_99")
	assert.True(t, utils.IsNotFound(err))

	still, err := fx.ms.GetEntityByName(ctx, "2SITES_10_20")
	require.NoError(t, err)
	assert.Equal(t, used.ID, still.ID)
	assert.Equal(t, used.ID, *item.RealmEntity)

	edges, err := fx.ms.ListAffiliationsByChild(ctx, used.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)
}
