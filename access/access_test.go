package access

import (
	"context"
	"testing"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/store/memstore"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*memstore.Store, *Service, *models.Organisation, *models.Site) {
	t.Helper()
	ms := memstore.New()
	org := ms.SeedOrganisation(1, "NS", models.OrganisationTypeRedCross, 0)
	site := ms.SeedSite(10, 1, models.SiteTypeWarehouse, "Central")
	svc, err := New(ms, nil)
	require.NoError(t, err)
	return ms, svc, org, site
}

func TestScopedMembershipAppliesBelowEntity(t *testing.T) {
	ctx := context.Background()
	_, svc, org, site := setup(t)

	require.NoError(t, svc.AddMembership(ctx, 5, RoleOperator, &org.PeId))

	ok, err := svc.HasRole(ctx, 5, RoleOperator, &site.PeId)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasRole(ctx, 5, RoleOperator, utils.NewInt(424242))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.HasRole(ctx, 5, RoleOperator, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasRole(ctx, 5, RoleAdmin, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGlobalMembership(t *testing.T) {
	ctx := context.Background()
	_, svc, _, site := setup(t)

	require.NoError(t, svc.AddMembership(ctx, 7, RoleAdmin, nil))
	ok, err := svc.HasRole(ctx, 7, RoleAdmin, &site.PeId)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.RemoveMembership(ctx, 7, RoleAdmin, nil))
	ok, err = svc.HasRole(ctx, 7, RoleAdmin, &site.PeId)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadMirrorsStore(t *testing.T) {
	ctx := context.Background()
	ms, svc, _, site := setup(t)

	ms.SeedMembership(9, RoleLogManager, &site.PeId)
	ms.SeedMembership(9, RoleOperator, &site.PeId)
	_, err := ms.DeleteMembership(ctx, 9, RoleOperator, &site.PeId)
	require.NoError(t, err)

	require.NoError(t, svc.Load(ctx))

	ok, err := svc.HasRole(ctx, 9, RoleLogManager, &site.PeId)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.HasRole(ctx, 9, RoleOperator, &site.PeId)
	require.NoError(t, err)
	assert.False(t, ok)
}
