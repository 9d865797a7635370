package realm

import (
	"context"
	"testing"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*memstore.Store
	calls int
}

func (s *countingStore) ListAffiliationsByChild(ctx context.Context, childId int) ([]*models.Affiliation, error) {
	s.calls++
	return s.Store.ListAffiliationsByChild(ctx, childId)
}

func TestAncestorsNearestFirst(t *testing.T) {
	ms := memstore.New()
	// 1 -> 2 -> 3 -> 4, and 1 -> 4
	ms.SeedAffiliation(1, 2)
	ms.SeedAffiliation(2, 3)
	ms.SeedAffiliation(3, 4)
	ms.SeedAffiliation(1, 4)

	got, err := Ancestors(context.Background(), ms, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2}, got)

	lineage, err := Lineage(context.Background(), ms, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 1, 2}, lineage)
}

func TestAncestorsSurviveCycles(t *testing.T) {
	ms := memstore.New()
	ms.SeedAffiliation(1, 2)
	ms.SeedAffiliation(2, 3)
	ms.SeedAffiliation(3, 1)

	got, err := Ancestors(context.Background(), ms, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, got)
	assert.NotContains(t, got, 1)
}

func TestAncestorsCache(t *testing.T) {
	st := &countingStore{Store: memstore.New()}
	st.SeedAffiliation(1, 2)
	ctx := WithCache(context.Background())

	_, err := Ancestors(ctx, st, 2)
	require.NoError(t, err)
	calls := st.calls

	got, err := Ancestors(ctx, st, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
	assert.Equal(t, calls, st.calls)

	st.SeedAffiliation(5, 2)
	InvalidateCache(ctx)
	got, err = Ancestors(ctx, st, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 5}, got)
	assert.Greater(t, st.calls, calls)
}
