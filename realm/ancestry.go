package realm

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type cacheKey struct{}

type ancestryCache struct {
	mu sync.Mutex
	m  map[int][]int
}

// WithCache attaches a request-scoped ancestry cache to ctx.
func WithCache(ctx context.Context) context.Context {
	if _, ok := ctx.Value(cacheKey{}).(*ancestryCache); ok {
		return ctx
	}
	return context.WithValue(ctx, cacheKey{}, &ancestryCache{m: map[int][]int{}})
}

// InvalidateCache drops the cached ancestries of ctx, if any. Call it after
// affiliations change within the request.
func InvalidateCache(ctx context.Context) {
	if c, ok := ctx.Value(cacheKey{}).(*ancestryCache); ok {
		c.mu.Lock()
		c.m = map[int][]int{}
		c.mu.Unlock()
	}
}

// Ancestors returns the entities above entityID, nearest first. The graph
// is walked breadth-first over child -> parent edges; cycles are cut by a
// visited set and entityID itself is never part of the result.
func Ancestors(ctx context.Context, st AncestryStore, entityID int) ([]int, error) {
	cache, _ := ctx.Value(cacheKey{}).(*ancestryCache)
	if cache != nil {
		cache.mu.Lock()
		v, ok := cache.m[entityID]
		cache.mu.Unlock()
		if ok {
			return append([]int(nil), v...), nil
		}
	}

	visited := map[int]bool{entityID: true}
	queue := []int{entityID}
	var out []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		edges, err := st.ListAffiliationsByChild(ctx, cur)
		if err != nil {
			return nil, errors.Wrapf(err, "ancestors of %d", entityID)
		}
		for _, e := range edges {
			if visited[e.ParentId] {
				continue
			}
			visited[e.ParentId] = true
			out = append(out, e.ParentId)
			queue = append(queue, e.ParentId)
		}
	}

	if cache != nil {
		cache.mu.Lock()
		cache.m[entityID] = append([]int(nil), out...)
		cache.mu.Unlock()
	}
	return out, nil
}

// Lineage is entityID followed by its ancestors.
func Lineage(ctx context.Context, st AncestryStore, entityID int) ([]int, error) {
	anc, err := Ancestors(ctx, st, entityID)
	if err != nil {
		return nil, err
	}
	return append([]int{entityID}, anc...), nil
}
