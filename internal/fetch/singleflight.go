package fetch

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent calls that share a key, so two users asking
// for the same speech clip trigger one synthesis.
type Group[T any] struct {
	group singleflight.Group
}

// Do executes fn once per key among concurrent callers. shared reports
// whether the result was produced by another caller.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (result T, shared bool, err error) {
	if err := ctx.Err(); err != nil {
		return result, false, err
	}

	v, err, shared := g.group.Do(key, func() (any, error) {
		return fn()
	})
	if v != nil {
		result = v.(T)
	}
	return result, shared, err
}

// Forget removes a key from the group, allowing new requests to execute
func (g *Group[T]) Forget(key string) {
	g.group.Forget(key)
}
