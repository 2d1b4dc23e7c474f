package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachedResolver memoizes another resolver for a fixed TTL.
//
// Concurrent misses for the same user share one load. A load that started
// before Invalidate(user) is returned to its callers but never stored, so a
// role change cannot be overwritten by the profile read just before it.
type CachedResolver[U comparable] struct {
	inner ProfileResolver[U]
	ttl   time.Duration
	now   func() time.Time
	loads singleflight.Group

	mu    sync.RWMutex
	cache map[U]cacheEntry
	// epoch counts invalidations per user; loads store only if it is unchanged.
	epoch map[U]uint64
}

type cacheEntry struct {
	profile   Profile
	expiresAt time.Time
}

func NewCachedResolver[U comparable](inner ProfileResolver[U], ttl time.Duration) *CachedResolver[U] {
	return &CachedResolver[U]{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[U]cacheEntry),
		epoch: make(map[U]uint64),
	}
}

// Resolve returns a cached profile when fresh. Errors are never cached.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	r.mu.RLock()
	entry, ok := r.cache[user]
	epoch := r.epoch[user]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.profile, nil
	}

	key := r.key(user, epoch)
	v, err, _ := r.loads.Do(key, func() (any, error) {
		profile, err := r.inner.Resolve(ctx, user)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		if r.epoch[user] == epoch {
			r.cache[user] = cacheEntry{profile: profile, expiresAt: r.now().Add(r.ttl)}
		}
		r.mu.Unlock()
		return profile, nil
	})
	if err != nil {
		return nil, err
	}
	profile, _ := v.(Profile)
	return profile, nil
}

// Invalidate drops one user, e.g. after their role changes. Later calls to
// Resolve load the user again instead of joining a load already in flight.
func (r *CachedResolver[U]) Invalidate(user U) {
	r.mu.Lock()
	delete(r.cache, user)
	r.epoch[user]++
	r.mu.Unlock()
}

func (r *CachedResolver[U]) key(user U, epoch uint64) string {
	return fmt.Sprintf("%v#%d", user, epoch)
}
