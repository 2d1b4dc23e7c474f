package gate_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diewo77/go-duedates/gate"
)

func TestPermissionMatches(t *testing.T) {
	tests := []struct {
		granted, requested gate.Permission
		want               bool
	}{
		{gate.PermissionSuperAdmin, "duedate:delete", true},
		{"duedate:create", "duedate:create", true},
		{"duedate:*", "duedate:delete", true},
		{"duedate:*", "client:delete", false},
		{"client:view", "client:update", false},
		{"malformed", "malformed:view", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.granted)+"->"+string(tt.requested), func(t *testing.T) {
			if got := tt.granted.Matches(tt.requested); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGateAuthorize(t *testing.T) {
	resolver := gate.NewStaticResolver[uint]()
	resolver.Set(1, gate.NewStaticProfile(1, "staff",
		gate.NewPermission("duedate", gate.ActionCreate),
		gate.NewPermission("attachment", "*"),
	))
	g := gate.New[uint](resolver)
	ctx := context.Background()

	if err := g.Authorize(ctx, 1, gate.ActionCreate, "duedate"); err != nil {
		t.Errorf("expected allowed, got %v", err)
	}
	if err := g.Authorize(ctx, 1, gate.ActionDelete, "attachment"); err != nil {
		t.Errorf("wildcard should allow delete, got %v", err)
	}
	if err := g.Authorize(ctx, 1, gate.ActionDelete, "duedate"); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := g.Authorize(ctx, 2, gate.ActionView, "duedate"); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("user without profile: expected ErrForbidden, got %v", err)
	}
	if err := g.Authorize(ctx, 0, gate.ActionView, "duedate"); !errors.Is(err, gate.ErrUnauthenticated) {
		t.Errorf("zero user: expected ErrUnauthenticated, got %v", err)
	}
	if g.IsAdmin(ctx, 1) {
		t.Error("staff is not admin")
	}
}

type countingResolver struct {
	calls atomic.Int32
	inner gate.ProfileResolver[uint]
}

func (c *countingResolver) Resolve(ctx context.Context, u uint) (gate.Profile, error) {
	c.calls.Add(1)
	return c.inner.Resolve(ctx, u)
}

func TestCachedResolver(t *testing.T) {
	static := gate.NewStaticResolver[uint]()
	static.Set(1, gate.NewStaticProfile(1, "admin", gate.PermissionSuperAdmin))
	counter := &countingResolver{inner: static}
	cached := gate.NewCachedResolver[uint](counter, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cached.Resolve(ctx, 1); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if n := counter.calls.Load(); n != 1 {
		t.Fatalf("expected 1 inner call, got %d", n)
	}
	cached.Invalidate(1)
	_, _ = cached.Resolve(ctx, 1)
	if n := counter.calls.Load(); n != 2 {
		t.Fatalf("expected 2 inner calls after invalidate, got %d", n)
	}
}

// switchingResolver blocks its first call until release is closed, then
// answers with whatever profile is current.
type switchingResolver struct {
	started chan struct{}
	release chan struct{}
	once    atomic.Bool
	current atomic.Pointer[gate.StaticProfile]
}

func (s *switchingResolver) Resolve(_ context.Context, _ uint) (gate.Profile, error) {
	p := s.current.Load()
	if s.once.CompareAndSwap(false, true) {
		close(s.started)
		<-s.release
	}
	return p, nil
}

func TestCachedResolverDropsLoadsRacingInvalidate(t *testing.T) {
	inner := &switchingResolver{started: make(chan struct{}), release: make(chan struct{})}
	inner.current.Store(gate.NewStaticProfile(1, "staff"))
	cached := gate.NewCachedResolver[uint](inner, time.Hour)
	ctx := context.Background()

	done := make(chan gate.Profile)
	go func() {
		p, _ := cached.Resolve(ctx, 7)
		done <- p
	}()
	<-inner.started

	// the role changes while the old profile is being read
	inner.current.Store(gate.NewStaticProfile(2, "manager"))
	cached.Invalidate(7)
	close(inner.release)

	if p := <-done; p.Name() != "staff" {
		t.Fatalf("in-flight caller should get the profile it loaded, got %s", p.Name())
	}
	p, err := cached.Resolve(ctx, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.Name() != "manager" {
		t.Fatalf("stale profile was cached: got %s", p.Name())
	}
}

func TestCachedResolverConcurrentResolve(t *testing.T) {
	static := gate.NewStaticResolver[uint]()
	static.Set(3, gate.NewStaticProfile(3, "viewer"))
	cached := gate.NewCachedResolver[uint](static, time.Minute)

	errs := make(chan error, 16)
	for range 16 {
		go func() {
			p, err := cached.Resolve(context.Background(), 3)
			if err == nil && p.Name() != "viewer" {
				err = errors.New("wrong profile " + p.Name())
			}
			errs <- err
		}()
	}
	for range 16 {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}

func TestCachedResolverExpiry(t *testing.T) {
	static := gate.NewStaticResolver[uint]()
	counter := &countingResolver{inner: static}
	cached := gate.NewCachedResolver[uint](counter, time.Nanosecond)
	_, _ = cached.Resolve(context.Background(), 5)
	time.Sleep(time.Millisecond)
	_, _ = cached.Resolve(context.Background(), 5)
	if n := counter.calls.Load(); n != 2 {
		t.Fatalf("expected expired entry to be refetched, got %d calls", n)
	}
}
