package localstate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestStore(t *testing.T, scope string) (*Store, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewStore("redis://"+s.Addr(), scope)
	if err != nil {
		t.Fatalf("failed to create localstate store: %v", err)
	}
	return store, s
}

func TestNewStore(t *testing.T) {
	store, s := setupTestStore(t, ScopeDevice)
	defer store.Close()
	defer s.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestTombstonesAreDeviceScoped(t *testing.T) {
	store, s := setupTestStore(t, ScopeDevice)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	store.AddTombstone(ctx, "dev-a", "raft-building", "kit")

	if got := store.Tombstones(ctx, "dev-a", "raft-building"); !got["kit"] {
		t.Fatalf("tombstone missing on writing device: %v", got)
	}
	if got := store.Tombstones(ctx, "dev-b", "raft-building"); len(got) != 0 {
		t.Fatalf("tombstone leaked to another device: %v", got)
	}
	if got := store.Tombstones(ctx, "dev-a", "high-ropes"); len(got) != 0 {
		t.Fatalf("tombstone leaked to another activity: %v", got)
	}
}

func TestTombstonesSharedScope(t *testing.T) {
	store, s := setupTestStore(t, ScopeShared)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	store.AddTombstone(ctx, "dev-a", "raft-building", "kit")

	if got := store.Tombstones(ctx, "dev-b", "raft-building"); !got["kit"] {
		t.Fatalf("shared tombstone not visible from another device: %v", got)
	}
}

func TestRemoveTombstone(t *testing.T) {
	store, s := setupTestStore(t, ScopeDevice)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	store.AddTombstone(ctx, "dev-a", "raft-building", "kit")
	store.RemoveTombstone(ctx, "dev-a", "raft-building", "kit")

	if got := store.Tombstones(ctx, "dev-a", "raft-building"); len(got) != 0 {
		t.Fatalf("tombstone survived removal: %v", got)
	}
}

func TestViewedMapRoundTrip(t *testing.T) {
	store, s := setupTestStore(t, ScopeDevice)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	at := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	store.MarkViewed(ctx, "dev-a", "usr-1", "raft-building", "build", at)

	viewed := store.ViewedMap(ctx, "dev-a", "usr-1", "raft-building")
	got, ok := viewed["build"]
	if !ok {
		t.Fatalf("viewed entry missing: %v", viewed)
	}
	if !got.Equal(at) {
		t.Fatalf("viewed time = %v, want %v", got, at)
	}

	if other := store.ViewedMap(ctx, "dev-a", "usr-2", "raft-building"); len(other) != 0 {
		t.Fatalf("viewed map leaked across users: %v", other)
	}
}

func TestViewedMapSkipsCorruptEntries(t *testing.T) {
	store, s := setupTestStore(t, ScopeDevice)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	store.MarkViewed(ctx, "dev-a", "usr-1", "raft-building", "build", time.Now())
	s.HSet("guide:vw:dev-a:usr-1:raft-building", "kit", "not-a-timestamp")

	viewed := store.ViewedMap(ctx, "dev-a", "usr-1", "raft-building")
	if _, ok := viewed["kit"]; ok {
		t.Fatal("corrupt entry should be treated as absent")
	}
	if _, ok := viewed["build"]; !ok {
		t.Fatal("valid entry lost alongside corrupt one")
	}
}

func TestVisitWatermark(t *testing.T) {
	store, s := setupTestStore(t, ScopeDevice)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()

	if _, ok := store.VisitWatermark(ctx, "dev-a", "usr-1", "raft-building"); ok {
		t.Fatal("expected no watermark before first visit")
	}

	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	store.SetVisitWatermark(ctx, "dev-a", "usr-1", "raft-building", at)

	got, ok := store.VisitWatermark(ctx, "dev-a", "usr-1", "raft-building")
	if !ok {
		t.Fatal("expected watermark after set")
	}
	if !got.Equal(at) {
		t.Fatalf("watermark = %v, want %v", got, at)
	}
}

func TestVisitWatermarkCorruptValueTreatedAsAbsent(t *testing.T) {
	store, s := setupTestStore(t, ScopeDevice)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	s.Set("guide:visit:dev-a:usr-1:raft-building", "garbage")

	if _, ok := store.VisitWatermark(ctx, "dev-a", "usr-1", "raft-building"); ok {
		t.Fatal("corrupt watermark should read as absent")
	}
}
