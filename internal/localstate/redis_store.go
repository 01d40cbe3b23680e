// Package localstate persists per-device guide state: tombstones for deleted
// default sections, per-section view times, and the per-activity visit
// watermark. Keys are scoped to the device that wrote them, mirroring the
// browser-local storage this replaces; state is never shared across devices
// unless the tombstone scope is configured as "shared".
//
// Every method degrades: on a Redis failure reads come back empty and writes
// become no-ops, so guide rendering never depends on this store being up.
package localstate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScopeShared makes tombstones visible to every device.
const (
	ScopeDevice = "device"
	ScopeShared = "shared"
)

type Store struct {
	client           *redis.Client
	prefix           string
	sharedTombstones bool
}

func NewStore(redisURL, tombstoneScope string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStoreWithClient(client, tombstoneScope), nil
}

// NewStoreWithClient creates a store from an existing Redis client
func NewStoreWithClient(client *redis.Client, tombstoneScope string) *Store {
	return &Store{
		client:           client,
		prefix:           "guide:",
		sharedTombstones: tombstoneScope == ScopeShared,
	}
}

func (s *Store) tombstoneKey(device, activity string) string {
	if s.sharedTombstones {
		device = "shared"
	}
	return s.prefix + "ts:" + device + ":" + activity
}

func (s *Store) viewedKey(device, user, activity string) string {
	return s.prefix + "vw:" + device + ":" + user + ":" + activity
}

func (s *Store) visitKey(device, user, activity string) string {
	return s.prefix + "visit:" + device + ":" + user + ":" + activity
}

// Tombstones returns the deleted section keys for an activity. A Redis
// failure yields an empty set.
func (s *Store) Tombstones(ctx context.Context, device, activity string) map[string]bool {
	members, err := s.client.SMembers(ctx, s.tombstoneKey(device, activity)).Result()
	if err != nil {
		log.Printf("localstate: read tombstones %s/%s: %v", device, activity, err)
		return map[string]bool{}
	}
	set := make(map[string]bool, len(members))
	for _, member := range members {
		set[member] = true
	}
	return set
}

func (s *Store) AddTombstone(ctx context.Context, device, activity, sectionKey string) {
	if err := s.client.SAdd(ctx, s.tombstoneKey(device, activity), sectionKey).Err(); err != nil {
		log.Printf("localstate: add tombstone %s/%s/%s: %v", device, activity, sectionKey, err)
	}
}

// RemoveTombstone clears a tombstone when a section with the same key is
// re-created. Keys are generated to avoid collision, so this is rare.
func (s *Store) RemoveTombstone(ctx context.Context, device, activity, sectionKey string) {
	if err := s.client.SRem(ctx, s.tombstoneKey(device, activity), sectionKey).Err(); err != nil {
		log.Printf("localstate: remove tombstone %s/%s/%s: %v", device, activity, sectionKey, err)
	}
}

// ViewedMap returns the per-section last-viewed times for a user on this
// device. Unparseable entries are skipped as if absent.
func (s *Store) ViewedMap(ctx context.Context, device, user, activity string) map[string]time.Time {
	raw, err := s.client.HGetAll(ctx, s.viewedKey(device, user, activity)).Result()
	if err != nil {
		log.Printf("localstate: read viewed map %s/%s/%s: %v", device, user, activity, err)
		return map[string]time.Time{}
	}
	out := make(map[string]time.Time, len(raw))
	for key, value := range raw {
		t, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			continue
		}
		out[key] = t
	}
	return out
}

func (s *Store) MarkViewed(ctx context.Context, device, user, activity, sectionKey string, at time.Time) {
	value := at.UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, s.viewedKey(device, user, activity), sectionKey, value).Err(); err != nil {
		log.Printf("localstate: mark viewed %s/%s/%s/%s: %v", device, user, activity, sectionKey, err)
	}
}

// VisitWatermark returns the last guide-visit time for a user on this device.
// The second return is false when no watermark exists (first visit) or the
// stored value cannot be read.
func (s *Store) VisitWatermark(ctx context.Context, device, user, activity string) (time.Time, bool) {
	value, err := s.client.Get(ctx, s.visitKey(device, user, activity)).Result()
	if err == redis.Nil {
		return time.Time{}, false
	}
	if err != nil {
		log.Printf("localstate: read visit watermark %s/%s/%s: %v", device, user, activity, err)
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		// Corrupt value: treat as absent rather than failing the load
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) SetVisitWatermark(ctx context.Context, device, user, activity string, at time.Time) {
	value := at.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, s.visitKey(device, user, activity), value, 0).Err(); err != nil {
		log.Printf("localstate: set visit watermark %s/%s/%s: %v", device, user, activity, err)
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
