package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"crewops/api/internal/config"
	"crewops/api/internal/search"
	"crewops/api/internal/store"
	"crewops/api/internal/util"
)

type fakeStore struct {
	ensureUserByNameFn      func(context.Context, string) (store.User, error)
	getUserByIDFn           func(context.Context, string) (store.User, error)
	lookupRefreshSessionFn  func(context.Context, string) (store.User, error)
	revokeRefreshSessionFn  func(context.Context, string) error
	listOverridesFn         func(context.Context, string) ([]store.SectionOverride, error)
	getOverrideFn           func(context.Context, string, string) (store.SectionOverride, error)
	upsertOverrideFn        func(context.Context, store.SectionOverride) (string, error)
	deleteOverrideFn        func(context.Context, string) (bool, error)
	searchOverridesFn       func(context.Context, string, int) ([]store.SectionOverride, error)
	upserts                 []store.SectionOverride
	deletes                 []string
}

func (f *fakeStore) EnsureUserByName(ctx context.Context, name string) (store.User, error) {
	if f.ensureUserByNameFn != nil {
		return f.ensureUserByNameFn(ctx, name)
	}
	return store.User{ID: "usr-1", DisplayName: name, Role: "instructor"}, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, DisplayName: "Priya", Role: "instructor"}, nil
}

func (f *fakeStore) SaveRefreshSession(context.Context, string, string, time.Time) error { return nil }

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshSessionFn != nil {
		return f.lookupRefreshSessionFn(ctx, tokenHash)
	}
	return store.User{}, errors.New("no session")
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshSessionFn != nil {
		return f.revokeRefreshSessionFn(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) ListOverrides(ctx context.Context, activity string) ([]store.SectionOverride, error) {
	if f.listOverridesFn != nil {
		return f.listOverridesFn(ctx, activity)
	}
	return nil, nil
}

func (f *fakeStore) GetOverride(ctx context.Context, activity, sectionKey string) (store.SectionOverride, error) {
	if f.getOverrideFn != nil {
		return f.getOverrideFn(ctx, activity, sectionKey)
	}
	return store.SectionOverride{}, errors.New("not found")
}

func (f *fakeStore) UpsertOverride(ctx context.Context, item store.SectionOverride) (string, error) {
	if f.upsertOverrideFn != nil {
		id, err := f.upsertOverrideFn(ctx, item)
		if err != nil {
			return "", err
		}
		f.upserts = append(f.upserts, item)
		return id, nil
	}
	f.upserts = append(f.upserts, item)
	if item.ID != "" {
		return item.ID, nil
	}
	return util.NewID("sec"), nil
}

func (f *fakeStore) DeleteOverride(ctx context.Context, id string) (bool, error) {
	f.deletes = append(f.deletes, id)
	if f.deleteOverrideFn != nil {
		return f.deleteOverrideFn(ctx, id)
	}
	return true, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) SearchOverrides(ctx context.Context, query string, limit int) ([]store.SectionOverride, error) {
	if f.searchOverridesFn != nil {
		return f.searchOverridesFn(ctx, query, limit)
	}
	return nil, nil
}

type fakeLocal struct {
	tombstones map[string]map[string]bool // device:activity -> keys
	viewed     map[string]map[string]time.Time
	watermarks map[string]time.Time
	removed    []string
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		tombstones: map[string]map[string]bool{},
		viewed:     map[string]map[string]time.Time{},
		watermarks: map[string]time.Time{},
	}
}

func (f *fakeLocal) Tombstones(_ context.Context, device, activity string) map[string]bool {
	set := f.tombstones[device+":"+activity]
	if set == nil {
		return map[string]bool{}
	}
	return set
}

func (f *fakeLocal) AddTombstone(_ context.Context, device, activity, sectionKey string) {
	key := device + ":" + activity
	if f.tombstones[key] == nil {
		f.tombstones[key] = map[string]bool{}
	}
	f.tombstones[key][sectionKey] = true
}

func (f *fakeLocal) RemoveTombstone(_ context.Context, device, activity, sectionKey string) {
	f.removed = append(f.removed, device+":"+activity+":"+sectionKey)
	delete(f.tombstones[device+":"+activity], sectionKey)
}

func (f *fakeLocal) ViewedMap(_ context.Context, device, user, activity string) map[string]time.Time {
	m := f.viewed[device+":"+user+":"+activity]
	if m == nil {
		return map[string]time.Time{}
	}
	return m
}

func (f *fakeLocal) MarkViewed(_ context.Context, device, user, activity, sectionKey string, at time.Time) {
	key := device + ":" + user + ":" + activity
	if f.viewed[key] == nil {
		f.viewed[key] = map[string]time.Time{}
	}
	f.viewed[key][sectionKey] = at
}

func (f *fakeLocal) VisitWatermark(_ context.Context, device, user, activity string) (time.Time, bool) {
	t, ok := f.watermarks[device+":"+user+":"+activity]
	return t, ok
}

func (f *fakeLocal) SetVisitWatermark(_ context.Context, device, user, activity string, at time.Time) {
	f.watermarks[device+":"+user+":"+activity] = at
}

func (f *fakeLocal) Ping(context.Context) error { return nil }

func newTestService(fs *fakeStore, fl *fakeLocal) *Service {
	return &Service{
		cfg:    config.Config{JWTSecret: "test-secret", AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour, TombstoneScope: "device"},
		store:  fs,
		local:  fl,
		search: search.NewService(nil, fs),
	}
}

func TestLoadGuideFirstVisitSetsWatermarkWithoutNotice(t *testing.T) {
	fs := &fakeStore{}
	fl := newFakeLocal()
	svc := newTestService(fs, fl)
	viewer := Session{UserID: "usr-1", UserName: "Priya", Role: "instructor"}

	view, err := svc.LoadGuide(context.Background(), viewer, "dev-a", "raft-building")
	if err != nil {
		t.Fatalf("LoadGuide() error = %v", err)
	}
	if len(view.Sections) != 6 {
		t.Fatalf("expected 6 default sections, got %d", len(view.Sections))
	}
	if len(view.WhatsNew) != 0 {
		t.Fatalf("first visit must not produce a notice: %+v", view.WhatsNew)
	}
	if _, ok := fl.watermarks["dev-a:usr-1:raft-building"]; !ok {
		t.Fatal("first visit must still advance the watermark")
	}
}

func TestLoadGuideReportsChangesSinceLastVisit(t *testing.T) {
	lastVisit := time.Now().Add(-time.Hour)
	edited := time.Now().Add(-time.Minute)

	fs := &fakeStore{
		listOverridesFn: func(context.Context, string) ([]store.SectionOverride, error) {
			return []store.SectionOverride{
				{ID: "sec-1", Activity: "raft-building", SectionKey: "kit", Title: "Kit List v2", Category: "before", Order: 2, UpdatedAt: edited},
				{ID: "sec-2", Activity: "raft-building", SectionKey: "build", Title: "Build Phase", Category: "during", Order: 0, UpdatedAt: lastVisit.Add(-time.Hour)},
			}, nil
		},
	}
	fl := newFakeLocal()
	fl.watermarks["dev-a:usr-1:raft-building"] = lastVisit
	svc := newTestService(fs, fl)
	viewer := Session{UserID: "usr-1", Role: "instructor"}

	view, err := svc.LoadGuide(context.Background(), viewer, "dev-a", "raft-building")
	if err != nil {
		t.Fatalf("LoadGuide() error = %v", err)
	}
	if len(view.WhatsNew) != 1 || view.WhatsNew[0].Key != "kit" {
		t.Fatalf("expected one notice for kit, got %+v", view.WhatsNew)
	}
	if got := fl.watermarks["dev-a:usr-1:raft-building"]; !got.After(lastVisit) {
		t.Fatalf("watermark did not advance: %v", got)
	}

	// Second load sees no notice: the watermark moved past the edit
	view, err = svc.LoadGuide(context.Background(), viewer, "dev-a", "raft-building")
	if err != nil {
		t.Fatalf("LoadGuide() second call error = %v", err)
	}
	if len(view.WhatsNew) != 0 {
		t.Fatalf("notice must only be shown once, got %+v", view.WhatsNew)
	}
}

func TestLoadGuideDegradesWhenOverridesUnavailable(t *testing.T) {
	fs := &fakeStore{
		listOverridesFn: func(context.Context, string) ([]store.SectionOverride, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(fs, newFakeLocal())

	view, err := svc.LoadGuide(context.Background(), Session{UserID: "usr-1"}, "dev-a", "raft-building")
	if err != nil {
		t.Fatalf("LoadGuide() must degrade, got error %v", err)
	}
	if !view.Degraded {
		t.Fatal("expected degraded flag when override fetch fails")
	}
	if len(view.Sections) != 6 {
		t.Fatalf("defaults must still render, got %d sections", len(view.Sections))
	}
}

func TestLoadGuideUnknownActivity(t *testing.T) {
	svc := newTestService(&fakeStore{}, newFakeLocal())
	_, err := svc.LoadGuide(context.Background(), Session{UserID: "usr-1"}, "dev-a", "zorbing")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 404 {
		t.Fatalf("expected 404 domain error, got %v", err)
	}
}

func TestCreateSectionAssignsKeyAndOrder(t *testing.T) {
	fs := &fakeStore{}
	fl := newFakeLocal()
	svc := newTestService(fs, fl)

	section, err := svc.CreateSection(context.Background(), "dev-a", "raft-building", CreateSectionInput{
		Title:    "Wetsuit Sizing",
		Body:     "Run sizing before the briefing.",
		IconKey:  "wave",
		Category: "before",
	})
	if err != nil {
		t.Fatalf("CreateSection() error = %v", err)
	}
	if !strings.HasPrefix(section.Key, "wave-") {
		t.Fatalf("key should start with the icon key: %q", section.Key)
	}
	// Defaults occupy before-orders 0..2, so the new section lands at 3
	if section.Order != 3 {
		t.Fatalf("order = %d, want 3", section.Order)
	}
	if len(fs.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(fs.upserts))
	}
	if len(fl.removed) != 1 || !strings.HasSuffix(fl.removed[0], section.Key) {
		t.Fatalf("creation must clear any stale tombstone for the key: %v", fl.removed)
	}
}

func TestCreateSectionValidation(t *testing.T) {
	svc := newTestService(&fakeStore{}, newFakeLocal())

	_, err := svc.CreateSection(context.Background(), "dev-a", "raft-building", CreateSectionInput{Title: "  "})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("blank title: expected 422, got %v", err)
	}

	_, err = svc.CreateSection(context.Background(), "dev-a", "raft-building", CreateSectionInput{Title: "x", Category: "someday"})
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("bad category: expected 422, got %v", err)
	}
}

func TestEditSectionMaterializesOverrideByNaturalKey(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs, newFakeLocal())

	section, err := svc.EditSection(context.Background(), "dev-a", "raft-building", "kit", EditSectionInput{
		Title: "Kit List (updated)",
		Body:  "Ten barrels now.",
	})
	if err != nil {
		t.Fatalf("EditSection() error = %v", err)
	}
	if len(fs.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(fs.upserts))
	}
	row := fs.upserts[0]
	if row.Activity != "raft-building" || row.SectionKey != "kit" {
		t.Fatalf("upsert must target the natural key: %+v", row)
	}
	// A pristine default keeps its catalog position on first edit
	if row.Category != "before" || row.Order != 2 {
		t.Fatalf("edit must not move the section: %+v", row)
	}
	if section.Color != "#f4a259" || section.IconKey != "box" {
		t.Fatalf("default presentation fields lost: %+v", section)
	}
	if !section.IsDefault {
		t.Fatal("edited default is still a default section")
	}
}

func TestEditSectionUnknownKey(t *testing.T) {
	svc := newTestService(&fakeStore{}, newFakeLocal())
	_, err := svc.EditSection(context.Background(), "dev-a", "raft-building", "no-such-key", EditSectionInput{Title: "x"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestMoveSectionSwapsAdjacentOrders(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs, newFakeLocal())

	// intro (order 0) moves down past safety (order 1)
	if err := svc.MoveSection(context.Background(), "dev-a", "raft-building", "intro", MoveSectionInput{Direction: "down"}); err != nil {
		t.Fatalf("MoveSection() error = %v", err)
	}
	if len(fs.upserts) != 2 {
		t.Fatalf("expected two upserts, got %d", len(fs.upserts))
	}
	if fs.upserts[0].SectionKey != "intro" || fs.upserts[0].Order != 1 {
		t.Fatalf("moved section order wrong: %+v", fs.upserts[0])
	}
	if fs.upserts[1].SectionKey != "safety" || fs.upserts[1].Order != 0 {
		t.Fatalf("neighbor order wrong: %+v", fs.upserts[1])
	}
}

func TestMoveSectionAtEdgeIsNoOp(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs, newFakeLocal())

	if err := svc.MoveSection(context.Background(), "dev-a", "raft-building", "intro", MoveSectionInput{Direction: "up"}); err != nil {
		t.Fatalf("MoveSection() at edge error = %v", err)
	}
	if len(fs.upserts) != 0 {
		t.Fatalf("edge move must not write: %+v", fs.upserts)
	}
}

func TestMoveSectionRevertsWhenSecondWriteFails(t *testing.T) {
	calls := 0
	fs := &fakeStore{}
	fs.upsertOverrideFn = func(_ context.Context, item store.SectionOverride) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("connection reset")
		}
		return "sec-x", nil
	}
	svc := newTestService(fs, newFakeLocal())

	err := svc.MoveSection(context.Background(), "dev-a", "raft-building", "intro", MoveSectionInput{Direction: "down"})
	if err == nil {
		t.Fatal("expected the move to report failure")
	}
	// First write, failed second write, compensating write
	if calls != 3 {
		t.Fatalf("expected 3 upsert attempts, got %d", calls)
	}
	last := fs.upserts[len(fs.upserts)-1]
	if last.SectionKey != "intro" || last.Order != 0 {
		t.Fatalf("compensating write must restore the original order: %+v", last)
	}
}

func TestRecategorizeMovesToEndOfDestination(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs, newFakeLocal())

	section, err := svc.RecategorizeSection(context.Background(), "dev-a", "raft-building", "kit", RecategorizeSectionInput{Category: "during"})
	if err != nil {
		t.Fatalf("RecategorizeSection() error = %v", err)
	}
	// during holds build (0) and launch (1); kit appends at 2
	if section.Category != "during" || section.Order != 2 {
		t.Fatalf("expected during/2, got %s/%d", section.Category, section.Order)
	}
}

func TestRecategorizeSameCategoryKeepsOrder(t *testing.T) {
	fs := &fakeStore{}
	svc := newTestService(fs, newFakeLocal())

	section, err := svc.RecategorizeSection(context.Background(), "dev-a", "raft-building", "kit", RecategorizeSectionInput{Category: "before"})
	if err != nil {
		t.Fatalf("RecategorizeSection() error = %v", err)
	}
	if section.Category != "before" || section.Order != 2 {
		t.Fatalf("same-category recategorize must keep position, got %s/%d", section.Category, section.Order)
	}
}

func TestDeleteSectionAlwaysTombstones(t *testing.T) {
	fs := &fakeStore{}
	fl := newFakeLocal()
	svc := newTestService(fs, fl)

	// Pristine default: no override row exists, but the tombstone is written
	if err := svc.DeleteSection(context.Background(), "dev-a", "raft-building", "kit"); err != nil {
		t.Fatalf("DeleteSection() error = %v", err)
	}
	if !fl.tombstones["dev-a:raft-building"]["kit"] {
		t.Fatal("tombstone missing after delete")
	}
	if len(fs.deletes) != 0 {
		t.Fatalf("no row to delete for a pristine default: %v", fs.deletes)
	}
}

func TestDeleteSectionRemovesOverrideRow(t *testing.T) {
	fs := &fakeStore{
		listOverridesFn: func(context.Context, string) ([]store.SectionOverride, error) {
			return []store.SectionOverride{
				{ID: "sec-7", Activity: "raft-building", SectionKey: "kit", Title: "Kit List v2", Category: "before", Order: 2, UpdatedAt: time.Now()},
			}, nil
		},
	}
	fl := newFakeLocal()
	svc := newTestService(fs, fl)

	if err := svc.DeleteSection(context.Background(), "dev-a", "raft-building", "kit"); err != nil {
		t.Fatalf("DeleteSection() error = %v", err)
	}
	if !fl.tombstones["dev-a:raft-building"]["kit"] {
		t.Fatal("tombstone missing after delete")
	}
	if len(fs.deletes) != 1 || fs.deletes[0] != "sec-7" {
		t.Fatalf("override row not deleted: %v", fs.deletes)
	}
}

func TestMarkSectionViewedRequiresDevice(t *testing.T) {
	svc := newTestService(&fakeStore{}, newFakeLocal())
	err := svc.MarkSectionViewed(context.Background(), Session{UserID: "usr-1"}, "", "raft-building", "kit")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 400 {
		t.Fatalf("expected 400 without a device id, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, DisplayName: "Priya", Role: "instructor"}, nil
		},
	}
	svc := newTestService(fs, newFakeLocal())

	session, err := svc.Login(context.Background(), "Priya", "dev-a")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	parsed, err := svc.SessionFromToken(context.Background(), session.Token)
	if err != nil {
		t.Fatalf("SessionFromToken() error = %v", err)
	}
	if parsed.UserName != "Priya" || parsed.Role != "instructor" || parsed.Device != "dev-a" {
		t.Fatalf("unexpected session: %+v", parsed)
	}
}
