package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"crewops/api/internal/auth"
	"crewops/api/internal/catalog"
	"crewops/api/internal/config"
	"crewops/api/internal/export"
	"crewops/api/internal/guide"
	"crewops/api/internal/localstate"
	"crewops/api/internal/media"
	"crewops/api/internal/search"
	"crewops/api/internal/store"
	"crewops/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Role         string
	Device       string
	JTI          string
	ExpiresAt    time.Time
}

// GuideView is the full payload for one activity guide load: the reconciled
// section list plus the one-shot change notice.
type GuideView struct {
	Activity     string          `json:"activity"`
	ActivityName string          `json:"activityName"`
	Sections     []guide.Section `json:"sections"`
	WhatsNew     []ChangeNotice  `json:"whatsNew"`
	Degraded     bool            `json:"degraded,omitempty"`
}

// ChangeNotice names a section that changed since the viewer's last visit.
type ChangeNotice struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateSectionInput struct {
	Title           string `json:"title"`
	Body            string `json:"body"`
	IconKey         string `json:"iconKey"`
	Category        string `json:"category"`
	LinkedChecklist string `json:"linkedChecklist"`
}

type EditSectionInput struct {
	Title           string `json:"title"`
	Body            string `json:"body"`
	LinkedChecklist string `json:"linkedChecklist"`
}

type MoveSectionInput struct {
	Direction string `json:"direction"`
}

type RecategorizeSectionInput struct {
	Category string `json:"category"`
}

var allowedCategories = map[string]struct{}{
	catalog.CategoryBefore: {},
	catalog.CategoryDuring: {},
	catalog.CategoryAfter:  {},
}

type dataStore interface {
	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	SaveRefreshSession(context.Context, string, string, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	ListOverrides(context.Context, string) ([]store.SectionOverride, error)
	GetOverride(context.Context, string, string) (store.SectionOverride, error)
	UpsertOverride(context.Context, store.SectionOverride) (string, error)
	DeleteOverride(context.Context, string) (bool, error)
	Ping(context.Context) error
}

type localState interface {
	Tombstones(ctx context.Context, device, activity string) map[string]bool
	AddTombstone(ctx context.Context, device, activity, sectionKey string)
	RemoveTombstone(ctx context.Context, device, activity, sectionKey string)
	ViewedMap(ctx context.Context, device, user, activity string) map[string]time.Time
	MarkViewed(ctx context.Context, device, user, activity, sectionKey string, at time.Time)
	VisitWatermark(ctx context.Context, device, user, activity string) (time.Time, bool)
	SetVisitWatermark(ctx context.Context, device, user, activity string, at time.Time)
	Ping(ctx context.Context) error
}

type Service struct {
	cfg    config.Config
	store  dataStore
	local  localState
	search *search.Service
	export *export.Service
	media  *media.Uploader
}

// New wires the service. uploader may be nil when MinIO is not configured;
// media upload then answers 503.
func New(cfg config.Config, dataStore *store.PostgresStore, local *localstate.Store, searchSvc *search.Service, exportSvc *export.Service, uploader *media.Uploader) *Service {
	return &Service{
		cfg:    cfg,
		store:  dataStore,
		local:  local,
		search: searchSvc,
		export: exportSvc,
		media:  uploader,
	}
}

func (s *Service) Login(ctx context.Context, name, device string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "Crew Member"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user, device)
}

func (s *Service) Refresh(ctx context.Context, refreshToken, device string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.store.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.store.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user, device)
}

func (s *Service) issueSession(ctx context.Context, user store.User, device string) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:    user.ID,
		Name:   user.DisplayName,
		Role:   user.Role,
		Device: device,
		JTI:    jti,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.store.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Role:         user.Role,
		Device:       device,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Role:      user.Role,
		Device:    claims.Device,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// Logout revokes the refresh session. Access tokens are short-lived and
// simply expire.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		return s.store.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// LoadGuide builds the guide view for one activity: reconcile, flag unseen
// changes, report what changed since the last visit, then advance the visit
// watermark. The watermark advances even on a failed render of the notice so
// a notice is shown at most once.
func (s *Service) LoadGuide(ctx context.Context, viewer Session, device, activity string) (GuideView, error) {
	if !catalog.IsKnownActivity(activity) {
		return GuideView{}, errUnknownActivity()
	}

	sections, degraded := s.reconciled(ctx, device, activity)

	viewed := map[string]time.Time{}
	if device != "" && viewer.UserID != "" {
		viewed = s.local.ViewedMap(ctx, device, viewer.UserID, activity)
	}
	guide.AnnotateNew(sections, viewed)

	whatsNew := make([]ChangeNotice, 0)
	if device != "" && viewer.UserID != "" {
		if watermark, ok := s.local.VisitWatermark(ctx, device, viewer.UserID, activity); ok {
			for _, section := range guide.ChangedSince(sections, watermark) {
				whatsNew = append(whatsNew, ChangeNotice{
					Key:       section.Key,
					Title:     section.Title,
					UpdatedAt: section.UpdatedAt,
				})
			}
		}
		s.local.SetVisitWatermark(ctx, device, viewer.UserID, activity, time.Now())
	}

	return GuideView{
		Activity:     activity,
		ActivityName: activityName(activity),
		Sections:     sections,
		WhatsNew:     whatsNew,
		Degraded:     degraded,
	}, nil
}

// reconciled merges defaults, overrides and tombstones for one activity. An
// override fetch failure degrades to defaults-only rather than blanking the
// guide; the degraded flag tells the client stale remote content may be
// shown.
func (s *Service) reconciled(ctx context.Context, device, activity string) ([]guide.Section, bool) {
	defaults := catalog.Defaults(activity)
	degraded := false

	overrides, err := s.store.ListOverrides(ctx, activity)
	if err != nil {
		log.Printf("app: list overrides %s: %v", activity, err)
		overrides = nil
		degraded = true
	}

	tombstones := map[string]bool{}
	if device != "" || s.cfg.TombstoneScope == localstate.ScopeShared {
		tombstones = s.local.Tombstones(ctx, device, activity)
	}

	return guide.Reconcile(defaults, overrides, tombstones), degraded
}

func (s *Service) CreateSection(ctx context.Context, device, activity string, input CreateSectionInput) (guide.Section, error) {
	if !catalog.IsKnownActivity(activity) {
		return guide.Section{}, errUnknownActivity()
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return guide.Section{}, errValidation("title is required")
	}
	category := input.Category
	if category == "" {
		category = catalog.CategoryDuring
	}
	if _, ok := allowedCategories[category]; !ok {
		return guide.Section{}, errValidation("category must be one of before, during, after")
	}

	sections, degraded := s.reconciled(ctx, device, activity)
	if degraded {
		return guide.Section{}, errStoreUnavailable()
	}

	key, err := s.freshSectionKey(sections, input.IconKey)
	if err != nil {
		return guide.Section{}, err
	}

	item := store.SectionOverride{
		Activity:        activity,
		SectionKey:      key,
		Title:           title,
		Body:            input.Body,
		LinkedChecklist: strings.TrimSpace(input.LinkedChecklist),
		Category:        category,
		Order:           guide.NextOrder(sections, category),
	}
	id, err := s.store.UpsertOverride(ctx, item)
	if err != nil {
		return guide.Section{}, err
	}
	item.ID = id
	item.UpdatedAt = time.Now()

	// A recycled key would resurrect under an old tombstone
	if device != "" {
		s.local.RemoveTombstone(ctx, device, activity, key)
	}
	s.indexOverride(item)

	return overrideToSection(item), nil
}

// freshSectionKey generates a key guaranteed not to collide with any default
// or existing section. Keys embed nanosecond timestamps, so a retry loop
// terminates quickly.
func (s *Service) freshSectionKey(sections []guide.Section, iconKey string) (string, error) {
	taken := make(map[string]bool, len(sections))
	for _, section := range sections {
		taken[section.Key] = true
	}
	for attempt := 0; attempt < 5; attempt++ {
		key := util.NewSectionKey(iconKey)
		if !taken[key] {
			return key, nil
		}
		time.Sleep(time.Nanosecond)
	}
	return "", fmt.Errorf("generate section key: exhausted attempts")
}

func (s *Service) EditSection(ctx context.Context, device, activity, sectionKey string, input EditSectionInput) (guide.Section, error) {
	if !catalog.IsKnownActivity(activity) {
		return guide.Section{}, errUnknownActivity()
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return guide.Section{}, errValidation("title is required")
	}

	current, err := s.currentSection(ctx, device, activity, sectionKey)
	if err != nil {
		return guide.Section{}, err
	}

	item := sectionToOverride(current)
	item.Title = title
	item.Body = input.Body
	item.LinkedChecklist = strings.TrimSpace(input.LinkedChecklist)

	id, err := s.store.UpsertOverride(ctx, item)
	if err != nil {
		return guide.Section{}, err
	}
	item.ID = id
	item.UpdatedAt = time.Now()
	s.indexOverride(item)

	merged := overrideToSection(item)
	merged.IconKey = current.IconKey
	merged.Color = current.Color
	merged.IsDefault = current.IsDefault
	return merged, nil
}

// MoveSection swaps the section's order with its adjacent sibling in the same
// category. Moving past the edge is a no-op. The swap takes two upserts; if
// the second fails a compensating write restores the first and the move
// reports failure, so at worst the guide is back where it started.
func (s *Service) MoveSection(ctx context.Context, device, activity, sectionKey string, input MoveSectionInput) error {
	if input.Direction != "up" && input.Direction != "down" {
		return errValidation("direction must be up or down")
	}
	if !catalog.IsKnownActivity(activity) {
		return errUnknownActivity()
	}

	sections, degraded := s.reconciled(ctx, device, activity)
	if degraded {
		return errStoreUnavailable()
	}

	moving, found := findSection(sections, sectionKey)
	if !found {
		return errSectionNotFound()
	}

	siblings := guide.Siblings(sections, moving.Category)
	idx := -1
	for i, sibling := range siblings {
		if sibling.Key == sectionKey {
			idx = i
			break
		}
	}
	neighborIdx := idx + 1
	if input.Direction == "up" {
		neighborIdx = idx - 1
	}
	if neighborIdx < 0 || neighborIdx >= len(siblings) {
		return nil
	}
	neighbor := siblings[neighborIdx]

	movingRow := sectionToOverride(moving)
	neighborRow := sectionToOverride(neighbor)
	movingRow.Order, neighborRow.Order = neighbor.Order, moving.Order

	movingID, err := s.store.UpsertOverride(ctx, movingRow)
	if err != nil {
		return fmt.Errorf("move section: %w", err)
	}
	movingRow.ID = movingID

	if _, err := s.store.UpsertOverride(ctx, neighborRow); err != nil {
		// Undo the first write so the pair is not left half-swapped
		revert := movingRow
		revert.Order = moving.Order
		if _, revertErr := s.store.UpsertOverride(ctx, revert); revertErr != nil {
			log.Printf("app: revert move %s/%s: %v", activity, sectionKey, revertErr)
		}
		return fmt.Errorf("move section neighbor: %w", err)
	}

	movingRow.UpdatedAt = time.Now()
	s.indexOverride(movingRow)
	return nil
}

func (s *Service) RecategorizeSection(ctx context.Context, device, activity, sectionKey string, input RecategorizeSectionInput) (guide.Section, error) {
	if _, ok := allowedCategories[input.Category]; !ok {
		return guide.Section{}, errValidation("category must be one of before, during, after")
	}
	if !catalog.IsKnownActivity(activity) {
		return guide.Section{}, errUnknownActivity()
	}

	sections, degraded := s.reconciled(ctx, device, activity)
	if degraded {
		return guide.Section{}, errStoreUnavailable()
	}

	current, found := findSection(sections, sectionKey)
	if !found {
		return guide.Section{}, errSectionNotFound()
	}

	item := sectionToOverride(current)
	if current.Category != input.Category {
		item.Category = input.Category
		item.Order = guide.NextOrder(sections, input.Category)
	}

	id, err := s.store.UpsertOverride(ctx, item)
	if err != nil {
		return guide.Section{}, err
	}
	item.ID = id
	item.UpdatedAt = time.Now()
	s.indexOverride(item)

	merged := overrideToSection(item)
	merged.IconKey = current.IconKey
	merged.Color = current.Color
	merged.IsDefault = current.IsDefault
	return merged, nil
}

// DeleteSection always records a tombstone, so defaults stay hidden even
// though their template cannot be removed. The remote row, when one exists,
// is deleted as well; a row delete failure leaves the tombstone in place and
// the section hidden on this device.
func (s *Service) DeleteSection(ctx context.Context, device, activity, sectionKey string) error {
	if !catalog.IsKnownActivity(activity) {
		return errUnknownActivity()
	}

	sections, degraded := s.reconciled(ctx, device, activity)
	if degraded {
		return errStoreUnavailable()
	}
	current, found := findSection(sections, sectionKey)
	if !found {
		return errSectionNotFound()
	}

	s.local.AddTombstone(ctx, device, activity, sectionKey)

	if current.OverrideID != "" {
		if _, err := s.store.DeleteOverride(ctx, current.OverrideID); err != nil {
			log.Printf("app: delete override %s/%s: %v", activity, sectionKey, err)
		}
	}

	if s.search != nil {
		s.search.DeleteSection(search.RecordID(activity, sectionKey))
	}
	return nil
}

func (s *Service) MarkSectionViewed(ctx context.Context, viewer Session, device, activity, sectionKey string) error {
	if !catalog.IsKnownActivity(activity) {
		return errUnknownActivity()
	}
	if device == "" {
		return domainError(http.StatusBadRequest, "DEVICE_REQUIRED", "X-Device-ID header is required", nil)
	}
	s.local.MarkViewed(ctx, device, viewer.UserID, activity, sectionKey, time.Now())
	return nil
}

// AttachMedia uploads a file to object storage and appends the resulting URL
// to the section's media refs, materializing an override if needed.
func (s *Service) AttachMedia(ctx context.Context, device, activity, sectionKey, filename, contentType string, size int64, body io.Reader) (guide.Section, string, error) {
	if s.media == nil {
		return guide.Section{}, "", domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	if !catalog.IsKnownActivity(activity) {
		return guide.Section{}, "", errUnknownActivity()
	}

	current, err := s.currentSection(ctx, device, activity, sectionKey)
	if err != nil {
		return guide.Section{}, "", err
	}

	objectKey := fmt.Sprintf("%s/%s/%d-%s", activity, sectionKey, time.Now().UnixNano(), sanitizeObjectName(filename))
	url, err := s.media.Upload(ctx, objectKey, body, size, contentType)
	if err != nil {
		return guide.Section{}, "", fmt.Errorf("upload media: %w", err)
	}

	item := sectionToOverride(current)
	item.MediaRefs = append(item.MediaRefs, url)

	id, err := s.store.UpsertOverride(ctx, item)
	if err != nil {
		return guide.Section{}, "", err
	}
	item.ID = id
	item.UpdatedAt = time.Now()
	s.indexOverride(item)

	merged := overrideToSection(item)
	merged.IconKey = current.IconKey
	merged.Color = current.Color
	merged.IsDefault = current.IsDefault
	return merged, url, nil
}

// ExportGuide renders the activity guide, as the viewer sees it on this
// device, to a printable PDF.
func (s *Service) ExportGuide(ctx context.Context, viewer Session, device, activity string) (*export.Result, error) {
	if !catalog.IsKnownActivity(activity) {
		return nil, errUnknownActivity()
	}
	sections, _ := s.reconciled(ctx, device, activity)
	return s.export.ExportGuide(activityName(activity), viewer.UserName, sections)
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// SectionRecords collects every catalog template and override for indexing.
func (s *Service) SectionRecords(ctx context.Context) []search.SectionRecord {
	records := make([]search.SectionRecord, 0)
	for _, activity := range catalog.Activities() {
		overridden := make(map[string]bool)
		overrides, err := s.store.ListOverrides(ctx, activity.ID)
		if err != nil {
			log.Printf("app: list overrides for index %s: %v", activity.ID, err)
		}
		for _, o := range overrides {
			overridden[o.SectionKey] = true
			records = append(records, search.SectionRecord{
				ID:       search.RecordID(o.Activity, o.SectionKey),
				Activity: o.Activity,
				Key:      o.SectionKey,
				Title:    o.Title,
				Body:     o.Body,
				Category: o.Category,
			})
		}
		for _, t := range catalog.Defaults(activity.ID) {
			if overridden[t.Key] {
				continue
			}
			records = append(records, search.SectionRecord{
				ID:        search.RecordID(t.Activity, t.Key),
				Activity:  t.Activity,
				Key:       t.Key,
				Title:     t.Title,
				Body:      t.Body,
				Category:  t.Category,
				IsDefault: true,
			})
		}
	}
	return records
}

// ReindexAll pushes all current sections into the search index.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.search == nil {
		return
	}
	s.search.ReindexAll(s.SectionRecords(ctx))
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingLocalState(ctx context.Context) error {
	return s.local.Ping(ctx)
}

// currentSection resolves a key to its reconciled section, whether it is a
// pristine default or an overridden one.
func (s *Service) currentSection(ctx context.Context, device, activity, sectionKey string) (guide.Section, error) {
	sections, degraded := s.reconciled(ctx, device, activity)
	if degraded {
		return guide.Section{}, errStoreUnavailable()
	}
	current, found := findSection(sections, sectionKey)
	if !found {
		return guide.Section{}, errSectionNotFound()
	}
	return current, nil
}

func (s *Service) indexOverride(item store.SectionOverride) {
	if s.search == nil {
		return
	}
	s.search.IndexSection(search.SectionRecord{
		ID:       search.RecordID(item.Activity, item.SectionKey),
		Activity: item.Activity,
		Key:      item.SectionKey,
		Title:    item.Title,
		Body:     item.Body,
		Category: item.Category,
	})
}

func findSection(sections []guide.Section, sectionKey string) (guide.Section, bool) {
	for _, section := range sections {
		if section.Key == sectionKey {
			return section, true
		}
	}
	return guide.Section{}, false
}

func sectionToOverride(section guide.Section) store.SectionOverride {
	return store.SectionOverride{
		ID:              section.OverrideID,
		Activity:        section.Activity,
		SectionKey:      section.Key,
		Title:           section.Title,
		Body:            section.Body,
		MediaRefs:       section.MediaRefs,
		LinkedChecklist: section.LinkedChecklist,
		Category:        section.Category,
		Order:           section.Order,
		UpdatedAt:       section.UpdatedAt,
	}
}

func overrideToSection(item store.SectionOverride) guide.Section {
	return guide.Section{
		Activity:        item.Activity,
		Key:             item.SectionKey,
		Title:           item.Title,
		Body:            item.Body,
		IconKey:         guide.FallbackIcon(item.SectionKey),
		Category:        item.Category,
		Order:           item.Order,
		MediaRefs:       item.MediaRefs,
		LinkedChecklist: item.LinkedChecklist,
		OverrideID:      item.ID,
		UpdatedAt:       item.UpdatedAt,
	}
}

func activityName(activity string) string {
	for _, a := range catalog.Activities() {
		if a.ID == activity {
			return a.Name
		}
	}
	return activity
}

func sanitizeObjectName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
