// Package guide merges the three sources of truth for activity guide content:
// compiled-in catalog templates, remote override rows, and device-local
// tombstones and watermarks. The merge is pure; fetching and persistence stay
// with the callers.
package guide

import (
	"sort"
	"strings"
	"time"

	"crewops/api/internal/catalog"
	"crewops/api/internal/store"
)

// Section is the render-ready merge of a catalog template with its override,
// if any. It is derived on every load and never persisted.
type Section struct {
	Activity        string    `json:"activity"`
	Key             string    `json:"key"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	IconKey         string    `json:"iconKey"`
	Color           string    `json:"color"`
	Category        string    `json:"category"`
	Order           int       `json:"order"`
	MediaRefs       []string  `json:"mediaRefs,omitempty"`
	LinkedChecklist string    `json:"linkedChecklist,omitempty"`
	OverrideID      string    `json:"overrideId,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
	IsDefault       bool      `json:"isDefault"`
	IsNew           bool      `json:"isNew"`
}

// Reconcile merges templates and overrides into the ordered section list.
//
// Tombstoned keys are excluded whether or not an override row exists for
// them; the row itself is left alone here, deletion of remote rows happens at
// tombstone-creation time. Overrides win every field they carry except Color,
// which overrides do not store and which always comes from the template.
// Overrides without a matching template become pure custom sections.
//
// The sort is stable: duplicate (category, order) pairs can appear after
// concurrent edits and must not crash or reshuffle rendering.
func Reconcile(defaults []catalog.Template, overrides []store.SectionOverride, tombstones map[string]bool) []Section {
	overrideByKey := make(map[string]store.SectionOverride, len(overrides))
	for _, o := range overrides {
		overrideByKey[o.SectionKey] = o
	}

	sections := make([]Section, 0, len(defaults)+len(overrides))
	matched := make(map[string]bool, len(defaults))

	for _, t := range defaults {
		if tombstones[t.Key] {
			matched[t.Key] = true
			continue
		}
		section := Section{
			Activity:  t.Activity,
			Key:       t.Key,
			Title:     t.Title,
			Body:      t.Body,
			IconKey:   t.IconKey,
			Color:     t.Color,
			Category:  t.Category,
			Order:     t.BaseOrder,
			IsDefault: true,
		}
		if o, ok := overrideByKey[t.Key]; ok {
			section.Title = o.Title
			section.Body = o.Body
			section.MediaRefs = o.MediaRefs
			section.LinkedChecklist = o.LinkedChecklist
			section.Category = o.Category
			section.Order = o.Order
			section.OverrideID = o.ID
			section.UpdatedAt = o.UpdatedAt
		}
		matched[t.Key] = true
		sections = append(sections, section)
	}

	for _, o := range overrides {
		if matched[o.SectionKey] || tombstones[o.SectionKey] {
			continue
		}
		sections = append(sections, Section{
			Activity:        o.Activity,
			Key:             o.SectionKey,
			Title:           o.Title,
			Body:            o.Body,
			IconKey:         FallbackIcon(o.SectionKey),
			Category:        o.Category,
			Order:           o.Order,
			MediaRefs:       o.MediaRefs,
			LinkedChecklist: o.LinkedChecklist,
			OverrideID:      o.ID,
			UpdatedAt:       o.UpdatedAt,
			IsDefault:       false,
		})
	}

	sort.SliceStable(sections, func(i, j int) bool {
		if sections[i].Category != sections[j].Category {
			return categoryRank(sections[i].Category) < categoryRank(sections[j].Category)
		}
		return sections[i].Order < sections[j].Order
	})
	return sections
}

// AnnotateNew sets IsNew on each section: true when the section has an
// UpdatedAt and the viewer has either never opened it or opened it before the
// last change.
func AnnotateNew(sections []Section, viewed map[string]time.Time) {
	for i := range sections {
		if sections[i].UpdatedAt.IsZero() {
			sections[i].IsNew = false
			continue
		}
		seenAt, seen := viewed[sections[i].Key]
		sections[i].IsNew = !seen || sections[i].UpdatedAt.After(seenAt)
	}
}

// FallbackIcon derives an icon from the key prefix of a custom section that
// stored no explicit icon, e.g. "rope-1717171717000" yields "rope".
func FallbackIcon(sectionKey string) string {
	if idx := strings.IndexByte(sectionKey, '-'); idx > 0 {
		return sectionKey[:idx]
	}
	if sectionKey == "" {
		return "note"
	}
	return sectionKey
}

// NextOrder returns the order value a section entering this category should
// take: max(order)+1 among existing members, or 0 for an empty category.
func NextOrder(sections []Section, category string) int {
	next := 0
	found := false
	for _, section := range sections {
		if section.Category != category {
			continue
		}
		if !found || section.Order >= next {
			next = section.Order + 1
			found = true
		}
	}
	if !found {
		return 0
	}
	return next
}

// Siblings returns the sections of one category in rendered order.
func Siblings(sections []Section, category string) []Section {
	out := make([]Section, 0)
	for _, section := range sections {
		if section.Category == category {
			out = append(out, section)
		}
	}
	return out
}

func categoryRank(category string) int {
	switch category {
	case catalog.CategoryBefore:
		return 0
	case catalog.CategoryDuring:
		return 1
	case catalog.CategoryAfter:
		return 2
	default:
		return 3
	}
}
