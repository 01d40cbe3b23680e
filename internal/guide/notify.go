package guide

import "time"

// ChangedSince returns the sections updated after the visit watermark. Used
// for the one-shot "what changed" notice on guide load; sections that never
// materialized an override have no UpdatedAt and never appear.
func ChangedSince(sections []Section, watermark time.Time) []Section {
	changed := make([]Section, 0)
	for _, section := range sections {
		if section.UpdatedAt.IsZero() {
			continue
		}
		if section.UpdatedAt.After(watermark) {
			changed = append(changed, section)
		}
	}
	return changed
}
