package store

import "time"

type User struct {
	ID          string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

// SectionOverride is the remote, mutable record that supersedes template
// fields for a section key. It is created lazily: a compiled-in default has
// no row until the first edit, move or recategorize materializes one.
type SectionOverride struct {
	ID              string
	Activity        string
	SectionKey      string
	Title           string
	Body            string
	MediaRefs       []string
	LinkedChecklist string
	Category        string
	Order           int
	UpdatedAt       time.Time
}
