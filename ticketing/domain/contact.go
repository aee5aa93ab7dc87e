package domain

import "time"

// Contact is a counterpart identity, unique per (tenant, normalized number).
// The display name is fixed at creation time; agent renames are never
// overwritten by channel events.
type Contact struct {
	ID        string
	TenantID  string
	Name      string
	Number    string
	IsGroup   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
