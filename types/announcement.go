package types

import "time"

// Announcement is a notice published by management.
//
// Empty target sets mean "everyone". TargetBlocks is stored for the
// frontend but is not consulted when deciding visibility.
type Announcement struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Content       string    `json:"content" db:"content"`
	TargetHostels []string  `json:"targetHostels" db:"target_hostels"`
	TargetBlocks  []string  `json:"targetBlocks" db:"target_blocks"`
	TargetRoles   []Role    `json:"targetRoles" db:"target_roles"`
	AuthorID      string    `json:"createdBy" db:"author_id"`
	IsActive      bool      `json:"isActive" db:"is_active"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// AnnouncementPatch is a partial update of an announcement.
type AnnouncementPatch struct {
	Title         *string   `json:"title"`
	Content       *string   `json:"content"`
	TargetHostels *[]string `json:"targetHostels"`
	TargetBlocks  *[]string `json:"targetBlocks"`
	TargetRoles   *[]Role   `json:"targetRoles"`
	IsActive      *bool     `json:"isActive"`
}

// Apply copies the set fields of p onto a.
func (p AnnouncementPatch) Apply(a *Announcement) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	if p.TargetHostels != nil {
		a.TargetHostels = *p.TargetHostels
	}
	if p.TargetBlocks != nil {
		a.TargetBlocks = *p.TargetBlocks
	}
	if p.TargetRoles != nil {
		a.TargetRoles = *p.TargetRoles
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
}
