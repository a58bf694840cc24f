package types

import "time"

// ItemStatus is the state of a lost or found item.
type ItemStatus string

// Supported item statuses.
const (
	ItemLost    ItemStatus = "lost"
	ItemFound   ItemStatus = "found"
	ItemClaimed ItemStatus = "claimed"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemLost, ItemFound, ItemClaimed:
		return true
	default:
		return false
	}
}

// ClaimStatus is the state of a claim request.
type ClaimStatus string

// Supported claim statuses.
const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

// Decision reports whether s is a valid outcome for a pending claim.
func (s ClaimStatus) Decision() bool {
	return s == ClaimApproved || s == ClaimRejected
}

// LostFoundItem represents an item reported lost or found in a hostel.
type LostFoundItem struct {
	// ID is the unique identifier of the item.
	ID string `json:"id" db:"id"`

	// ItemName is a short name for the item.
	ItemName string `json:"itemName" db:"item_name"`

	// Description describes the item.
	Description string `json:"description" db:"description"`

	// Location is where the item was lost or found.
	Location string `json:"location" db:"location"`

	// Status is lost, found or claimed. Claimed is terminal for approvals.
	Status ItemStatus `json:"status" db:"status"`

	// ReporterID is the user who reported the item.
	ReporterID string `json:"reportedBy" db:"reporter_id"`

	// Images holds URLs of uploaded photos.
	Images []string `json:"images" db:"images"`

	// Hostel is copied from the reporter's profile at creation time.
	Hostel string `json:"hostel" db:"hostel"`

	// ContactInfo is how claimants can reach the reporter.
	ContactInfo string `json:"contactInfo" db:"contact_info"`

	// ClaimRequests is the append-only ledger of claims, in request order.
	ClaimRequests []ClaimRequest `json:"claimRequests" db:"claim_requests"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ClaimRequest is a user's request to collect an item.
type ClaimRequest struct {
	ID          string      `json:"id"`
	ClaimantID  string      `json:"claimedBy"`
	RequestedAt time.Time   `json:"requestDate"`
	Status      ClaimStatus `json:"status"`
	DecidedAt   *time.Time  `json:"decidedAt,omitempty"`
	DecidedBy   *string     `json:"decidedBy,omitempty"`
}

// IsReporter reports whether userID reported the item.
func (it *LostFoundItem) IsReporter(userID string) bool {
	return userID != "" && it.ReporterID == userID
}

// HasClaimBy reports whether userID already filed a claim on the item.
func (it *LostFoundItem) HasClaimBy(userID string) bool {
	for _, claim := range it.ClaimRequests {
		if claim.ClaimantID == userID {
			return true
		}
	}
	return false
}

// HasApprovedClaim reports whether any claim on the item was approved. An
// item with an approved claim accepts no further approvals or status edits.
func (it *LostFoundItem) HasApprovedClaim() bool {
	for _, claim := range it.ClaimRequests {
		if claim.Status == ClaimApproved {
			return true
		}
	}
	return false
}

// Claim returns the index of the claim with the given id, or -1.
func (it *LostFoundItem) Claim(claimID string) int {
	for idx, claim := range it.ClaimRequests {
		if claim.ID == claimID {
			return idx
		}
	}
	return -1
}

// AddClaim appends a pending claim request.
func (it *LostFoundItem) AddClaim(claim ClaimRequest) {
	claim.Status = ClaimPending
	it.ClaimRequests = append(it.ClaimRequests, claim)
	it.UpdatedAt = claim.RequestedAt
}

// DecideClaim records the outcome of the claim at idx. Approving marks the
// item claimed; other pending claims are left untouched.
func (it *LostFoundItem) DecideClaim(idx int, status ClaimStatus, actorID string, at time.Time) {
	claim := &it.ClaimRequests[idx]
	claim.Status = status
	claim.DecidedAt = &at
	claim.DecidedBy = &actorID
	if status == ClaimApproved {
		it.Status = ItemClaimed
	}
	it.UpdatedAt = at
}

// ItemFilter narrows a lost and found listing.
type ItemFilter struct {
	Status ItemStatus
	Search string
	// Hostel restricts results to one hostel when set.
	Hostel string
}

// ItemPatch is a partial update of an item. Nil fields are left unchanged.
type ItemPatch struct {
	ItemName    *string     `json:"itemName"`
	Description *string     `json:"description"`
	Location    *string     `json:"location"`
	Status      *ItemStatus `json:"status"`
	ContactInfo *string     `json:"contactInfo"`
}

// Apply copies the set fields of p onto it.
func (p ItemPatch) Apply(it *LostFoundItem) {
	if p.ItemName != nil {
		it.ItemName = *p.ItemName
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Location != nil {
		it.Location = *p.Location
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.ContactInfo != nil {
		it.ContactInfo = *p.ContactInfo
	}
}
