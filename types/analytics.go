package types

import "time"

// AnalyticsFilter scopes the overview rollups.
type AnalyticsFilter struct {
	Hostel string
	Start  *time.Time
	End    *time.Time
}

// Overview is the management dashboard summary.
type Overview struct {
	TotalIssues            int             `json:"totalIssues"`
	IssuesByStatus         map[string]int  `json:"issuesByStatus"`
	IssuesByCategory       []CategoryCount `json:"issuesByCategory"`
	IssuesByPriority       []PriorityCount `json:"issuesByPriority"`
	IssuesByHostel         []HostelCount   `json:"issuesByHostel"`
	IssuesByBlock          []BlockCount    `json:"issuesByBlock"`
	AvgResolutionTimeHours float64         `json:"avgResolutionTimeHours"`
	ResolvedCount          int             `json:"resolvedCount"`
}

// KeyCount is a generic group-by row.
type KeyCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type PriorityCount struct {
	Priority string `json:"priority"`
	Count    int    `json:"count"`
}

type HostelCount struct {
	Hostel string `json:"hostel" db:"hostel"`
	Count  int    `json:"count" db:"count"`
}

type BlockCount struct {
	Hostel string `json:"hostel" db:"hostel"`
	Block  string `json:"block" db:"block"`
	Count  int    `json:"count" db:"count"`
}

// ResolutionSample carries what is needed to compute resolution time.
type ResolutionSample struct {
	CreatedAt     time.Time
	StatusHistory []StatusChange
}

// TrendPoint is the number of issues created on one day.
type TrendPoint struct {
	Date  string `json:"date" db:"date"`
	Count int    `json:"count" db:"count"`
}

// Trends is the daily issue volume over a trailing window.
type Trends struct {
	Period string       `json:"period"`
	Trends []TrendPoint `json:"trends"`
}

// RankedIssue is a summary row in a top-issues ranking.
type RankedIssue struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Category  string    `json:"category" db:"category"`
	Priority  string    `json:"priority" db:"priority"`
	Hostel    string    `json:"hostel" db:"hostel"`
	Upvotes   *int      `json:"upvotes,omitempty" db:"upvotes"`
	Comments  *int      `json:"comments,omitempty" db:"comments"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// TopIssues holds the two independent rankings.
type TopIssues struct {
	MostUpvoted   []RankedIssue `json:"mostUpvoted"`
	MostCommented []RankedIssue `json:"mostCommented"`
}
