// Package domain defines the quota engine contract: fixed limits, usage
// snapshots, and the consumption operation.
package domain

import "time"

// Process-wide quota limits. Fixed by design; a deployment that needs
// different numbers changes them here.
const (
	DailyLimit   = 5
	MonthlyLimit = 20
)

// Snapshot is a derived, never-persisted view of a user's quota state.
// JSON field names follow the public API contract.
type Snapshot struct {
	DayUsed        int `json:"dayUsed"`
	DayRemaining   int `json:"dayRemaining"`
	MonthUsed      int `json:"monthUsed"`
	MonthRemaining int `json:"monthRemaining"`

	DayResetAtLocal   time.Time `json:"dayResetAtLocal"`
	MonthResetAtLocal time.Time `json:"monthResetAtLocal"`
}

// ConsumeRequest is one attempt to charge a search query against quota.
type ConsumeRequest struct {
	UserID   string         `json:"user_id"`
	Term     string         `json:"term"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
