package model

import "time"

// UsageRecord tracks transcription minutes consumed against the plan
// allowance for the current billing cycle. used_minutes only ever grows
// within a cycle; it is reset to zero when the wall-clock month rolls past
// the cycle_start month.
type UsageRecord struct {
	UserID         string    `db:"user_id" json:"user_id"`
	PlanName       string    `db:"plan_name" json:"plan_name"`
	AllowedMinutes int       `db:"allowed_minutes" json:"allowed_minutes"`
	UsedMinutes    int       `db:"used_minutes" json:"used_minutes"`
	CycleStart     time.Time `db:"cycle_start" json:"cycle_start"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// UsageSnapshot is the derived view returned to callers.
type UsageSnapshot struct {
	PlanName         string    `json:"plan_name"`
	AllowedMinutes   int       `json:"allowed_minutes"`
	UsedMinutes      int       `json:"used_minutes"`
	RemainingMinutes int       `json:"remaining_minutes"`
	IsOverLimit      bool      `json:"is_over_limit"`
	CycleStart       time.Time `json:"cycle_start"`
}
