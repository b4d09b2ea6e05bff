package dto

import "time"

// UsageResponseDTO is returned for the current usage snapshot
type UsageResponseDTO struct {
	Plan             string    `json:"plan"`
	AllowedMinutes   int       `json:"allowed_minutes"`
	UsedMinutes      int       `json:"used_minutes"`
	RemainingMinutes int       `json:"remaining_minutes"`
	IsOverLimit      bool      `json:"is_over_limit"`
	CycleStart       time.Time `json:"cycle_start"`
}

// CostResponseDTO is returned for the current spending snapshot
type CostResponseDTO struct {
	TotalCostUSD   string    `json:"total_cost_usd"`
	MonthlyCostUSD string    `json:"monthly_cost_usd"`
	MonthlyCalls   int       `json:"monthly_calls"`
	TotalCalls     int       `json:"total_calls"`
	CycleStart     time.Time `json:"cycle_start"`
}
