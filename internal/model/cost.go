package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostRecord tracks USD spend on third-party APIs per user. Monthly figures
// reset lazily when the wall-clock month rolls past cycle_start's month; the
// reset is evaluated independently of the usage ledger.
type CostRecord struct {
	UserID         string          `db:"user_id" json:"user_id"`
	TotalCostUSD   decimal.Decimal `db:"total_cost_usd" json:"total_cost_usd"`
	MonthlyCostUSD decimal.Decimal `db:"monthly_cost_usd" json:"monthly_cost_usd"`
	MonthlyCalls   int             `db:"monthly_calls" json:"monthly_calls"`
	TotalCalls     int             `db:"total_calls" json:"total_calls"`
	CycleStart     time.Time       `db:"cycle_start" json:"cycle_start"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// CostAuditEntry is an append-only record of a successful spend update.
// The log is write-only; nothing in the service reads it back.
type CostAuditEntry struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Service     string          `db:"service" json:"service"`
	AmountUSD   decimal.Decimal `db:"amount_usd" json:"amount_usd"`
	ReferenceID string          `db:"reference_id" json:"reference_id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
