package model

import "github.com/shopspring/decimal"

// Plan describes a subscription tier: the monthly transcription allowance
// and the cost-limit thresholds applied before any paid external call.
type Plan struct {
	Name            string          `json:"name"`
	AllowedMinutes  int             `json:"allowed_minutes"`
	PerCallLimitUSD decimal.Decimal `json:"per_call_limit_usd"`
	MonthlyLimitUSD decimal.Decimal `json:"monthly_limit_usd"`
}

const DefaultPlanName = "free"

var plans = map[string]Plan{
	"free": {
		Name:            "free",
		AllowedMinutes:  30,
		PerCallLimitUSD: decimal.NewFromFloat(0.50),
		MonthlyLimitUSD: decimal.NewFromInt(2),
	},
	"starter": {
		Name:            "starter",
		AllowedMinutes:  120,
		PerCallLimitUSD: decimal.NewFromInt(1),
		MonthlyLimitUSD: decimal.NewFromInt(8),
	},
	"pro": {
		Name:            "pro",
		AllowedMinutes:  600,
		PerCallLimitUSD: decimal.NewFromInt(3),
		MonthlyLimitUSD: decimal.NewFromInt(40),
	},
	"premium": {
		Name:            "premium",
		AllowedMinutes:  2000,
		PerCallLimitUSD: decimal.NewFromInt(10),
		MonthlyLimitUSD: decimal.NewFromInt(150),
	},
}

// PlanByName returns the plan for the given tier name.
func PlanByName(name string) (Plan, bool) {
	p, ok := plans[name]
	return p, ok
}

// DefaultPlan returns the free tier.
func DefaultPlan() Plan {
	return plans[DefaultPlanName]
}
