package agent

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Message roles used by the conversational API.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// LlmMessage is one turn of the conversation as submitted by the client.
type LlmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Messages []LlmMessage `json:"messages"`
}

// TaskStructure is the resolved allocation task extracted from the
// conversation. Unset numeric fields get the service defaults.
type TaskStructure struct {
	Task             string   `json:"task"`
	AssetSymbols     []string `json:"asset_symbols" validate:"required,min=1,dive,required,uppercase"`
	TotalInvestment  float64  `json:"total_investment" validate:"gte=0"`
	StartDate        string   `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate          string   `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	RiskFreeRate     float64  `json:"risk_free_rate" validate:"gte=0,lte=1"`
	TargetReturn     float64  `json:"target_return" validate:"gte=0,lte=10"`
	TargetVolatility float64  `json:"target_volatility" validate:"gte=0,lte=10"`
}

// Task defaults, matching the conversational contract: percentages are
// decimal fractions normalized to 1.
const (
	DefaultTotalInvestment  = 100000.0
	DefaultStartDate        = "2019-01-01"
	DefaultRiskFreeRate     = 0.05
	DefaultTargetReturn     = 0.15
	DefaultTargetVolatility = 0.15
)

// ApplyDefaults fills unset fields with the service defaults.
func (t *TaskStructure) ApplyDefaults() {
	if t.TotalInvestment == 0 {
		t.TotalInvestment = DefaultTotalInvestment
	}
	if t.StartDate == "" {
		t.StartDate = DefaultStartDate
	}
	if t.RiskFreeRate == 0 {
		t.RiskFreeRate = DefaultRiskFreeRate
	}
	if t.TargetReturn == 0 {
		t.TargetReturn = DefaultTargetReturn
	}
	if t.TargetVolatility == 0 {
		t.TargetVolatility = DefaultTargetVolatility
	}
}

// Validate checks the task structure after defaults are applied.
func (t *TaskStructure) Validate(v *validator.Validate) error {
	if err := v.Struct(t); err != nil {
		return fmt.Errorf("invalid task structure: %w", err)
	}
	return nil
}

// PrettyDetails renders the task for a status-update event.
func (t *TaskStructure) PrettyDetails() map[string]any {
	return map[string]any{
		"Assets":            strings.Join(t.AssetSymbols, ", "),
		"Total investment":  t.TotalInvestment,
		"Start date":        t.StartDate,
		"End date":          t.EndDate,
		"Risk free rate":    t.RiskFreeRate,
		"Target return":     t.TargetReturn,
		"Target volatility": t.TargetVolatility,
	}
}
