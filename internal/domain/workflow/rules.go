package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/travel-reimbursement/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ErrInvalidRuleSet is returned by RuleSet.Validate
var ErrInvalidRuleSet = errors.New("invalid approval rule set")

// StepRule describes one role in the approval chain
type StepRule struct {
	Role     string `mapstructure:"role" json:"role"`
	SlaHours int    `mapstructure:"sla_hours" json:"sla_hours"`

	// FastTrackSkippable marks a step skipped for amounts below the fast-track threshold
	FastTrackSkippable bool `mapstructure:"fast_track_skippable" json:"fast_track_skippable"`

	// HighValueOnly marks a step that only exists above the high-value threshold
	HighValueOnly bool `mapstructure:"high_value_only" json:"high_value_only"`
}

// RuleSet is the active approval policy. Thresholds are in the reporting currency.
type RuleSet struct {
	Currency           string
	FastTrackThreshold decimal.Decimal
	HighValueThreshold decimal.Decimal
	Steps              []StepRule
}

// Validate checks that the rule set can always produce at least one step
func (r RuleSet) Validate() error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("%w: no steps configured", ErrInvalidRuleSet)
	}
	if r.FastTrackThreshold.IsNegative() || r.HighValueThreshold.IsNegative() {
		return fmt.Errorf("%w: thresholds must not be negative", ErrInvalidRuleSet)
	}
	if !r.HighValueThreshold.IsZero() && r.HighValueThreshold.LessThan(r.FastTrackThreshold) {
		return fmt.Errorf("%w: high-value threshold below fast-track threshold", ErrInvalidRuleSet)
	}

	mandatory := 0
	for i, s := range r.Steps {
		if s.Role == "" {
			return fmt.Errorf("%w: step %d has no role", ErrInvalidRuleSet, i)
		}
		if s.SlaHours <= 0 {
			return fmt.Errorf("%w: step %s needs positive sla_hours", ErrInvalidRuleSet, s.Role)
		}
		if !s.FastTrackSkippable && !s.HighValueOnly {
			mandatory++
		}
	}
	if mandatory == 0 {
		return fmt.Errorf("%w: at least one step must apply to every amount", ErrInvalidRuleSet)
	}
	return nil
}

// BuildSteps returns the ordered steps for an expense of amount. Fast-track steps stay in
// the chain as skipped so the audit trail shows them; high-value steps are only added when
// amount exceeds the high-value threshold.
func (r RuleSet) BuildSteps(amount decimal.Decimal, now time.Time) []entity.ApprovalStep {
	fastTrack := amount.LessThan(r.FastTrackThreshold)
	highValue := !r.HighValueThreshold.IsZero() && amount.GreaterThan(r.HighValueThreshold)

	steps := make([]entity.ApprovalStep, 0, len(r.Steps))
	for _, rule := range r.Steps {
		if rule.HighValueOnly && !highValue {
			continue
		}

		step := entity.ApprovalStep{
			Role:     rule.Role,
			Status:   entity.StepStatusPending,
			SlaHours: rule.SlaHours,
		}
		if rule.FastTrackSkippable && fastTrack {
			skip(&step, now, "fast-track: amount below threshold")
		}
		steps = append(steps, step)
	}
	return steps
}
