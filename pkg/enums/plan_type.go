package enums

import "fmt"

// PlanType is the billing cadence of a subscription.
type PlanType string

const (
	PlanTypeMonthly PlanType = "monthly"
	PlanTypeAnnual  PlanType = "annual"
	PlanTypeUnknown PlanType = "unknown"
)

var validPlanTypes = []PlanType{
	PlanTypeMonthly,
	PlanTypeAnnual,
	PlanTypeUnknown,
}

func (p PlanType) String() string {
	return string(p)
}

func (p PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParsePlanType(value string) (PlanType, error) {
	for _, candidate := range validPlanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
