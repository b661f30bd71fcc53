package billing

import (
	"strings"
	"time"

	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/enums"
)

// PlanTable maps provider product ids to plan types.
type PlanTable struct {
	byProduct map[string]enums.PlanType
}

func NewPlanTable(monthly, annual []string) PlanTable {
	table := PlanTable{byProduct: make(map[string]enums.PlanType, len(monthly)+len(annual))}
	for _, id := range monthly {
		if id = strings.TrimSpace(id); id != "" {
			table.byProduct[id] = enums.PlanTypeMonthly
		}
	}
	for _, id := range annual {
		if id = strings.TrimSpace(id); id != "" {
			table.byProduct[id] = enums.PlanTypeAnnual
		}
	}
	return table
}

func PlanTableFromConfig(cfg config.BillingConfig) PlanTable {
	return NewPlanTable(cfg.MonthlyProductIDs, cfg.AnnualProductIDs)
}

// PlanFor returns the plan for productID, or PlanTypeUnknown.
func (t PlanTable) PlanFor(productID string) enums.PlanType {
	if plan, ok := t.byProduct[strings.TrimSpace(productID)]; ok {
		return plan
	}
	return enums.PlanTypeUnknown
}

// EndDate extends start by one calendar period of plan. Unknown plans end
// at start.
func EndDate(plan enums.PlanType, start time.Time) time.Time {
	switch plan {
	case enums.PlanTypeMonthly:
		return start.AddDate(0, 1, 0)
	case enums.PlanTypeAnnual:
		return start.AddDate(1, 0, 0)
	default:
		return start
	}
}
