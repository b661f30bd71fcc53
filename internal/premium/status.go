package premium

import (
	"time"

	"github.com/simpify/spark-backend/pkg/db/models"
	"github.com/simpify/spark-backend/pkg/enums"
)

// Status is the subscription summary shown to premium users.
type Status struct {
	PlanType      enums.PlanType           `json:"planType"`
	Status        enums.SubscriptionStatus `json:"status"`
	StartDate     time.Time                `json:"startDate"`
	EndDate       time.Time                `json:"endDate"`
	DaysRemaining *int                     `json:"daysRemaining,omitempty"`
	Purchases     int                      `json:"purchases"`
}

// StatusFor summarizes user's subscription at now. Unknown plans carry no
// remaining-days count.
func StatusFor(user *models.User, now time.Time) Status {
	if user == nil || user.Subscription == nil {
		return Status{}
	}
	sub := user.Subscription
	out := Status{
		PlanType:  sub.PlanType,
		Status:    sub.Status,
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
		Purchases: len(user.Purchases),
	}
	if sub.PlanType != enums.PlanTypeUnknown && !sub.EndDate.IsZero() {
		days := 0
		if remaining := sub.EndDate.Sub(now); remaining > 0 {
			days = int(remaining.Hours() / 24)
		}
		out.DaysRemaining = &days
	}
	return out
}
