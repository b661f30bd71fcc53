package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/simpify/spark-backend/pkg/db/models"
	"github.com/simpify/spark-backend/pkg/logger"
)

const (
	PremiumExpiryJobName      = "premium-expiry"
	defaultPremiumExpiryBatch = 250
)

type premiumUserStore interface {
	ListPremium(ctx context.Context, after uuid.UUID, limit int) ([]models.User, error)
	ExpirePremium(ctx context.Context, user *models.User, now time.Time) (bool, error)
}

type PremiumExpiryJobParams struct {
	Logger    *logger.Logger
	Users     premiumUserStore
	BatchSize int
	Now       func() time.Time
}

// premiumExpiryJob clears isPremium for users whose termed plan has passed
// its end date. Subscription status is left as the provider reported it.
type premiumExpiryJob struct {
	logg  *logger.Logger
	users premiumUserStore
	batch int
	now   func() time.Time
}

func NewPremiumExpiryJob(params PremiumExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Users == nil {
		return nil, errors.New("user store required")
	}
	job := &premiumExpiryJob{
		logg:  params.Logger,
		users: params.Users,
		batch: params.BatchSize,
		now:   params.Now,
	}
	if job.batch <= 0 {
		job.batch = defaultPremiumExpiryBatch
	}
	if job.now == nil {
		job.now = func() time.Time { return time.Now().UTC() }
	}
	return job, nil
}

func (j *premiumExpiryJob) Name() string { return PremiumExpiryJobName }

func (j *premiumExpiryJob) Run(ctx context.Context) (Report, error) {
	now := j.now()
	var report Report
	var errs error
	after := uuid.Nil
	for {
		page, err := j.users.ListPremium(ctx, after, j.batch)
		if err != nil {
			return report, multierr.Append(errs, fmt.Errorf("list premium users: %w", err))
		}
		for i := range page {
			user := &page[i]
			report.Scanned++
			if !user.Subscription.Expired(now) {
				continue
			}
			userCtx := j.logg.WithUserID(ctx, user.ID.String())
			expired, err := j.users.ExpirePremium(ctx, user, now)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("expire user %s: %w", user.ID, err))
				continue
			}
			if !expired {
				j.logg.Debug(userCtx, "cron.premium_expiry_skipped")
				continue
			}
			report.Affected++
			j.logg.Info(userCtx, "cron.premium_expired")
		}
		if len(page) < j.batch {
			return report, errs
		}
		after = page[len(page)-1].ID
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
	}
}
