package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/simpify/spark-backend/api/responses"
	"github.com/simpify/spark-backend/internal/billing"
	pkgerrors "github.com/simpify/spark-backend/pkg/errors"
	"github.com/simpify/spark-backend/pkg/logger"
	"github.com/simpify/spark-backend/pkg/metrics"
)

const maxWebhookBody = 1 << 20

type BillingWebhookService interface {
	HandleEvent(ctx context.Context, event billing.Event) (billing.Outcome, error)
}

type billingWebhookGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// BillingWebhook verifies and applies billing-provider events. Authentic
// events answer 200 even when ignored, bad signatures 401, and failures 500
// so the provider retries.
func BillingWebhook(svc BillingWebhookService, secret string, guard billingWebhookGuard, stats *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !billing.VerifySignature(payload, secret, r.Header.Get(billing.SignatureHeader)) {
			stats.Observe("", metrics.OutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid signature"))
			return
		}

		event, err := billing.DecodeEvent(r.Header.Get("Content-Type"), payload)
		if err != nil {
			stats.Observe("", metrics.OutcomeRejected)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}
		kind := string(event.Kind())
		if logg != nil {
			ctx = logg.WithEventType(ctx, kind)
		}

		key := event.DedupKey()
		if key != "" && guard != nil {
			seen, err := guard.CheckAndMark(ctx, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if seen {
				stats.Observe(kind, metrics.OutcomeDuplicate)
				if logg != nil {
					logg.Info(logg.WithField(ctx, "dedup_key", key), "billing.webhook_replayed")
				}
				responses.WriteMessage(w, http.StatusOK, "webhook received")
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if key != "" && guard != nil {
				if relErr := guard.Release(ctx, key); relErr != nil && logg != nil {
					logg.Error(ctx, "billing.idempotency_release_failed", relErr)
				}
			}
			stats.Observe(kind, metrics.OutcomeFailure)
			responses.WriteErrorMessage(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply webhook event"), "webhook error")
			return
		}

		stats.Observe(kind, outcomeLabel(outcome))
		responses.WriteMessage(w, http.StatusOK, "webhook received")
	}
}

func outcomeLabel(outcome billing.Outcome) string {
	switch outcome {
	case billing.OutcomeIgnored:
		return metrics.OutcomeIgnored
	case billing.OutcomeDuplicate:
		return metrics.OutcomeDuplicate
	default:
		return metrics.OutcomeSuccess
	}
}
