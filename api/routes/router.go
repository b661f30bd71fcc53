package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simpify/spark-backend/api/controllers"
	webhookcontrollers "github.com/simpify/spark-backend/api/controllers/webhooks"
	"github.com/simpify/spark-backend/api/middleware"
	"github.com/simpify/spark-backend/internal/auth"
	"github.com/simpify/spark-backend/internal/billing"
	"github.com/simpify/spark-backend/internal/premium"
	"github.com/simpify/spark-backend/internal/users"
	"github.com/simpify/spark-backend/pkg/auth/session"
	"github.com/simpify/spark-backend/pkg/config"
	"github.com/simpify/spark-backend/pkg/logger"
	"github.com/simpify/spark-backend/pkg/metrics"
	"github.com/simpify/spark-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	Users           users.Store
	Redis           *redis.Client
	Sessions        session.Checker
	AuthService     auth.Service
	RegisterService auth.RegisterService
	BillingService  webhookcontrollers.BillingWebhookService
	BillingGuard    *billing.IdempotencyGuard
	Gate            *premium.Gate
	WebhookMetrics  *metrics.WebhookMetrics
	Gatherer        prometheus.Gatherer
	Now             func() time.Time
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	registerPolicy := middleware.RegisterRateLimitPolicy(cfg.AuthRateLimit)
	requireSession := middleware.Session(cfg.Session, p.Sessions, p.Users, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(map[string]controllers.Pinger{
			"store": p.Users,
			"redis": p.Redis,
		}, logg))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/users", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.UsersRegister(p.RegisterService, logg))
		r.Get("/login", controllers.UsersLogin(p.AuthService, cfg.Session))
		r.Get("/callback", controllers.UsersCallback(p.AuthService, cfg.Session, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Post("/logout", controllers.UsersLogout(p.AuthService, cfg.Session, logg))
			r.Get("/me", controllers.UsersMe(logg))
		})
	})

	r.Route("/api/v1/premium", func(r chi.Router) {
		r.Use(requireSession)
		r.Use(middleware.RequirePremium(p.Gate, logg))
		r.Get("/status", controllers.PremiumStatus(p.Now, logg))
	})

	billingWebhook := webhookcontrollers.BillingWebhook(p.BillingService, cfg.Billing.WebhookSecret, nil, p.WebhookMetrics, logg)
	if p.BillingGuard != nil {
		billingWebhook = webhookcontrollers.BillingWebhook(p.BillingService, cfg.Billing.WebhookSecret, p.BillingGuard, p.WebhookMetrics, logg)
	}
	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Post("/webhook", billingWebhook)
	})

	return r
}
