package router

import (
	"context"

	"github.com/oksasatya/perfume-storefront/internal/container"
	handlers "github.com/oksasatya/perfume-storefront/internal/interface/http"
	"github.com/oksasatya/perfume-storefront/internal/router/modules"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

// InitModules builds handlers from the container's services and registers
// every feature module. Call once during startup, after the container is filled.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	svc := container.GetServices()

	guard := modules.Guard{
		Sessions: svc.Sessions,
		JWT:      container.GetJWT(),
		Redis:    container.GetRedis(),
	}
	cookies := helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure)

	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(svc.Users, cookies, logger), guard))
	r.Add(modules.NewUserModule(handlers.NewUserHandler(svc.Users, svc.Uploads.MaxBytes()), guard))
	r.Add(modules.NewCatalogModule(handlers.NewCatalogHandler(svc.Catalog), guard))
	r.Add(modules.NewCommerceModule(
		handlers.NewCartHandler(svc.Cart),
		handlers.NewOrderHandler(svc.Orders),
		handlers.NewPaymentHandler(svc.Payments),
		guard,
	))
	r.Add(modules.NewUploadModule(handlers.NewUploadHandler(svc.Uploads), guard))
	r.Add(modules.NewRecommendationModule(handlers.NewRecommendationHandler(svc.Recommendations), guard))
	r.Add(modules.NewEmailModule(handlers.NewEmailHandler(container.GetEmailQueue(), cfg.MailSendEnabled, logger), guard))
	r.Add(modules.NewHealthModule(handlers.NewHealthHandler(healthChecks()), guard))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(guard))
	}
}

func healthChecks() map[string]handlers.Pinger {
	return map[string]handlers.Pinger{
		"postgres": func(ctx context.Context) error { return container.GetPGPool().Ping(ctx) },
		"mongodb":  func(ctx context.Context) error { return container.GetMongo().Client().Ping(ctx, nil) },
		"redis":    func(ctx context.Context) error { return container.GetRedis().Ping(ctx).Err() },
	}
}
