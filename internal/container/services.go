package container

import (
	"sync"
	"time"

	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/cache"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/mongodb"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/postgres"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/search"
)

const (
	productCacheTTL  = 5 * time.Minute
	webhookDedupeTTL = 24 * time.Hour
)

// Services are the application services built from the container's infra.
type Services struct {
	Users           *application.UserService
	Catalog         *application.CatalogService
	Cart            *application.CartService
	Orders          *application.OrderService
	Payments        *application.PaymentService
	Recommendations *application.RecommendationService
	Uploads         *application.UploadService
	Notifier        *application.Notifier

	Sessions     *cache.SessionStore
	ProductIndex *search.ProductIndex // nil without Elasticsearch
}

var (
	servicesOnce sync.Once
	services     *Services
)

// GetServices builds the services once. The infra setters must have run first.
func GetServices() *Services {
	servicesOnce.Do(func() { services = buildServices() })
	return services
}

func buildServices() *Services {
	c := GetConfig()
	log := GetLogger()
	rdb := GetRedis()
	db := GetMongo()

	users := postgres.NewUserRepository(GetPGPool())
	audit := postgres.NewAuditLogRepository(GetPGPool())
	categories := mongodb.NewCategoryRepository(db)
	brands := mongodb.NewBrandRepository(db)
	banners := mongodb.NewBannerRepository(db)
	products := mongodb.NewProductRepository(db)
	carts := mongodb.NewCartRepository(db)
	orders := mongodb.NewOrderRepository(db)
	payments := mongodb.NewPaymentRepository(db)
	outbox := mongodb.NewOutboxRepository(db)

	sessions := cache.NewSessionStore(rdb, c.RefreshTTL)
	notifier := application.NewNotifier(GetEmailQueue(), c, log)
	uploads := application.NewUploadService(GetImageStore(), c.UploadMaxBytes, log)

	productCache := cache.NewJSONCache(rdb, "catalog:products:", productCacheTTL)
	var index *search.ProductIndex
	catalogDeps := application.CatalogDeps{
		Categories: categories,
		Brands:     brands,
		Banners:    banners,
		Products:   products,
		Cache:      productCache,
		Logger:     log,
	}
	if es := GetES(); es != nil {
		index = search.NewProductIndex(es, c.ESProductsIndex, log)
		catalogDeps.Search = index
	}

	cart := application.NewCartService(carts, products, cache.NewCartCache(rdb), log)
	orderSvc := application.NewOrderService(application.OrderServiceDeps{
		Orders:                orders,
		Payments:              payments,
		Products:              products,
		Users:                 users,
		Outbox:                outbox,
		Cart:                  cart,
		Gateway:               GetPaymentGateway(),
		Notifier:              notifier,
		ProductCache:          productCache,
		Logger:                log,
		Currency:              c.Currency,
		ShippingFee:           c.ShippingFee,
		FreeShippingThreshold: c.FreeShippingThreshold,
	})

	return &Services{
		Users: application.NewUserService(application.UserServiceDeps{
			Users:     users,
			Audit:     audit,
			Sessions:  sessions,
			Tokens:    cache.NewTokenStore(rdb),
			JWT:       GetJWT(),
			Uploads:   uploads,
			Notifier:  notifier,
			Logger:    log,
			VerifyURL: c.VerifyEmailURL,
			ResetURL:  c.ResetPasswordURL,
		}),
		Catalog: application.NewCatalogService(catalogDeps),
		Cart:    cart,
		Orders:  orderSvc,
		Payments: application.NewPaymentService(payments, orderSvc, GetPaymentGateway(),
			cache.NewDeduper(rdb, "razorpay:event:", webhookDedupeTTL), c.PaymentExpiry, log),
		Recommendations: application.NewRecommendationService(products, GetTextGenerator(),
			cache.NewJSONCache(rdb, "reco:", c.RecommendationCacheTTL), log),
		Uploads:      uploads,
		Notifier:     notifier,
		Sessions:     sessions,
		ProductIndex: index,
	}
}
