package container

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/config"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/gemini"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/mongodb"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/postgres"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/razorpay"
	"github.com/oksasatya/perfume-storefront/internal/infrastructure/storage"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
	"github.com/oksasatya/perfume-storefront/pkg/mailer"
)

// Bootstrap connects the required stores (Postgres, MongoDB, Redis) and every
// configured optional integration, and fills the container. Optional
// integrations that fail to start are logged and left disabled.
// The returned func releases everything Bootstrap opened.
func Bootstrap(ctx context.Context, c *config.Config, logger *logrus.Logger) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	SetConfig(c)
	SetLogger(logger)
	SetJWT(helpers.NewJWTManager(c.JWTAccessSecret, c.JWTRefreshSecret, c.AccessTTL, c.RefreshTTL))

	pool, err := postgres.NewPool(ctx, c.PostgresDSN(), c.DBMaxConns, c.DBMinConns, c.DBMaxConnLife)
	if err != nil {
		return cleanup, fmt.Errorf("postgres: %w", err)
	}
	closers = append(closers, pool.Close)
	SetPGPool(pool)

	db, err := mongodb.Connect(ctx, c.MongoURI, c.MongoDatabase)
	if err != nil {
		return cleanup, err
	}
	closers = append(closers, func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Client().Disconnect(dctx)
	})
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return cleanup, err
	}
	SetMongo(db)

	rdb := helpers.NewRedisClient(c.RedisAddr, c.RedisPassword, c.RedisDB)
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return cleanup, fmt.Errorf("redis: %w", err)
	}
	SetRedis(rdb)

	if addrs := c.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, c.ElasticsearchUser, c.ElasticsearchPass)
		if err != nil {
			logger.WithError(err).Warn("elasticsearch unavailable; product search falls back to MongoDB")
		} else {
			SetES(es)
		}
	} else {
		logger.Warn("ELASTICSEARCH_ADDRS not set; product search falls back to MongoDB")
	}

	if c.RabbitMQURL != "" && c.RabbitMQEmailQueue != "" {
		pub, err := mailer.NewPublisher(c.RabbitMQURL, c.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable; emails disabled")
		} else {
			closers = append(closers, pub.Close)
			SetEmailQueue(pub)
		}
	} else {
		logger.Warn("RabbitMQ not configured; emails disabled")
	}

	if c.RazorpayEnabled() {
		SetPaymentGateway(razorpay.NewGateway(razorpay.Config{
			KeyID:         c.RazorpayKeyID,
			KeySecret:     c.RazorpayKeySecret,
			WebhookSecret: c.RazorpayWebhookSecret,
		}, logger))
	} else {
		logger.Warn("Razorpay not configured; only cash on delivery is available")
	}

	if c.GeminiAPIKey != "" {
		gc, err := gemini.NewClient(ctx, c.GeminiAPIKey, c.GeminiModel, logger)
		if err != nil {
			logger.WithError(err).Warn("gemini unavailable; recommendations use rules only")
		} else {
			closers = append(closers, func() { _ = gc.Close() })
			SetTextGenerator(gc)
		}
	} else {
		logger.Info("GEMINI_API_KEY not set; recommendations use rules only")
	}

	switch strings.ToLower(c.UploadProvider) {
	case "cloudinary":
		if c.CloudinaryURL == "" {
			logger.Warn("CLOUDINARY_URL not set; uploads disabled")
			break
		}
		store, err := storage.NewCloudinaryStore(c.CloudinaryURL, c.CloudinaryFolder)
		if err != nil {
			logger.WithError(err).Warn("cloudinary unavailable; uploads disabled")
			break
		}
		SetImageStore(store)
	case "gcs":
		if c.GCSBucket == "" {
			logger.Warn("GCS_BUCKET not set; uploads disabled")
			break
		}
		store, err := storage.NewGCSStore(ctx, c.GCSBucket, c.CloudinaryFolder, c.GCSCredentialsJSONPath)
		if err != nil {
			logger.WithError(err).Warn("gcs unavailable; uploads disabled")
			break
		}
		closers = append(closers, func() { _ = store.Close() })
		SetImageStore(store)
	default:
		logger.WithField("provider", c.UploadProvider).Warn("unknown upload provider; uploads disabled")
	}

	return cleanup, nil
}
