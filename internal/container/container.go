package container

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/oksasatya/perfume-storefront/config"
	"github.com/oksasatya/perfume-storefront/internal/application"
	"github.com/oksasatya/perfume-storefront/pkg/helpers"
)

// app-level container to share constructed components across packages.
// Optional integrations stay nil when they are not configured.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	mongoDB     *mongo.Database
	redisClient *redis.Client

	jwtManager *helpers.JWTManager

	esClient   *elasticsearch.Client
	emailQueue application.EmailQueue
	imageStore application.ImageStore
	gateway    application.PaymentGateway
	textGen    application.TextGenerator
)

func SetConfig(c *config.Config)   { cfg = c }
func GetConfig() *config.Config    { return cfg }
func SetLogger(l *logrus.Logger)   { logger = l }
func GetLogger() *logrus.Logger    { return logger }
func SetPGPool(p *pgxpool.Pool)    { pgPool = p }
func GetPGPool() *pgxpool.Pool     { return pgPool }
func SetMongo(db *mongo.Database)  { mongoDB = db }
func GetMongo() *mongo.Database    { return mongoDB }
func SetRedis(r *redis.Client)     { redisClient = r }
func GetRedis() *redis.Client      { return redisClient }
func SetJWT(m *helpers.JWTManager) { jwtManager = m }
func GetJWT() *helpers.JWTManager  { return jwtManager }

func SetES(c *elasticsearch.Client) { esClient = c }
func GetES() *elasticsearch.Client  { return esClient }

func SetEmailQueue(q application.EmailQueue) { emailQueue = q }
func GetEmailQueue() application.EmailQueue  { return emailQueue }

func SetImageStore(s application.ImageStore) { imageStore = s }
func GetImageStore() application.ImageStore  { return imageStore }

func SetPaymentGateway(g application.PaymentGateway) { gateway = g }
func GetPaymentGateway() application.PaymentGateway  { return gateway }

func SetTextGenerator(t application.TextGenerator) { textGen = t }
func GetTextGenerator() application.TextGenerator  { return textGen }
