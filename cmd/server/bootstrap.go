package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/api"
	"github.com/Parthmh361/pure-harvest/internal/app"
	"github.com/Parthmh361/pure-harvest/internal/app/maintenance"
	iauth "github.com/Parthmh361/pure-harvest/internal/auth"
	"github.com/Parthmh361/pure-harvest/internal/cache"
	"github.com/Parthmh361/pure-harvest/internal/database"
	"github.com/Parthmh361/pure-harvest/internal/events"
	"github.com/Parthmh361/pure-harvest/internal/handlers"
	"github.com/Parthmh361/pure-harvest/internal/middleware"
	"github.com/Parthmh361/pure-harvest/internal/monitoring/checks"
	"github.com/Parthmh361/pure-harvest/internal/notifier"
	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/internal/repository"
	"github.com/Parthmh361/pure-harvest/internal/services"
	"github.com/Parthmh361/pure-harvest/pkg/logger"
	"github.com/Parthmh361/pure-harvest/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Mongo    *mongo.Client
	Redis    *cache.RedisStore
	Hub      *realtime.Hub
	Service  *services.NotificationService
	Consumer *events.Consumer
	Producer *events.Producer
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// storeSet is the persistence selected by database.driver.
type storeSet struct {
	Notifications repository.NotificationStore
	Users         repository.UserStore
	Checks        []handlers.HealthCheck
}

// bootstrapRuntime initialises stores, providers, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stores, err := stack.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var rateStore middleware.RateStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to in-memory rate limiting", zap.Error(err))
		} else {
			rateStore = middleware.NewCacheRateStore(stack.Redis)
			stores.Checks = append(stores.Checks, checks.Redis(stack.Redis, 0))
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	emailSender, smsSender, err := buildSenders(cfg, log)
	if err != nil {
		return nil, err
	}

	stack.Hub = realtime.NewHub(cfg.Server.AllowedOrigins...)
	stack.Service, err = services.NewNotificationService(stores.Notifications, stores.Users,
		services.WithPublisher(stack.Hub),
		services.WithEmailSender(emailSender),
		services.WithSMSSender(smsSender),
		services.WithPublicURL(cfg.Notifications.PublicURL),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	eventHandler, err := events.NewHandler(stack.Service)
	if err != nil {
		return nil, fmt.Errorf("initialise event handler: %w", err)
	}

	var sink events.Sink = eventHandler
	kafkaCfg := cfg.Events.Kafka
	if kafkaCfg.PublishesToKafka() {
		if stack.Producer, err = events.NewProducer(kafkaCfg.ClientConfig()); err != nil {
			return nil, fmt.Errorf("initialise event producer: %w", err)
		}
		sink = stack.Producer
	}
	if kafkaCfg.Enabled {
		if stack.Consumer, err = events.NewConsumer(kafkaCfg.ClientConfig(), eventHandler); err != nil {
			return nil, fmt.Errorf("initialise event consumer: %w", err)
		}
	}
	if kafkaCfg.Enabled || kafkaCfg.PublishesToKafka() {
		client := kafkaCfg.ClientConfig()
		stores.Checks = append(stores.Checks, checks.Kafka(client.Brokers, client.Topic, 0))
	}

	stack.Cleaner = maintenance.NewCleaner(stores.Notifications,
		maintenance.WithRetentionDays(cfg.Notifications.RetentionDays),
		maintenance.WithSchedule(cfg.Notifications.CleanupSchedule),
	)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Notifications: stack.Service,
		Tokens:        jwtSvc,
		Hub:           stack.Hub,
		Events:        sink,
		RateStore:     rateStore,
		HealthChecks:  stores.Checks,
	}, cfg)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func (s *runtimeStack) openStores(ctx context.Context, cfg *app.Config) (storeSet, error) {
	if cfg.Database.IsMongo() {
		client, db, err := database.OpenMongo(ctx, cfg.Database.MongoConfig())
		if err != nil {
			return storeSet{}, fmt.Errorf("open database: %w", err)
		}
		s.Mongo = client

		notifications, err := repository.NewMongoNotificationStore(db)
		if err != nil {
			return storeSet{}, err
		}
		if err := notifications.EnsureIndexes(ctx); err != nil {
			return storeSet{}, fmt.Errorf("ensure indexes: %w", err)
		}
		users, err := repository.NewMongoUserStore(db)
		if err != nil {
			return storeSet{}, err
		}

		logger.WithModule("database").Info("database connected", zap.String("driver", "mongodb"))
		return storeSet{
			Notifications: notifications,
			Users:         users,
			Checks:        []handlers.HealthCheck{checks.Mongo(client, 0)},
		}, nil
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return storeSet{}, err
	}
	s.DB = db

	notifications, err := repository.NewGormNotificationStore(db)
	if err != nil {
		return storeSet{}, err
	}
	users, err := repository.NewGormUserStore(db)
	if err != nil {
		return storeSet{}, err
	}

	return storeSet{
		Notifications: notifications,
		Users:         users,
		Checks:        []handlers.HealthCheck{checks.Database(db, 0)},
	}, nil
}

// buildSenders selects the email and SMS providers and wraps real providers
// in circuit breakers.
func buildSenders(cfg *app.Config, log *zap.Logger) (notifier.EmailSender, notifier.SMSSender, error) {
	stub := notifier.NewLogSender(logger.WithModule("notifier"))

	var email notifier.EmailSender = stub
	if cfg.Email.SMTP.Enabled {
		mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if err != nil {
			return nil, nil, fmt.Errorf("initialise smtp mailer: %w", err)
		}
		smtpSender, err := notifier.NewSMTPEmailSender(mailer, cfg.Email.SMTP.From)
		if err != nil {
			return nil, nil, fmt.Errorf("initialise email sender: %w", err)
		}
		email = smtpSender
		if cfg.Providers.Breaker.Enabled {
			email = notifier.NewBreakingEmailSender(smtpSender, cfg.Providers.BreakerSettings(), log)
		}
	}

	var sms notifier.SMSSender = stub
	if cfg.SMS.UsesTwilio() {
		twilio, err := notifier.NewTwilioSMSSender(cfg.SMS.TwilioSettings())
		if err != nil {
			return nil, nil, fmt.Errorf("initialise sms sender: %w", err)
		}
		sms = twilio
		if cfg.Providers.Breaker.Enabled {
			sms = notifier.NewBreakingSMSSender(twilio, cfg.Providers.BreakerSettings(), log)
		}
	}

	return email, sms, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
	}

	if s.Hub != nil {
		s.Hub.Shutdown()
	}

	var errs error
	if s.Consumer != nil {
		errs = multierr.Append(errs, s.Consumer.Close())
	}
	if s.Producer != nil {
		errs = multierr.Append(errs, s.Producer.Close())
	}
	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}
	if s.Mongo != nil {
		errs = multierr.Append(errs, s.Mongo.Disconnect(ctx))
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}

	for _, err := range multierr.Errors(errs) {
		if !errors.Is(err, context.Canceled) {
			log.Warn("shutdown", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.GormConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
