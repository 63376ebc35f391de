// Package bootstrap wires configuration, infrastructure and services into a
// runnable API server.
package bootstrap

import (
	"time"

	"assistant_server/adapter/out/detector"
	"assistant_server/adapter/out/persistence"
	"assistant_server/adapter/out/provider"
	"assistant_server/config"
	"assistant_server/core/port/out"
	"assistant_server/core/service/auth"
	"assistant_server/core/service/calendar"
	"assistant_server/infra/database"
	"assistant_server/pkg/crypto"
	"assistant_server/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

type Dependencies struct {
	Config *config.Config
	DB     *pgxpool.Pool
	SQLDB  *sqlx.DB
	Redis  *redis.Client

	// Repositories
	EventRepo      out.EventRepository
	CredentialRepo out.CredentialRepository
	StateStore     out.StateStore
	UserRepo       out.UserDirectory

	// Providers
	GoogleProvider *provider.GoogleCalendarAdapter
	Detector       out.EventDetectorPort

	// Services
	OAuthService    *auth.OAuthService
	CalendarService *calendar.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	var cleanups []func()

	if err := crypto.Init(); err != nil {
		logger.WithError(err).Warn("Token encryption disabled")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { db.Close() })

	sqlDB, err := database.NewSQLX(cfg.DatabaseURL, nil)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis is optional. With it the OAuth state store rides on GETDEL,
	// without it states are consumed through a conditional Postgres UPDATE.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, falling back to Postgres state store")
			redisClient = nil
		} else {
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}

	eventRepo := persistence.NewEventAdapter(sqlDB)
	credentialRepo := persistence.NewCredentialAdapter(sqlDB)
	userRepo := persistence.NewUserAdapter(sqlDB)

	var stateStore out.StateStore
	if redisClient != nil {
		stateStore = persistence.NewRedisStateStore(redisClient)
		logger.Info("OAuth state store: redis")
	} else {
		stateStore = persistence.NewOAuthStateAdapter(sqlDB)
		logger.Info("OAuth state store: postgres")
	}

	googleProvider := provider.NewGoogleCalendarAdapter(&provider.GoogleCalendarConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes:       cfg.DefaultGoogleScopes,
		CallTimeout:  cfg.SyncTimeout,
	})

	var eventDetector out.EventDetectorPort
	if cfg.OpenAIAPIKey != "" {
		eventDetector = detector.NewOpenAIDetector(detector.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
		})
		logger.Info("Event detector enabled (model: %s)", cfg.LLMModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, event detection disabled")
	}

	oauthService := auth.NewOAuthService(
		credentialRepo,
		stateStore,
		userRepo,
		googleProvider,
		cfg.OAuthStateTTL,
		cfg.OAuthSuccessURL,
		cfg.OAuthFailureURL,
	)

	calendarService := calendar.NewService(eventRepo, googleProvider, oauthService, cfg.DefaultTimezone)

	deps := &Dependencies{
		Config:          cfg,
		DB:              db,
		SQLDB:           sqlDB,
		Redis:           redisClient,
		EventRepo:       eventRepo,
		CredentialRepo:  credentialRepo,
		StateStore:      stateStore,
		UserRepo:        userRepo,
		GoogleProvider:  googleProvider,
		Detector:        eventDetector,
		OAuthService:    oauthService,
		CalendarService: calendarService,
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	return deps, cleanup, nil
}
