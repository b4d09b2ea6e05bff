package router

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/worker/cleanup"

	"app/internal/pgmq"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the HTTP handler and its backing connections. The caller owns
// the returned pool and queue DB and must close both on shutdown.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, *sql.DB, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	dsn := normalizeDSN(cfg)

	// 1. Open the pgx pool used by the repositories.
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB pool: %v", err)
		return nil, nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
		return nil, nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 2. A separate database/sql connection feeds the pgmq enqueuer.
	queueDB, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal().Msgf("Failed to open queue DB connection: %v", err)
		return nil, nil, nil, err
	}
	queueDB.SetMaxOpenConns(5)
	queueDB.SetConnMaxIdleTime(5 * time.Minute)

	// 3. Initialize S3 client
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to load S3 config: %v", err)
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Optional GCP wiring: Pub/Sub events and Secret Manager key
	// resolution when a project is configured.
	var publisher pubsub.Publisher
	speechKey, llmKey := cfg.SpeechAPIKey, cfg.LLMAPIKey
	if cfg.GCPProjectID != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
			return nil, nil, nil, err
		}
		publisher = p

		if speechKey == "" || llmKey == "" {
			secrets, err := service.NewSecretManagerService(ctx, cfg)
			if err != nil {
				logger.Fatal().Msgf("Failed to create Secret Manager client: %v", err)
				return nil, nil, nil, err
			}
			defer secrets.Close()
			if speechKey == "" {
				if speechKey, err = secrets.ResolveSecret(ctx, cfg.SpeechAPIKeySecret); err != nil {
					logger.Fatal().Msgf("Failed to resolve speech API key: %v", err)
					return nil, nil, nil, err
				}
			}
			if llmKey == "" {
				if llmKey, err = secrets.ResolveSecret(ctx, cfg.LLMAPIKeySecret); err != nil {
					logger.Fatal().Msgf("Failed to resolve LLM API key: %v", err)
					return nil, nil, nil, err
				}
			}
		}
	}

	// 6. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	audioRepo := repository.NewAudioFileRepo(pool, logger)
	transcriptRepo := repository.NewTranscriptRepo(pool)
	contentRepo := repository.NewLearningContentRepo(pool)
	usageRepo := repository.NewUsageRecordRepo(pool)
	costRepo := repository.NewCostRecordRepo(pool)

	cleanupQueue := cleanup.NewEnqueuer(pgmq.New(queueDB), cfg.CleanupQueueName)

	storageSvc := service.NewStorageService(s3Client, cfg.S3Bucket, logger)
	eventSvc := service.NewEventService(publisher, cfg.EventTopic, logger)
	usageSvc := service.NewUsageService(usageRepo, logger)
	costSvc := service.NewCostService(costRepo, logger)
	speechClient := service.NewSpeechClient(cfg.SpeechAPIBaseURL, speechKey, time.Duration(cfg.SpeechRequestTimeoutSec)*time.Second, logger)
	llmClient := service.NewLLMClient(cfg.LLMAPIBaseURL, llmKey, cfg.LLMModel, time.Duration(cfg.LLMRequestTimeoutSec)*time.Second, logger)
	identityClient := service.NewIdentityClient(cfg.IdentityAdminURL, cfg.IdentityAdminKey, logger)
	audioSvc := service.NewAudioService(audioRepo, storageSvc, cleanupQueue, logger)
	transcriptionSvc := service.NewTranscriptionService(transcriptRepo, audioRepo, usageSvc, costSvc, speechClient, storageSvc, eventSvc, logger)
	contentSvc := service.NewContentService(contentRepo, transcriptRepo, audioRepo, usageSvc, costSvc, llmClient, eventSvc, logger)
	pdfSvc := service.NewPDFService(logger)
	userSvc := service.NewUserService(userRepo, usageSvc, costSvc, audioSvc, identityClient, eventSvc, logger)

	authHandler := handler.NewAuthHandler(userSvc, cfg.JWTSecret, cfg.SessionSecret, cfg.Environment != "development", logger)
	audioHandler := handler.NewAudioHandler(audioSvc, transcriptionSvc, validate, logger)
	transcriptHandler := handler.NewTranscriptHandler(transcriptionSvc, validate, logger)
	contentHandler := handler.NewContentHandler(contentSvc, pdfSvc, validate, logger)
	usageHandler := handler.NewUsageHandler(usageSvc, costSvc, logger)
	userHandler := handler.NewUserHandler(userSvc, validate, logger)

	// 7. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, cfg.SessionSecret)

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	// Create a subrouter with the /api prefix
	apiMux := http.NewServeMux()
	authHandler.RegisterRoutes(apiMux, authMiddleware)
	audioHandler.RegisterRoutes(apiMux, authMiddleware)
	transcriptHandler.RegisterRoutes(apiMux, authMiddleware)
	contentHandler.RegisterRoutes(apiMux, authMiddleware)
	usageHandler.RegisterRoutes(apiMux, authMiddleware)
	userHandler.RegisterRoutes(apiMux, authMiddleware)

	mux.Handle("/api/", http.StripPrefix("/api", apiMux))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, queueDB, nil
}

// normalizeDSN applies environment-specific connection string adjustments.
func normalizeDSN(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	// In a development environment, ensure SSL is disabled for local testing.
	// In production, the connection string should carry its own SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}
	// Non-development environments sit behind a transaction pooler, so use
	// the simple query protocol to avoid server-side prepared statements.
	if cfg.Environment != "development" {
		if !strings.Contains(dsn, "prefer_simple_protocol") {
			separator := "&"
			if !strings.Contains(dsn, "?") {
				separator = "?"
			}
			dsn += separator + "prefer_simple_protocol=true"
		}
	}
	return dsn
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
