package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/kumarpun/fit-theory-sub000/internal/di"
	"github.com/kumarpun/fit-theory-sub000/internal/handlers"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/auth"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/config"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/idempotency"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/jobs"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/observability"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/secrets"
	platformstorage "github.com/kumarpun/fit-theory-sub000/internal/platform/storage"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories/sqlstore"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		envValues = map[string]string{}
	}

	bootLogger, err := observability.NewLogger(observability.LoggerOptions{Level: envValues["API_LOG_LEVEL"]})
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to initialise logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := bootLogger.Named("api")

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	baseLogger, err := observability.NewLogger(observability.LoggerOptions{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		logger.Fatal("failed to initialise configured logger", zap.Error(err))
	}
	_ = bootLogger.Sync()
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger = baseLogger.Named("api").With(zap.String("environment", cfg.Environment))
	ctx = observability.WithLogger(ctx, logger)

	provider, err := database.Open(ctx, cfg.Database, logger.Named("database"))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}()
	}

	infra := di.Infrastructure{
		Database: provider,
		Redis:    redisClient,
		Logger:   logger,
	}

	publisher, pubsubClient, err := newOrderEventPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise order event publisher", zap.Error(err))
	}
	if publisher != nil {
		infra.Events = publisher
		infra.Checks = append(infra.Checks, repositories.DependencyCheck{
			Name:  "pubsub",
			Check: topicCheck(pubsubClient.Topic(cfg.PubSub.OrderTopic)),
		})
		defer func() {
			publisher.Stop()
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	} else {
		logger.Info("order events disabled; no pubsub topic configured")
	}

	signer, err := newUploadSigner(cfg)
	if err != nil {
		logger.Fatal("failed to initialise upload signer", zap.Error(err))
	}
	if signer != nil {
		infra.Signer = signer
	} else {
		logger.Info("evidence uploads disabled; storage signer not configured")
	}

	container, err := di.NewContainer(ctx, cfg, infra)
	if err != nil {
		logger.Fatal("failed to build container", zap.Error(err))
	}
	defer func() {
		if err := container.Close(context.Background()); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		migrator, err := sqlstore.NewMigrator(provider.DB(),
			database.WithLocker(container.Locker),
			database.WithMigrationLogger(logger.Named("migrate")),
		)
		if err != nil {
			logger.Fatal("failed to build migrator", zap.Error(err))
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			logger.Fatal("schema migration failed", zap.Error(err))
		}
		if len(applied) > 0 {
			logger.Info("schema migrations applied", zap.Ints("versions", applied))
		}
	}

	authenticator, err := newAuthenticator(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise authenticator", zap.Error(err))
	}

	scheduler := jobs.NewScheduler(logger.Named("jobs"))
	if err := scheduler.Register(cfg.Idempotency.CleanupSchedule, jobs.NewIdempotencyCleanup(
		container.Idempotency,
		container.Locker,
		cfg.Idempotency.CleanupBatchSize,
		logger.Named("idempotency"),
	)); err != nil {
		logger.Fatal("failed to schedule idempotency cleanup", zap.Error(err))
	}
	scheduler.Start()

	svc := container.Services
	placement := idempotency.Middleware(
		container.Idempotency,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithOptionalKey(),
		idempotency.WithLogger(logger.Named("idempotency")),
	)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders,
		handlers.WithEvidenceService(svc.Evidence),
		handlers.WithPlacementMiddleware(placement),
	)
	productHandlers := handlers.NewProductHandlers(svc.Inventory)
	adminOrderHandlers := handlers.NewAdminOrderHandlers(svc.Orders, svc.Payments, svc.Export)

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	router := handlers.NewRouter(
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithAdminRoutes(func(r chi.Router) {
			adminOrderHandlers.Routes(r)
			productHandlers.AdminRoutes(r)
		}),
		handlers.WithAdminMiddlewares(authenticator.RequireAuth(auth.RoleAdmin)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("order api listening", zap.String("version", buildInfo.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop timed out", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   strings.TrimSpace(env["API_BUILD_COMMIT_SHA"]),
		Environment: cfg.Environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.PubSub.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	project := strings.TrimSpace(env["API_SECRET_PROJECT_ID"])
	if project == "" {
		project = strings.TrimSpace(env["API_FIREBASE_PROJECT_ID"])
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := strings.TrimSpace(env["API_SECRET_FALLBACK_FILE"]); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if credentials := strings.TrimSpace(env["API_FIREBASE_CREDENTIALS_FILE"]); credentials != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentials)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists config fields that must resolve to a non-empty value.
func requiredSecretNames(env map[string]string) []string {
	required := []string{"Database.DSN"}
	if strings.EqualFold(strings.TrimSpace(env["API_AUTH_MODE"]), config.AuthModeJWT) {
		required = append(required, "Auth.JWTSecret")
	}
	if strings.TrimSpace(env["API_STORAGE_EVIDENCE_BUCKET"]) != "" {
		required = append(required, "Storage.SignerKey")
	}
	return required
}

func newAuthenticator(ctx context.Context, cfg config.Config) (*auth.Authenticator, error) {
	var verifier auth.TokenVerifier
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		jwtVerifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		if err != nil {
			return nil, err
		}
		verifier = jwtVerifier
	default:
		firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
		verifier = firebaseVerifier
	}
	return auth.NewAuthenticator(verifier, auth.WithRoleClaim(cfg.Auth.RoleClaim)), nil
}

// newOrderEventPublisher returns nil values when no topic is configured.
func newOrderEventPublisher(ctx context.Context, cfg config.Config) (*jobs.PubSubOrderEventPublisher, *pubsub.Client, error) {
	topicName := strings.TrimSpace(cfg.PubSub.OrderTopic)
	if topicName == "" {
		return nil, nil, nil
	}
	if host := strings.TrimSpace(cfg.PubSub.EmulatorHost); host != "" {
		if err := os.Setenv("PUBSUB_EMULATOR_HOST", host); err != nil {
			return nil, nil, err
		}
	}
	var opts []option.ClientOption
	if credentials := strings.TrimSpace(cfg.Firebase.CredentialsFile); credentials != "" && cfg.PubSub.EmulatorHost == "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := jobs.NewPubSubOrderEventPublisher(client.Topic(topicName))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return publisher, client, nil
}

func topicCheck(topic *pubsub.Topic) func(context.Context) error {
	return func(ctx context.Context) error {
		ok, err := topic.Exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("order topic does not exist")
		}
		return nil
	}
}

// newUploadSigner returns nil when evidence uploads are not configured.
func newUploadSigner(cfg config.Config) (services.UploadSigner, error) {
	key := strings.TrimSpace(cfg.Storage.SignerKey)
	if key == "" || strings.TrimSpace(cfg.Storage.EvidenceBucket) == "" {
		return nil, nil
	}
	signer, err := platformstorage.NewServiceAccountSigner([]byte(key))
	if err != nil {
		return nil, err
	}
	client, err := platformstorage.NewClient(signer)
	if err != nil {
		return nil, err
	}
	return client, nil
}
