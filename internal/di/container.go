package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/config"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/database"
	"github.com/kumarpun/fit-theory-sub000/internal/platform/idempotency"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories"
	"github.com/kumarpun/fit-theory-sub000/internal/repositories/sqlstore"
	"github.com/kumarpun/fit-theory-sub000/internal/services"
)

const (
	lockPrefix        = "locks:"
	idempotencyPrefix = "idempotency:"
)

// Infrastructure carries the clients opened by the binary. Only Database is required.
type Infrastructure struct {
	Database *database.Provider
	Redis    redis.UniversalClient
	Events   services.OrderEventPublisher
	Signer   services.UploadSigner
	Checks   []repositories.DependencyCheck
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Inventory services.InventoryService
	Orders    services.OrderService
	Payments  services.PaymentService
	Export    services.OrderExportService
	Evidence  services.EvidenceService
	System    services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Idempotency  idempotency.Store
	Locker       database.Locker
}

// NewContainer constructs the runtime dependencies over the database in infra.
func NewContainer(ctx context.Context, cfg config.Config, infra Infrastructure) (*Container, error) {
	if infra.Database == nil {
		return nil, errors.New("di: database provider is required")
	}

	health, err := repositories.NewDependencyHealthRepository(dependencyChecks(infra))
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}

	reg, err := sqlstore.NewRegistry(infra.Database, health)
	if err != nil {
		return nil, err
	}

	return newContainer(ctx, cfg, reg, infra)
}

func newContainer(_ context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("di: repositories registry is required")
	}
	if infra.Logger == nil {
		infra.Logger = zap.NewNop()
	}
	if infra.Clock == nil {
		infra.Clock = time.Now
	}

	svc, err := buildServices(cfg, reg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		Idempotency:  newIdempotencyStore(infra),
		Locker:       newLocker(infra),
	}, nil
}

// Close releases the repository connection pool.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, infra Infrastructure) (Services, error) {
	var svc Services

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products:   reg.Products(),
		UnitOfWork: reg,
		Clock:      infra.Clock,
		Logger:     serviceLogger(infra.Logger, "inventory"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:          reg.Orders(),
		Inventory:       inventorySvc,
		UnitOfWork:      reg,
		DeliveryCharges: services.NewDeliveryCharges(cfg.Orders.DefaultDeliveryCharge, cfg.Orders.CityDeliveryCharges),
		ReturnWindow:    cfg.Orders.ReturnWindow,
		MaxLines:        cfg.Orders.MaxLines,
		Clock:           infra.Clock,
		Events:          infra.Events,
		Logger:          serviceLogger(infra.Logger, "orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders: reg.Orders(),
		Clock:  infra.Clock,
		Events: infra.Events,
		Logger: serviceLogger(infra.Logger, "payments"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	svc.Payments = paymentSvc

	exportSvc, err := services.NewOrderExportService(services.OrderExportServiceDeps{
		Orders: orderSvc,
		Logger: serviceLogger(infra.Logger, "export"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build export service: %w", err)
	}
	svc.Export = exportSvc

	svc.Evidence = services.NewEvidenceService(services.EvidenceServiceDeps{
		Signer:        infra.Signer,
		Bucket:        cfg.Storage.EvidenceBucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		URLTTL:        cfg.Storage.UploadURLTTL,
		Logger:        serviceLogger(infra.Logger, "evidence"),
	})

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            infra.Clock,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

// dependencyChecks probes the database and, when configured, Redis. Extra checks from infra are
// appended as given.
func dependencyChecks(infra Infrastructure) []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{{
		Name:  "database",
		Check: infra.Database.Ping,
	}}
	if infra.Redis != nil {
		client := infra.Redis
		checks = append(checks, repositories.DependencyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	return append(checks, infra.Checks...)
}

// newIdempotencyStore prefers Redis, then the relational store, then process memory.
func newIdempotencyStore(infra Infrastructure) idempotency.Store {
	switch {
	case infra.Redis != nil:
		return idempotency.NewRedisStore(infra.Redis, idempotencyPrefix)
	case infra.Database != nil && infra.Database.DB() != nil:
		return idempotency.NewGormStore(infra.Database.DB())
	default:
		return idempotency.NewMemoryStore()
	}
}

func newLocker(infra Infrastructure) database.Locker {
	if infra.Redis == nil {
		return database.NoopLocker{}
	}
	return database.NewRedisLocker(redislock.New(infra.Redis), lockPrefix)
}

// serviceLogger adapts zap to the event logger signature the services accept.
func serviceLogger(base *zap.Logger, name string) func(context.Context, string, map[string]any) {
	logger := base.Named(name)
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info(name+" event", zFields...)
	}
}
