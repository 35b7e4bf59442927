package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/kumarpun/fit-theory-sub000/internal/platform/textutil"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 30 * time.Second
	defaultShutdownTimeout      = 15 * time.Second
	defaultEnvironment          = "local"
	defaultLogLevel             = "info"
	defaultLogMaxSizeMB         = 64
	defaultLogMaxBackups        = 7
	defaultLogMaxAgeDays        = 7
	defaultDatabaseDriver       = DriverMySQL
	defaultMaxOpenConns         = 50
	defaultMaxIdleConns         = 25
	defaultConnMaxLifetime      = 5 * time.Minute
	defaultConnMaxIdleTime      = time.Minute
	defaultSlowQueryThreshold   = time.Second
	defaultAuthMode             = AuthModeFirebase
	defaultJWTRoleClaim         = "role"
	defaultReturnWindow         = 24 * time.Hour
	defaultMaxOrderLines        = 50
	defaultUploadURLTTL         = 15 * time.Minute
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencySchedule  = "@every 1h"
	defaultIdempotencyBatchSize = 200
)

// Database drivers understood by the database provider.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Authentication modes for customer and admin tokens.
const (
	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Logging     LoggingConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Firebase    FirebaseConfig
	Redis       RedisConfig
	PubSub      PubSubConfig
	Storage     StorageConfig
	Orders      OrdersConfig
	Idempotency IdempotencyConfig
	Environment string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig controls log level and optional rotated file output.
type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DatabaseConfig describes the relational store connection.
type DatabaseConfig struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	SlowQueryThreshold time.Duration
	AutoMigrate        bool
}

// AuthConfig selects how bearer tokens are verified.
type AuthConfig struct {
	Mode      string
	JWTSecret string
	JWTIssuer string
	RoleClaim string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// RedisConfig configures the optional Redis connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was supplied.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// PubSubConfig configures order event publication.
type PubSubConfig struct {
	ProjectID    string
	OrderTopic   string
	EmulatorHost string
}

// StorageConfig configures evidence uploads.
type StorageConfig struct {
	EvidenceBucket string
	PublicBaseURL  string
	SignerKey      string
	UploadURLTTL   time.Duration
}

// OrdersConfig holds order placement and lifecycle parameters.
type OrdersConfig struct {
	DefaultDeliveryCharge decimal.Decimal
	CityDeliveryCharges   map[string]decimal.Decimal
	ReturnWindow          time.Duration
	MaxLines              int
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupSchedule  string
	CleanupBatchSize int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to empty values.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns hashed secret identifiers that are safe to log.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks config fields (e.g. "Database.DSN") that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// EnvironmentValues returns the merged environment (dotenv < OS env < explicit map) so callers can
// configure dependencies needed before Load, such as the secret fetcher.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[key] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "API_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:  durationWithDefault(lookup, "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Logging: LoggingConfig{
			Level:      strings.ToLower(stringWithDefault(lookup, "API_LOG_LEVEL", defaultLogLevel)),
			File:       stringWithDefault(lookup, "API_LOG_FILE", ""),
			MaxSizeMB:  intWithDefault(lookup, "API_LOG_MAX_SIZE_MB", defaultLogMaxSizeMB),
			MaxBackups: intWithDefault(lookup, "API_LOG_MAX_BACKUPS", defaultLogMaxBackups),
			MaxAgeDays: intWithDefault(lookup, "API_LOG_MAX_AGE_DAYS", defaultLogMaxAgeDays),
		},
		Database: DatabaseConfig{
			Driver:             strings.ToLower(stringWithDefault(lookup, "API_DATABASE_DRIVER", defaultDatabaseDriver)),
			DSN:                stringWithDefault(lookup, "API_DATABASE_DSN", ""),
			MaxOpenConns:       intWithDefault(lookup, "API_DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
			MaxIdleConns:       intWithDefault(lookup, "API_DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
			ConnMaxLifetime:    durationWithDefault(lookup, "API_DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
			ConnMaxIdleTime:    durationWithDefault(lookup, "API_DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
			SlowQueryThreshold: durationWithDefault(lookup, "API_DATABASE_SLOW_QUERY_THRESHOLD", defaultSlowQueryThreshold),
			AutoMigrate:        boolWithDefault(lookup, "API_DATABASE_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			Mode:      strings.ToLower(stringWithDefault(lookup, "API_AUTH_MODE", defaultAuthMode)),
			JWTSecret: stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
			JWTIssuer: stringWithDefault(lookup, "API_AUTH_JWT_ISSUER", ""),
			RoleClaim: stringWithDefault(lookup, "API_AUTH_ROLE_CLAIM", defaultJWTRoleClaim),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "API_REDIS_DB", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:    stringWithDefault(lookup, "API_PUBSUB_PROJECT_ID", ""),
			OrderTopic:   stringWithDefault(lookup, "API_PUBSUB_ORDER_TOPIC", ""),
			EmulatorHost: stringWithDefault(lookup, "API_PUBSUB_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			EvidenceBucket: stringWithDefault(lookup, "API_STORAGE_EVIDENCE_BUCKET", ""),
			PublicBaseURL:  stringWithDefault(lookup, "API_STORAGE_PUBLIC_BASE_URL", "https://storage.googleapis.com"),
			SignerKey:      stringWithDefault(lookup, "API_STORAGE_SIGNER_KEY", ""),
			UploadURLTTL:   durationWithDefault(lookup, "API_STORAGE_UPLOAD_URL_TTL", defaultUploadURLTTL),
		},
		Orders: OrdersConfig{
			DefaultDeliveryCharge: decimalWithDefault(lookup, "API_ORDERS_DEFAULT_DELIVERY_CHARGE", decimal.Zero),
			CityDeliveryCharges:   decimalMap(lookup, "API_ORDERS_CITY_DELIVERY_CHARGES"),
			ReturnWindow:          durationWithDefault(lookup, "API_ORDERS_RETURN_WINDOW", defaultReturnWindow),
			MaxLines:              intWithDefault(lookup, "API_ORDERS_MAX_LINES", defaultMaxOrderLines),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupSchedule:  stringWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_SCHEDULE", defaultIdempotencySchedule),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	if cfg.PubSub.ProjectID == "" {
		cfg.PubSub.ProjectID = cfg.Firebase.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Database.DSN", &cfg.Database.DSN},
		{"Auth.JWTSecret", &cfg.Auth.JWTSecret},
		{"Redis.Password", &cfg.Redis.Password},
		{"Storage.SignerKey", &cfg.Storage.SignerKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		}),
	}
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	switch cfg.Database.Driver {
	case DriverMySQL, DriverPostgres:
	default:
		missing = append(missing, "Database.Driver")
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		missing = append(missing, "Database.DSN")
	}
	switch cfg.Auth.Mode {
	case AuthModeFirebase:
		if cfg.Firebase.ProjectID == "" {
			missing = append(missing, "Firebase.ProjectID")
		}
	case AuthModeJWT:
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			missing = append(missing, "Auth.JWTSecret")
		}
	default:
		missing = append(missing, "Auth.Mode")
	}
	if cfg.PubSub.OrderTopic != "" && cfg.PubSub.ProjectID == "" {
		missing = append(missing, "PubSub.ProjectID")
	}
	if cfg.Orders.DefaultDeliveryCharge.IsNegative() {
		missing = append(missing, "Orders.DefaultDeliveryCharge")
	}
	if cfg.Orders.ReturnWindow <= 0 {
		missing = append(missing, "Orders.ReturnWindow")
	}
	if cfg.Orders.MaxLines <= 0 {
		missing = append(missing, "Orders.MaxLines")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	seen := make(map[string]struct{})
	var missing []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := cast.ToDurationE(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := cast.ToIntE(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
		if parsed, err := cast.ToBoolE(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func decimalWithDefault(lookup func(string) (string, bool), key string, fallback decimal.Decimal) decimal.Decimal {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := decimal.NewFromString(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func decimalMap(lookup func(string) (string, bool), key string) map[string]decimal.Decimal {
	raw, _ := lookup(key)
	pairs := textutil.ParseKeyValues(raw)
	out := make(map[string]decimal.Decimal, len(pairs))
	for city, amount := range pairs {
		parsed, err := decimal.NewFromString(amount)
		if err != nil || parsed.IsNegative() {
			continue
		}
		out[city] = parsed
	}
	return out
}
