package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID": "shop-dev",
		"API_DATABASE_DSN":        "root:secret@tcp(localhost:3306)/shop?parseTime=true",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Driver != DriverMySQL {
		t.Errorf("expected mysql driver, got %s", cfg.Database.Driver)
	}
	if !cfg.Database.AutoMigrate {
		t.Errorf("expected auto migrate enabled by default")
	}
	if cfg.Auth.Mode != AuthModeFirebase {
		t.Errorf("expected firebase auth mode, got %s", cfg.Auth.Mode)
	}
	if cfg.PubSub.ProjectID != "shop-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.Orders.ReturnWindow != 24*time.Hour {
		t.Errorf("unexpected return window: %s", cfg.Orders.ReturnWindow)
	}
	if !cfg.Orders.DefaultDeliveryCharge.IsZero() {
		t.Errorf("expected zero delivery charge, got %s", cfg.Orders.DefaultDeliveryCharge)
	}
	if len(cfg.Orders.CityDeliveryCharges) != 0 {
		t.Errorf("expected no city charges, got %v", cfg.Orders.CityDeliveryCharges)
	}
	if cfg.Orders.MaxLines != defaultMaxOrderLines {
		t.Errorf("unexpected max lines: %d", cfg.Orders.MaxLines)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("expected default idempotency header, got %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.CleanupSchedule != defaultIdempotencySchedule {
		t.Errorf("unexpected cleanup schedule: %s", cfg.Idempotency.CleanupSchedule)
	}
	if cfg.Redis.Enabled() {
		t.Errorf("expected redis disabled without address")
	}
	if cfg.Environment != "local" {
		t.Errorf("expected local environment, got %s", cfg.Environment)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_READ_TIMEOUT":            "20s",
		"API_DATABASE_DRIVER":                "Postgres",
		"API_DATABASE_DSN":                   "secret://db/dsn",
		"API_DATABASE_MAX_OPEN_CONNS":        "12",
		"API_DATABASE_AUTO_MIGRATE":          "off",
		"API_AUTH_MODE":                      "jwt",
		"API_AUTH_JWT_SECRET":                "sm://auth/jwt",
		"API_REDIS_ADDR":                     "localhost:6379",
		"API_REDIS_DB":                       "2",
		"API_PUBSUB_PROJECT_ID":              "shop-events",
		"API_PUBSUB_ORDER_TOPIC":             "orders",
		"API_ORDERS_DEFAULT_DELIVERY_CHARGE": "150",
		"API_ORDERS_CITY_DELIVERY_CHARGES":   "Kathmandu=100, Pokhara=120.50, bad=abc, neg=-5",
		"API_ORDERS_RETURN_WINDOW":           "48h",
		"API_IDEMPOTENCY_TTL":                "2h",
	}
	resolver := SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
		switch ref {
		case "secret://db/dsn":
			return "postgres://shop@localhost/shop", nil
		case "secret://auth/jwt":
			return "jwt-signing-key", nil
		}
		return "", errors.New("unknown ref")
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
		WithRequiredSecrets("Database.DSN", "Auth.JWTSecret"),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN != "postgres://shop@localhost/shop" {
		t.Errorf("unexpected database config %+v", cfg.Database)
	}
	if cfg.Database.MaxOpenConns != 12 || cfg.Database.AutoMigrate {
		t.Errorf("unexpected pool overrides %+v", cfg.Database)
	}
	if cfg.Auth.JWTSecret != "jwt-signing-key" {
		t.Errorf("expected jwt secret resolved, got %q", cfg.Auth.JWTSecret)
	}
	if !cfg.Redis.Enabled() || cfg.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.PubSub.ProjectID != "shop-events" || cfg.PubSub.OrderTopic != "orders" {
		t.Errorf("unexpected pubsub config %+v", cfg.PubSub)
	}
	if !cfg.Orders.DefaultDeliveryCharge.Equal(decimal.NewFromInt(150)) {
		t.Errorf("unexpected default delivery charge %s", cfg.Orders.DefaultDeliveryCharge)
	}
	if len(cfg.Orders.CityDeliveryCharges) != 2 {
		t.Fatalf("expected two valid city charges, got %v", cfg.Orders.CityDeliveryCharges)
	}
	if !cfg.Orders.CityDeliveryCharges["pokhara"].Equal(decimal.RequireFromString("120.50")) {
		t.Errorf("unexpected pokhara charge %s", cfg.Orders.CityDeliveryCharges["pokhara"])
	}
	if cfg.Orders.ReturnWindow != 48*time.Hour {
		t.Errorf("unexpected return window %s", cfg.Orders.ReturnWindow)
	}
	if cfg.Idempotency.TTL != 2*time.Hour {
		t.Errorf("unexpected idempotency ttl %s", cfg.Idempotency.TTL)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"API_DATABASE_DRIVER":                "sqlite",
		"API_AUTH_MODE":                      "jwt",
		"API_ORDERS_DEFAULT_DELIVERY_CHARGE": "-1",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range validationErr.Fields() {
		fields[f] = true
	}
	for _, want := range []string{"Database.Driver", "Database.DSN", "Auth.JWTSecret", "Orders.DefaultDeliveryCharge"} {
		if !fields[want] {
			t.Errorf("expected %s in %v", want, validationErr.Fields())
		}
	}
}

func TestLoadSecretResolverFailure(t *testing.T) {
	env := baseEnv()
	env["API_DATABASE_DSN"] = "secret://db/dsn"
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected secret error, got %v", err)
	}
	if secretErr.Ref != "secret://db/dsn" {
		t.Fatalf("unexpected ref %q", secretErr.Ref)
	}
}

func TestLoadMissingRequiredSecret(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Storage.SignerKey"),
	)
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected missing secrets error, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "Storage.SignerKey" {
		t.Fatalf("unexpected names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || redacted[0] == "Storage.SignerKey" {
		t.Fatalf("expected redacted names, got %v", redacted)
	}
}

func TestLoadDotEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=from-dotenv\nAPI_DATABASE_DSN=dsn-from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvFile(path),
		WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "6060"}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected env map to override dotenv, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "from-dotenv" || cfg.Database.DSN != "dsn-from-file" {
		t.Errorf("expected dotenv values, got %+v %+v", cfg.Firebase, cfg.Database)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("A=file\nB=file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	values, err := EnvironmentValues(WithEnvFile(path), WithoutSystemEnv(), WithEnvMap(map[string]string{"B": "map"}))
	if err != nil {
		t.Fatalf("EnvironmentValues: %v", err)
	}
	if values["A"] != "file" || values["B"] != "map" {
		t.Fatalf("unexpected values %v", values)
	}
}
