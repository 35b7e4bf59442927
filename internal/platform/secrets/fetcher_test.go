package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const dsnResource = "projects/shop/secrets/db-dsn/versions/latest"

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values[dsnResource] = "mysql://remote"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("shop"), WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	for i := 0; i < 2; i++ {
		got, err := fetcher.Resolve(ctx, "secret://db/dsn")
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if got != "mysql://remote" {
			t.Fatalf("unexpected value %s", got)
		}
	}
	if calls := client.callCount(dsnResource); calls != 1 {
		t.Fatalf("expected remote fetch once, got %d", calls)
	}

	fetcher.Invalidate("sm://db/dsn")
	if _, err := fetcher.ResolveSecret(ctx, "secret://db/dsn"); err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if calls := client.callCount(dsnResource); calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d", calls)
	}
}

func TestResolveHonoursVersionAndProjectOverride(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	resource := "projects/other/secrets/jwt/versions/3"
	client.values[resource] = "pinned"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("shop"))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	got, err := fetcher.Resolve(ctx, "secret://jwt?version=3&project=other")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "pinned" {
		t.Fatalf("expected pinned, got %s", got)
	}
}

func TestResolveFallsBackWhenSecretManagerUnavailable(t *testing.T) {
	ctx := context.Background()
	fallbackPath := writeFallback(t, "# local overrides\nsecret://db/dsn=mysql://local\n")

	client := newFakeSecretClient()
	client.errors[dsnResource] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("shop"), WithFallbackFile(fallbackPath))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	got, err := fetcher.Resolve(ctx, "secret://db/dsn")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if got != "mysql://local" {
		t.Fatalf("expected fallback value, got %s", got)
	}
}

func TestResolveFailsOnNonRetryableError(t *testing.T) {
	ctx := context.Background()
	fallbackPath := writeFallback(t, "secret://db/dsn=mysql://local\n")

	client := newFakeSecretClient()
	client.errors[dsnResource] = status.Error(codes.InvalidArgument, "bad name")

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("shop"), WithFallbackFile(fallbackPath))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	if _, err := fetcher.Resolve(ctx, "secret://db/dsn"); err == nil {
		t.Fatal("expected error for invalid argument")
	}
}

func TestNewFetcherWithoutCredentialsUsesFallback(t *testing.T) {
	ctx := context.Background()
	originalFactory := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { secretManagerClientFactory = originalFactory })

	fallbackPath := writeFallback(t, "secret://auth/jwt=local-jwt\n")
	fetcher, err := NewFetcher(ctx, WithProject("shop"), WithFallbackFile(fallbackPath))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.Resolve(ctx, "secret://auth/jwt")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if value != "local-jwt" {
		t.Fatalf("expected local secret, got %s", value)
	}
}

func TestResolveRejectsInvalidReferences(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithFallbackFile(""))
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	for _, ref := range []string{"", "https://example.com/x", "secret://"} {
		if _, err := fetcher.Resolve(context.Background(), ref); err == nil {
			t.Errorf("expected error for %q", ref)
		}
	}
}

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing fallback file: %v", err)
	}
	return path
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	f.counter[name]++
	if err, ok := f.errors[name]; ok && err != nil {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
