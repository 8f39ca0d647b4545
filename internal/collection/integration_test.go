//go:build integration

package collection

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *PostgresBackend {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("travelog"),
		tcpostgres.WithUsername("travelog"),
		tcpostgres.WithPassword("travelog"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := OpenPostgres(dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	backend := NewPostgresBackend(db)
	if err := backend.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return backend
}

func startRedis(t *testing.T) *RedisBackend {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := ctr.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	backend := NewRedisBackend(redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	}), "")
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func exerciseBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	store := Open[record](NewDB(backend, WithLogger(quietLogger())), "diaries")

	items, err := store.Load(ctx)
	if err != nil || len(items) != 0 {
		t.Fatalf("Load() on fresh backend = %v, %v; want empty, nil", items, err)
	}

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Update(ctx, func(c []record) ([]record, error) {
				return append(c, record{ID: fmt.Sprint(i), Value: i}), nil
			}); err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	items, err = store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != workers {
		t.Errorf("Load() returned %d items, want %d", len(items), workers)
	}
}

func TestPostgresBackend_Integration(t *testing.T) {
	exerciseBackend(t, startPostgres(t))
}

func TestRedisBackend_Integration(t *testing.T) {
	exerciseBackend(t, startRedis(t))
}
