//go:build integration

package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := startRedis(t)
	store := NewRedisRateLimitStore(client, NewMetrics())
	config := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, "writer", config)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if remaining != 4-i {
			t.Errorf("request %d: expected remaining=%d, got %d", i+1, 4-i, remaining)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, "writer", config)
	if allowed {
		t.Error("6th request should be blocked")
	}
	if remaining != 0 {
		t.Errorf("expected remaining=0 when blocked, got %d", remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("expected retryAfter between 1 and 60, got %d", retryAfter)
	}

	if allowed, _, _ := store.Allow(ctx, "other", config); !allowed {
		t.Error("independent key should be allowed")
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := startRedis(t)
	store := NewRedisRateLimitStore(client, nil)
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}
	ctx := context.Background()

	if allowed, _, _ := store.Allow(ctx, "k", config); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, "k", config); allowed {
		t.Fatal("second request should be blocked")
	}
	time.Sleep(1500 * time.Millisecond)
	if allowed, _, _ := store.Allow(ctx, "k", config); !allowed {
		t.Error("request after expiry should be allowed")
	}
}
