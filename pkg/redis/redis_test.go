package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/quoteboard/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()

	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Host:    "127.0.0.1",
			Port:    "1",
			Enabled: true,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := New(ctx, cfg); err == nil {
		t.Error("Expected connection error for unreachable redis")
	}
}

func TestClient_PublishDisabled(t *testing.T) {
	client := disabledClient(t)

	if err := client.Publish(context.Background(), "quoteboard:quotes", map[string]float64{"PETR4": 38.5}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "test", 5, time.Second)

	allowed, remaining, err := limiter.Allow(context.Background(), "127.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != limiter.Limit() {
		t.Errorf("Expected remaining = %d, got %d", limiter.Limit(), remaining)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")
	ctx := context.Background()

	if err := cache.Set(ctx, "key", "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var result string
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		fn       func() string
		expected string
	}{
		{
			name:     "StockKey",
			fn:       func() string { return StockKey("PETR4") },
			expected: "stock:PETR4",
		},
		{
			name:     "RankingKey",
			fn:       func() string { return RankingKey("down") },
			expected: "ranking:down",
		},
		{
			name:     "QuotesChannel",
			fn:       func() string { return QuotesChannel("quoteboard") },
			expected: "quoteboard:quotes",
		},
		{
			name:     "prefixed",
			fn:       func() string { return NewCache(nil, "qb").key(StockKey("VALE3")) },
			expected: "qb:stock:VALE3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}
