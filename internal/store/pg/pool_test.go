package pg

import (
	"context"
	"strings"
	"testing"
)

func TestNewPool_InvalidLifetime(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://u:p@127.0.0.1:1/db", PoolOptions{MaxConnLifetime: "forever"})
	if err == nil || !strings.Contains(err.Error(), "DB_POOL_MAX_CONN_LIFETIME") {
		t.Fatalf("expected lifetime error, got %v", err)
	}
}

func TestNewPool_InvalidDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://%zz", PoolOptions{})
	if err == nil || !strings.Contains(err.Error(), "parse DB_DSN") {
		t.Fatalf("expected parse error, got %v", err)
	}
}
