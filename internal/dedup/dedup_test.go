package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestDedup(t *testing.T, ttl time.Duration) (*Deduplicator, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	d, err := New("redis://"+mr.Addr(), "", ttl)
	if err != nil {
		mr.Close()
		t.Fatalf("New: %v", err)
	}
	return d, mr
}

func TestAlreadySentNewKey(t *testing.T) {
	d, mr := setupTestDedup(t, 0)
	defer mr.Close()
	defer d.Close()

	if d.AlreadySent(context.Background(), "exit_low:PAIR1") {
		t.Error("AlreadySent should return false for new key")
	}
}

func TestRecordAndAlreadySent(t *testing.T) {
	d, mr := setupTestDedup(t, 0)
	defer mr.Close()
	defer d.Close()

	ctx := context.Background()
	d.Record(ctx, "exit_low:PAIR1")

	if !d.AlreadySent(ctx, "exit_low:PAIR1") {
		t.Error("AlreadySent should return true after Record")
	}
	if !mr.Exists(keyPrefix + "exit_low:PAIR1") {
		t.Error("key should be stored under the service prefix")
	}
}

func TestRecordExpires(t *testing.T) {
	d, mr := setupTestDedup(t, time.Hour)
	defer mr.Close()
	defer d.Close()

	ctx := context.Background()
	d.Record(ctx, "exit_low:PAIR1")
	mr.FastForward(2 * time.Hour)

	if d.AlreadySent(ctx, "exit_low:PAIR1") {
		t.Error("AlreadySent should return false after the TTL elapsed")
	}
}

func TestClear(t *testing.T) {
	d, mr := setupTestDedup(t, 0)
	defer mr.Close()
	defer d.Close()

	ctx := context.Background()
	d.Record(ctx, "exit_low:PAIR1")
	d.Clear(ctx, "exit_low:PAIR1")

	if d.AlreadySent(ctx, "exit_low:PAIR1") {
		t.Error("AlreadySent should return false after Clear")
	}
}

func TestClearByPattern(t *testing.T) {
	d, mr := setupTestDedup(t, 0)
	defer mr.Close()
	defer d.Close()

	ctx := context.Background()
	d.Record(ctx, "exit_low:PAIR1")
	d.Record(ctx, "exit_low:PAIR2")
	d.Record(ctx, "other:PAIR1")

	d.ClearByPattern(ctx, "exit_low:*")

	if d.AlreadySent(ctx, "exit_low:PAIR1") || d.AlreadySent(ctx, "exit_low:PAIR2") {
		t.Error("exit_low keys should be cleared")
	}
	if !d.AlreadySent(ctx, "other:PAIR1") {
		t.Error("key other:PAIR1 should NOT be cleared")
	}
}

func TestAlreadySentFailClosed(t *testing.T) {
	d, mr := setupTestDedup(t, 0)
	defer d.Close()

	// Stop Redis to simulate failure
	mr.Close()

	if !d.AlreadySent(context.Background(), "exit_low:PAIR1") {
		t.Error("AlreadySent should return true (fail-closed) when Redis is down")
	}
	if err := d.Ping(context.Background()); err == nil {
		t.Error("Ping should fail when Redis is down")
	}
}
