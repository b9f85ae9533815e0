package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	got[0] = 'x'
	again, _ := m.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("Get returned the stored slice instead of a copy")
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	m.Set(ctx, "short", []byte("1"), time.Second)
	m.Set(ctx, "forever", []byte("2"), 0)

	now = now.Add(2 * time.Second)
	if _, err := m.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Errorf("expired key err = %v, want ErrMiss", err)
	}
	if _, err := m.Get(ctx, "forever"); err != nil {
		t.Errorf("zero ttl key err = %v", err)
	}
}

func TestMemorySweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := NewMemory()
	m.now = func() time.Time { return now }

	m.Set(ctx, "a", nil, time.Second)
	m.Set(ctx, "b", nil, time.Hour)
	now = now.Add(time.Minute)

	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestMemoryDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Set(ctx, "recommendations_розы", []byte("1"), 0)
	m.Set(ctx, "recommendations_пионы", []byte("2"), 0)
	m.Set(ctx, "other", []byte("3"), 0)

	if err := m.DeleteByPrefix(ctx, "recommendations_"); err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
	if err := m.Delete(ctx, "other"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}
