package probe

import (
	"context"
	"testing"
)

func TestStatic(t *testing.T) {
	if err := Static(true, "").Check(context.Background()); err != nil {
		t.Fatalf("ok probe returned %v", err)
	}
	err := Static(false, "cache empty").Check(context.Background())
	if err == nil || err.Error() != "cache empty" {
		t.Fatalf("failing probe returned %v", err)
	}
	if err := Static(false, "").Check(context.Background()); err == nil || err.Error() != "unhealthy" {
		t.Fatalf("expected default reason, got %v", err)
	}
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	if err := Multi(Static(true, ""), nil, Static(true, "")).Check(ctx); err != nil {
		t.Fatalf("all-ok Multi returned %v", err)
	}
	err := Multi(Static(true, ""), Static(false, "first"), Static(false, "second")).Check(ctx)
	if err == nil || err.Error() != "first" {
		t.Fatalf("Multi should return first failure, got %v", err)
	}
}

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	ctx := context.Background()

	if err := g.Probe().Check(ctx); err != nil {
		t.Fatalf("fresh gate should pass, got %v", err)
	}

	g.Set("draining for deploy")
	if err := g.Probe().Check(ctx); err == nil || err.Error() != "draining for deploy" {
		t.Fatalf("set gate returned %v", err)
	}

	g.Clear()
	if err := g.Probe().Check(ctx); err != nil {
		t.Fatalf("cleared gate returned %v", err)
	}
}
