package telemetry

import (
	"context"
	"testing"
)

func TestInitWithoutOTLPEndpointReturnsUsableNoopProviders(t *testing.T) {
	p, err := Init(Config{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Meter == nil {
		t.Fatal("expected a non-nil Meter even without an OTLP endpoint")
	}
	if p.Logger == nil {
		t.Fatal("expected a non-nil Logger")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNoopProvidersDiscardEverything(t *testing.T) {
	p := Noop()
	if p.Meter == nil || p.Logger == nil || p.Shutdown == nil {
		t.Fatal("expected Noop() to populate every field")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
