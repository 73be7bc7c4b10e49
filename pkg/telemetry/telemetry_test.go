package telemetry

import (
	"bytes"
	"context"
	"testing"
)

func TestInitNone(t *testing.T) {
	shutdown, err := Init("fluxcheck-test", "v0.0.1", Config{Exporter: ExporterNone})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitStdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init("fluxcheck-test", "v0.0.1", Config{Exporter: ExporterStdout, Output: &buf})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Shutdown function should not be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitErrors(t *testing.T) {
	if _, err := Init("fluxcheck-test", "v0.0.1", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
	if _, err := Init("fluxcheck-test", "v0.0.1", Config{Exporter: ExporterOTLP}); err == nil {
		t.Fatal("expected error for missing otlp endpoint")
	}
}
