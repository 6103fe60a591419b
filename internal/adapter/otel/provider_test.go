package otel_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	adapter "github.com/neomorfeo/dmgateway/internal/adapter/otel"
	"github.com/neomorfeo/dmgateway/internal/domain"
)

func TestSetup_StdoutExporter(t *testing.T) {
	providers, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		Exporter:       "stdout",
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	if err := providers.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestSetup_InvalidExporter(t *testing.T) {
	_, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		Environment:    "test",
		Exporter:       "invalid",
	})
	if err == nil {
		t.Fatal("expected error for invalid exporter")
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg := adapter.ConfigFromEnv(domain.EnvironmentDev)

	if cfg.ServiceName != "dmgateway" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "dmgateway")
	}
	if cfg.ServiceVersion != "0.1.0" {
		t.Errorf("ServiceVersion = %q, want %q", cfg.ServiceVersion, "0.1.0")
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "development")
	}
	if cfg.Exporter != "stdout" {
		t.Errorf("Exporter = %q, want %q", cfg.Exporter, "stdout")
	}
	if !cfg.Insecure {
		t.Error("Insecure = false, want true in development")
	}
	if cfg.SampleRatio != 1 {
		t.Errorf("SampleRatio = %v, want 1", cfg.SampleRatio)
	}
}

func TestConfigFromEnv_FollowsGatewayEnvironment(t *testing.T) {
	tests := []struct {
		gateway domain.Environment
		env     string
		ratio   float64
	}{
		{domain.EnvironmentQA, "qa", 1},
		{domain.EnvironmentProd, "production", 0.1},
		{"staging", "development", 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.gateway), func(t *testing.T) {
			cfg := adapter.ConfigFromEnv(tt.gateway)

			if cfg.Gateway != tt.gateway {
				t.Errorf("Gateway = %q, want %q", cfg.Gateway, tt.gateway)
			}
			if cfg.Environment != tt.env {
				t.Errorf("Environment = %q, want %q", cfg.Environment, tt.env)
			}
			if cfg.Insecure != (tt.env == "development") {
				t.Errorf("Insecure = %v in %s", cfg.Insecure, tt.env)
			}
			if cfg.SampleRatio != tt.ratio {
				t.Errorf("SampleRatio = %v, want %v", cfg.SampleRatio, tt.ratio)
			}
		})
	}
}

func TestConfigFromEnv_CustomValues(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "custom-service")
	t.Setenv("OTEL_SERVICE_VERSION", "1.0.0")
	t.Setenv("OTEL_ENVIRONMENT", "production")
	t.Setenv("OTEL_EXPORTER", "otlp")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg := adapter.ConfigFromEnv(domain.EnvironmentDev)

	if cfg.ServiceName != "custom-service" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "custom-service")
	}
	if cfg.ServiceVersion != "1.0.0" {
		t.Errorf("ServiceVersion = %q, want %q", cfg.ServiceVersion, "1.0.0")
	}
	if cfg.Environment != "production" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "production")
	}
	if cfg.Insecure {
		t.Error("Insecure = true, want false outside development")
	}
	if cfg.Exporter != "otlp" {
		t.Errorf("Exporter = %q, want %q", cfg.Exporter, "otlp")
	}
	if cfg.SampleRatio != 0.25 {
		t.Errorf("SampleRatio = %v, want 0.25", cfg.SampleRatio)
	}
}

func TestConfigFromEnv_IgnoresBadSampleRatio(t *testing.T) {
	for _, arg := range []string{"1.5", "-0.2", "0", "half"} {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", arg)

		if cfg := adapter.ConfigFromEnv(domain.EnvironmentProd); cfg.SampleRatio != 0.1 {
			t.Errorf("%q: SampleRatio = %v, want the production default 0.1", arg, cfg.SampleRatio)
		}
	}
}

func TestSetup_ResourceDescribesGateway(t *testing.T) {
	providers, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName: "test",
		Gateway:     domain.EnvironmentQA,
		Environment: "qa",
		Exporter:    "none",
		SampleRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer providers.Shutdown(context.Background())

	attrs := providers.Resource.Set()
	for key, want := range map[attribute.Key]string{
		"dmgateway.environment":  "qa",
		"dmgateway.id_prefix":    "0040",
		"deployment.environment": "qa",
	} {
		got, ok := attrs.Value(key)
		if !ok {
			t.Errorf("resource lacks %s", key)
			continue
		}
		if got.AsString() != want {
			t.Errorf("%s = %q, want %q", key, got.AsString(), want)
		}
	}
}

func TestSetup_UnknownGatewayEnvironment(t *testing.T) {
	_, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName: "test",
		Gateway:     "staging",
		Exporter:    "none",
	})

	var convErr *domain.EnumConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *EnumConversionError, got %v", err)
	}
}

func TestSetup_NoneExporter(t *testing.T) {
	providers, err := adapter.Setup(context.Background(), adapter.Config{
		ServiceName: "test",
		Environment: "test",
		Exporter:    "none",
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	if err := providers.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestOpenDB(t *testing.T) {
	db, err := adapter.OpenDB(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("reading journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}
