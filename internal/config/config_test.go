package config

import "testing"

func TestDefaultEngineConfig(t *testing.T) {
	cfg := defaultEngineConfig()

	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.ConnectorKind != "memory" {
		t.Errorf("ConnectorKind = %q, want memory", cfg.ConnectorKind)
	}
	if cfg.EventBus.Kind != "inproc" {
		t.Errorf("EventBus.Kind = %q, want inproc", cfg.EventBus.Kind)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want level=info format=json", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject Workers < 1")
	}
}

func TestValidateRejectsLazyWithoutMetaStore(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.LazyExecution = true
	cfg.MetaStorePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject LazyExecution without MetaStorePath")
	}
}

func TestValidateRejectsUnknownConnectorKind(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.ConnectorKind = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an unknown ConnectorKind")
	}
}

func TestValidateRejectsDuckDBWithoutPath(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.ConnectorKind = "duckdb"
	cfg.DuckDBPath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject connector_kind=duckdb without duckdb_path")
	}
}

func TestValidateRejectsUnknownEventBusKind(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.EventBus.Kind = "kafka"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject an unknown event_bus.kind")
	}
}

func TestValidateRejectsNATSWithoutURL(t *testing.T) {
	cfg := defaultEngineConfig()
	cfg.EventBus.Kind = "nats"
	cfg.EventBus.NATSUrl = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject event_bus.kind=nats without nats_url")
	}
}
