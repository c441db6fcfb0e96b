package config

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DELIVERY_FEE_CENTS", "MAX_SPLIT_BILLS", "CURRENCY", "EVENTS_DRIVER", "KAFKA_BROKERS", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.DeliveryFeeCents != 0 {
		t.Fatalf("expected zero delivery fee, got %d", cfg.DeliveryFeeCents)
	}
	if cfg.MaxSplitBills != 3 {
		t.Fatalf("expected 3 split bills, got %d", cfg.MaxSplitBills)
	}
	if cfg.Currency != "IDR" || cfg.EventsDriver != "none" || cfg.SalesTopic != "pos.sales" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("DELIVERY_FEE_CENTS", "-10")
	t.Setenv("MAX_SPLIT_BILLS", "zero")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg := Load()
	if cfg.DeliveryFeeCents != 0 || cfg.MaxSplitBills != 3 {
		t.Fatalf("expected fallbacks, got fee=%d splits=%d", cfg.DeliveryFeeCents, cfg.MaxSplitBills)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestValidateRequiresBrokerSettings(t *testing.T) {
	cfg := Config{Currency: "IDR", Log: LoggerConfig{Format: "json"}, EventsDriver: "rabbitmq"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing AMQP_URL to be rejected")
	}
	cfg.EventsDriver = "kafka"
	cfg.KafkaBrokers = []string{"localhost:9092"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected kafka config to pass, got %v", err)
	}
	cfg.EventsDriver = "smtp"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown driver to be rejected")
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggerConfig{Level: "debug", Format: "json"}, &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	logger.Info().Str("component", "test").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "hello" || line["service"] != "rasapos" {
		t.Fatalf("unexpected log line %v", line)
	}
}
