package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_InvalidDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Dimensions = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive dimensions")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Embedding.MaxTextLen != 8192 {
		t.Errorf("expected MaxTextLen=8192, got %d", cfg.Embedding.MaxTextLen)
	}
	if cfg.Embedding.CacheTTLHour != 24 {
		t.Errorf("expected CacheTTLHour=24, got %d", cfg.Embedding.CacheTTLHour)
	}
	if cfg.Search.ConfigName != "default" {
		t.Errorf("expected ConfigName=default, got %q", cfg.Search.ConfigName)
	}
	if cfg.Search.QueryTimeoutMs != 2000 {
		t.Errorf("expected QueryTimeoutMs=2000, got %d", cfg.Search.QueryTimeoutMs)
	}
	if cfg.Search.VectorSharePct != 70 {
		t.Errorf("expected VectorSharePct=70, got %d", cfg.Search.VectorSharePct)
	}
	if cfg.Search.HNSWM != 32 {
		t.Errorf("expected HNSWM=32, got %d", cfg.Search.HNSWM)
	}
	if cfg.Search.HNSWEFConstruct != 400 {
		t.Errorf("expected HNSWEFConstruct=400, got %d", cfg.Search.HNSWEFConstruct)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Search:   SearchConfig{ConfigName: "tuned", QueryTimeoutMs: 500, VectorSharePct: 50, HNSWM: 16},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Search.ConfigName != "tuned" {
		t.Errorf("expected ConfigName=tuned, got %q", cfg.Search.ConfigName)
	}
	if cfg.Search.QueryTimeoutMs != 500 {
		t.Errorf("expected QueryTimeoutMs=500, got %d", cfg.Search.QueryTimeoutMs)
	}
	if cfg.Search.VectorSharePct != 50 {
		t.Errorf("expected VectorSharePct=50, got %d", cfg.Search.VectorSharePct)
	}
	if cfg.Search.HNSWM != 16 {
		t.Errorf("expected HNSWM=16, got %d", cfg.Search.HNSWM)
	}
}

func TestApplyDefaults_OutOfRangeShareFallsBack(t *testing.T) {
	cfg := Config{Search: SearchConfig{VectorSharePct: 100}}
	cfg.ApplyDefaults()

	if cfg.Search.VectorSharePct != 70 {
		t.Errorf("expected VectorSharePct=70, got %d", cfg.Search.VectorSharePct)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MATDEX_TEST_SECRET", "s3cret")

	in := []byte("password: ${MATDEX_TEST_SECRET}\nfallback: ${MATDEX_TEST_UNSET:-def}\nempty: ${MATDEX_TEST_UNSET}")
	out := string(expandEnvVars(in))

	want := "password: s3cret\nfallback: def\nempty: "
	if out != want {
		t.Errorf("expanded config:\ngot:  %q\nwant: %q", out, want)
	}
}
