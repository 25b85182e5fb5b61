package config

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/zen-systems/switchboard/pkg/adapter"
	"github.com/zen-systems/switchboard/pkg/catalog"
	"github.com/zen-systems/switchboard/pkg/classify"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("expected built-in defaults, got path %q", cfg.Path)
	}
	if len(cfg.Backends) != len(DefaultBackends()) {
		t.Fatalf("expected %d default backends, got %d", len(DefaultBackends()), len(cfg.Backends))
	}
	if cfg.Cache.TTL != 3600 || cfg.Cache.Enabled {
		t.Fatalf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	for _, b := range cfg.Backends {
		if b.Adapter == adapter.KindOllama {
			if b.APIKeyEnv != "" {
				t.Fatalf("ollama should not need a key, got %q", b.APIKeyEnv)
			}
			continue
		}
		if b.APIKeyEnv == "" || b.BaseURLEnv == "" {
			t.Fatalf("backend %s missing env defaults: %+v", b.ID, b)
		}
	}
}

func TestLoadReadsHomeConfig(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	configDir := filepath.Join(home, ".switchboard")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte(`backends:
  - id: local
    adapter: ollama
    model: qwen2.5
  - id: off
    adapter: mock
    model: m
    weight: 0
rules:
  - pattern: "translate"
    backend: local
cache:
  enabled: true
  ttl: 60
`)
	path := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("expected path %q, got %q", path, cfg.Path)
	}
	if len(cfg.Backends) != 2 {
		t.Fatalf("expected 2 backends, got %d", len(cfg.Backends))
	}
	if w := cfg.Backends[0].EffectiveWeight(); w != DefaultWeight {
		t.Fatalf("expected unset weight to default to %d, got %d", DefaultWeight, w)
	}
	if w := cfg.Backends[1].EffectiveWeight(); w != 0 {
		t.Fatalf("expected explicit zero weight, got %d", w)
	}
	if cfg.Backends[0].BaseURLEnv != "OLLAMA_API_BASE" {
		t.Fatalf("expected ollama base env default, got %q", cfg.Backends[0].BaseURLEnv)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Backend != "local" {
		t.Fatalf("unexpected rules: %+v", cfg.Rules)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 60 {
		t.Fatalf("unexpected cache: %+v", cfg.Cache)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "switchboard.yaml")
	data := []byte(`backends:
  - id: ds
    adapter: deepseek
    model: deepseek-chat
    base_url: http://file.example
cache:
  enabled: false
  ttl: 10
  redis_url: redis://file:6379/0
log:
  level: info
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ENABLE_CACHE", "true")
	t.Setenv("CACHE_TTL", "90")
	t.Setenv("REDIS_URL", "redis://env:6379/1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SWITCHBOARD_ADDR", "127.0.0.1:9999")
	t.Setenv("DEEPSEEK_API_BASE", "http://env.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 90 || cfg.Cache.RedisURL != "redis://env:6379/1" {
		t.Fatalf("expected env cache settings, got %+v", cfg.Cache)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Log.Level)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected env addr, got %q", cfg.Server.Addr)
	}
	if cfg.Backends[0].BaseURL != "http://env.example" {
		t.Fatalf("expected env base url, got %q", cfg.Backends[0].BaseURL)
	}
}

func TestInvalidEnvValues(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearEnv(t)

	t.Setenv("ENABLE_CACHE", "sometimes")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid ENABLE_CACHE")
	}

	t.Setenv("ENABLE_CACHE", "")
	t.Setenv("CACHE_TTL", "soon")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid CACHE_TTL")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "no backends",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name: "duplicate ids",
			cfg: Config{Backends: []BackendConfig{
				{ID: "a", Adapter: "mock", Model: "m"},
				{ID: "a", Adapter: "mock", Model: "m"},
			}},
			wantErr: true,
		},
		{
			name:    "unknown adapter",
			cfg:     Config{Backends: []BackendConfig{{ID: "a", Adapter: "carrier-pigeon", Model: "m"}}},
			wantErr: true,
		},
		{
			name:    "weight out of range",
			cfg:     Config{Backends: []BackendConfig{{ID: "a", Adapter: "mock", Model: "m", Weight: weight(101)}}},
			wantErr: true,
		},
		{
			name: "rule without backend",
			cfg: Config{
				Backends: []BackendConfig{{ID: "a", Adapter: "mock", Model: "m"}},
				Rules:    []classify.Rule{{Pattern: "sql"}},
			},
			wantErr: true,
		},
		{
			name:    "minimal",
			cfg:     Config{Backends: []BackendConfig{{ID: "a", Adapter: "mock", Model: "m"}}},
			wantErr: false,
		},
		{
			name:    "gemini alias",
			cfg:     Config{Backends: []BackendConfig{{ID: "g", Adapter: "gemini", Model: "gemini-2.0-flash"}}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCatalogCredentials(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "sk-test"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cat, err := cfg.Catalog(BuildOptions{Lookup: lookup})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	want := map[string]bool{
		"openai":    true,
		"anthropic": false,
		"gemini":    false,
		"deepseek":  false,
		"ollama":    true,
	}
	for id, credentialed := range want {
		d, ok := cat.Get(id)
		if !ok {
			t.Fatalf("missing backend %s", id)
		}
		if d.Credentialed != credentialed {
			t.Fatalf("backend %s: expected credentialed=%v", id, credentialed)
		}
		if d.Adapter == nil {
			t.Fatalf("backend %s: expected an adapter", id)
		}
	}

	env["ANTHROPIC_API_KEY"] = "ak-test"
	cat.RefreshCredentials()
	if !cat.Credentialed("anthropic") {
		t.Fatalf("expected anthropic credentialed after refresh")
	}
}

func TestCatalogAppliesAliasesAndOverrides(t *testing.T) {
	cfg := &Config{
		Backends: []BackendConfig{
			{ID: "fast", Adapter: "openai", Model: "fast"},
			{ID: "off", Adapter: "mock", Model: "m", Disabled: true},
		},
		Aliases: DefaultAliases(),
	}
	applyDefaults(cfg)

	mock := adapter.NewMockAdapter()
	cat, err := cfg.Catalog(BuildOptions{
		Lookup:   func(string) (string, bool) { return "", false },
		Adapters: map[string]adapter.Adapter{"fast": mock},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	d, _ := cat.Get("fast")
	if d.Model != "gpt-4o-mini" {
		t.Fatalf("expected alias to resolve, got %q", d.Model)
	}
	if !d.Credentialed || d.Adapter != mock {
		t.Fatalf("expected injected adapter to be credentialed")
	}
	off, _ := cat.Get("off")
	if off.State != catalog.StateDisabledByOperator {
		t.Fatalf("expected disabled backend, got %s", off.State)
	}
}

func TestKeyedAdapterWithoutKey(t *testing.T) {
	a := &keyedAdapter{
		kind:   adapter.KindDeepSeek,
		keyEnv: "DEEPSEEK_API_KEY",
		lookup: func(string) (string, bool) { return "", false },
	}
	if a.Name() != "deepseek" {
		t.Fatalf("unexpected name %q", a.Name())
	}
	_, err := a.Chat(context.Background(), adapter.Request{Model: "deepseek-chat"})
	if err == nil {
		t.Fatalf("expected error without key")
	}
	if adapter.IsTransient(err) {
		t.Fatalf("missing key should not be transient")
	}
}

func TestLoadAliasesMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	if err := os.WriteFile(path, []byte("aliases:\n  fast: gpt-4.1-mini\n  tiny: qwen2.5:0.5b\n"), 0600); err != nil {
		t.Fatalf("write aliases: %v", err)
	}
	cfg := Default()
	if err := cfg.LoadAliases(path); err != nil {
		t.Fatalf("load aliases: %v", err)
	}
	if cfg.ResolveModel("fast") != "gpt-4.1-mini" {
		t.Fatalf("expected override, got %q", cfg.ResolveModel("fast"))
	}
	if cfg.ResolveModel("tiny") != "qwen2.5:0.5b" {
		t.Fatalf("expected new alias")
	}
	if cfg.ResolveModel("gpt-4o") != "gpt-4o" {
		t.Fatalf("non-alias should pass through")
	}
	names := cfg.AliasNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("alias names not sorted: %v", names)
		}
	}
}

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENABLE_CACHE", "CACHE_TTL", "REDIS_URL", "LOG_LEVEL",
		"SWITCHBOARD_LOG_LEVEL", "SWITCHBOARD_LOG_FORMAT", "SWITCHBOARD_ADDR",
		"OPENAI_API_BASE", "ANTHROPIC_API_BASE", "GEMINI_API_BASE",
		"DEEPSEEK_API_BASE", "OLLAMA_API_BASE",
	} {
		t.Setenv(k, "")
	}
}
