package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kvcore/config"
)

func TestDefault(t *testing.T) {
	p := config.Default()
	if p.Variant != config.VariantMemory {
		t.Errorf("Variant = %q, want memory", p.Variant)
	}
	if p.DefaultKeyTTL != 0 || p.MaxKeyCount != 0 {
		t.Errorf("default ttl/limit = %v/%d, want unset", p.DefaultKeyTTL, p.MaxKeyCount)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	body := `{
		"variant": "sharded",
		"default_key_ttl": "90s",
		"max_key_count": 1000,
		"shards": 4,
		"append_enqueue_timeout": "50ms",
		"log": {"level": "debug"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if p.Variant != config.VariantSharded {
		t.Errorf("Variant = %q, want sharded", p.Variant)
	}
	if time.Duration(p.DefaultKeyTTL) != 90*time.Second {
		t.Errorf("DefaultKeyTTL = %v, want 90s", time.Duration(p.DefaultKeyTTL))
	}
	if p.MaxKeyCount != 1000 || p.Shards != 4 {
		t.Errorf("MaxKeyCount/Shards = %d/%d, want 1000/4", p.MaxKeyCount, p.Shards)
	}
	if time.Duration(p.AppendEnqueueTimeout) != 50*time.Millisecond {
		t.Errorf("AppendEnqueueTimeout = %v", time.Duration(p.AppendEnqueueTimeout))
	}
	// untouched fields keep their defaults
	if p.ShardReplicas != config.Default().ShardReplicas {
		t.Errorf("ShardReplicas = %d, want default", p.ShardReplicas)
	}
	if p.Log.Level != "debug" || p.Log.Format != "text" {
		t.Errorf("Log = %+v", p.Log)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{name: "bad json", body: `{`},
		{name: "bad duration", body: `{"default_key_ttl": "soon"}`},
		{name: "unknown variant", body: `{"variant": "tape"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := config.Load(path); err == nil {
				t.Errorf("Load(%s) error = nil, want error", tt.body)
			}
		})
	}

	if _, err := config.Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}
