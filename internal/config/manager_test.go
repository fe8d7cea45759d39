package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const sampleYAML = `
jellyfin:
  base_url: "http://media:8096"
  api_key: "abc"
  user_id: "u1"
telegram:
  token: "123:tok"
logging:
  level: "info"
  console: true
  file:
    enabled: false
    path: ""
  telegram:
    enabled: false
    thread_id: 0
    min_level: ""
    rate_per_sec: 0
webhook:
  enabled: true
  addr: ":8097"
poller:
  enabled: true
  schedule: "@every 5m"
  limit: 25
engine:
  window: "90s"
  notify:
    movies: true
    episodes: false
routing:
  default: "-100555"
  mapping:
    vf-tv: "-100777:3"
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.yaml", sampleYAML))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Jellyfin.BaseURL != "http://media:8096" {
		t.Fatalf("jellyfin.base_url = %q", cfg.Jellyfin.BaseURL)
	}
	if cfg.Engine.Window != "90s" {
		t.Fatalf("engine.window = %q", cfg.Engine.Window)
	}
	if cfg.Engine.Notify.Episodes == nil || *cfg.Engine.Notify.Episodes {
		t.Fatalf("engine.notify.episodes not parsed: %+v", cfg.Engine.Notify)
	}
	if cfg.Engine.Notify.Series != nil {
		t.Fatalf("omitted toggle should stay nil")
	}
	if cfg.Routing.Mapping["vf-tv"] != "-100777:3" {
		t.Fatalf("routing.mapping = %+v", cfg.Routing.Mapping)
	}
	if !cfg.Poller.Enabled || cfg.Poller.Limit != 25 {
		t.Fatalf("poller = %+v", cfg.Poller)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.json",
		`{"jellyfin":{"base_url":"http://x","api_key":"k"},"telegram":{"token":"t"},
		  "logging":{"level":"debug","console":true,"file":{"enabled":false,"path":""},
		  "telegram":{"enabled":false,"thread_id":0,"min_level":"","rate_per_sec":0}},
		  "webhook":{"enabled":true},"engine":{"notify":{}},"routing":{"default":"1"}}`))
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.yaml", sampleYAML+"\nsurprise: true\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	t.Parallel()
	m := NewConfigManager(writeConfig(t, "config.json",
		`{"jellyfin":{"base_url":"http://x","api_key":"k"},"telegram":{"token":"t"},
		  "logging":{"level":"","console":false,"file":{"enabled":false,"path":""},
		  "telegram":{"enabled":false,"thread_id":0,"min_level":"","rate_per_sec":0}},
		  "webhook":{"enabled":false},"engine":{"notify":{}},"routing":{"default":""}} {}`))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing JSON accepted")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Engine: EngineConfig{Window: "60s"}}
	newCfg := &Config{Engine: EngineConfig{Window: "120s"}, Routing: RoutingConfig{Default: "5"}}

	sections, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := map[string]bool{"engine": true, "routing": true}
	for _, s := range sections {
		if !want[s] {
			t.Fatalf("unexpected section %q in %v", s, sections)
		}
		delete(want, s)
	}
	if len(want) != 0 {
		t.Fatalf("missing sections: %v (got %v)", want, sections)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", " 90s "); err != nil || d.Seconds() != 90 {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty: got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatal("garbage duration accepted")
	}
}
