package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Listen         string            `toml:"api.listen" env:"API_LISTEN"`
	StreamEnabled  bool              `toml:"streaming.enabled" env:"STREAMING_ENABLED"`
	StreamFPS      int               `toml:"streaming.fps" env:"STREAMING_FPS"`
	ICEServers     []string          `toml:"streaming.ice_servers" env:"STREAMING_ICE_SERVERS"`
	LoggingModules map[string]string `toml:"logging.modules" env:"LOGGING_MODULES"`
}

const optionsDoc = `
[api]
listen = ":9000"

[streaming]
enabled = true
fps = 25
ice_servers = ["stun:a", "stun:b"]

[logging.modules]
sink = "debug"
`

func writeOptionsDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracknode.toml")
	if err := os.WriteFile(path, []byte(optionsDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOptionsFromDocument(t *testing.T) {
	opts := &testOptions{Config: writeOptionsDoc(t), Listen: ":8080"}

	if err := LoadOptions(opts, nil); err != nil {
		t.Fatalf("LoadOptions failed: %v", err)
	}

	if opts.Listen != ":9000" {
		t.Errorf("Listen = %q, want :9000", opts.Listen)
	}
	if !opts.StreamEnabled || opts.StreamFPS != 25 {
		t.Errorf("streaming = %v/%d, want true/25", opts.StreamEnabled, opts.StreamFPS)
	}
	if !reflect.DeepEqual(opts.ICEServers, []string{"stun:a", "stun:b"}) {
		t.Errorf("ICEServers = %v", opts.ICEServers)
	}
	if opts.LoggingModules["sink"] != "debug" {
		t.Errorf("LoggingModules = %v", opts.LoggingModules)
	}
}

func TestLoadOptionsEnvOverridesDocument(t *testing.T) {
	t.Setenv("TRACKNODE_STREAMING_FPS", "60")
	t.Setenv("TRACKNODE_LOGGING_MODULES", "api=warn, engine=debug")

	opts := &testOptions{Config: writeOptionsDoc(t)}
	if err := LoadOptions(opts, nil); err != nil {
		t.Fatalf("LoadOptions failed: %v", err)
	}

	if opts.StreamFPS != 60 {
		t.Errorf("StreamFPS = %d, want 60 from env", opts.StreamFPS)
	}
	want := map[string]string{"api": "warn", "engine": "debug"}
	if !reflect.DeepEqual(opts.LoggingModules, want) {
		t.Errorf("LoggingModules = %v, want %v", opts.LoggingModules, want)
	}
}

func TestLoadOptionsKeepsChangedFlags(t *testing.T) {
	opts := &testOptions{Config: writeOptionsDoc(t)}

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "")
	if err := cmd.Flags().Set("listen", ":7000"); err != nil {
		t.Fatal(err)
	}

	if err := LoadOptions(opts, cmd); err != nil {
		t.Fatalf("LoadOptions failed: %v", err)
	}
	if opts.Listen != ":7000" {
		t.Errorf("Listen = %q, want CLI value :7000", opts.Listen)
	}
}

func TestLoadOptionsMissingDocument(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), StreamFPS: 30}
	if err := LoadOptions(opts, nil); err != nil {
		t.Fatalf("missing document should not fail: %v", err)
	}
	if opts.StreamFPS != 30 {
		t.Errorf("StreamFPS = %d, want default 30", opts.StreamFPS)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "deep"}, "s": "shallow"},
		"r": "root",
	}

	tests := []struct {
		path string
		want any
	}{
		{"r", "root"},
		{"a.s", "shallow"},
		{"a.b.c", "deep"},
		{"missing", nil},
		{"a.missing.c", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	if got := fieldNameToFlag("APIListen"); got != "a-p-i-listen" {
		t.Errorf("fieldNameToFlag(APIListen) = %q", got)
	}
	if got := fieldNameToFlag("Headless"); got != "headless" {
		t.Errorf("fieldNameToFlag(Headless) = %q", got)
	}
}
