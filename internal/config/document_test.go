package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleDocument = `
[tuio]
host = "10.0.0.5"
port = 3334

[image]
display = "src"
equalize = 1
fullscreen = false

[threshold]
gradient = "max"
tile = 12

[extra]
note = "kept"
`

func TestDocumentAttr(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		section, key string
		want         string
		ok           bool
	}{
		{"tuio", "host", "10.0.0.5", true},
		{"tuio", "port", "3334", true},
		{"image", "equalize", "1", true},
		{"image", "fullscreen", "false", true},
		{"threshold", "gradient", "max", true},
		{"threshold", "threads", "", false},
		{"nosuch", "key", "", false},
	}
	for _, tt := range tests {
		got, ok := doc.Attr(tt.section, tt.key)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Attr(%s, %s) = %q/%v, want %q/%v", tt.section, tt.key, got, ok, tt.want, tt.ok)
		}
	}

	if !doc.Bool("image", "equalize", false) {
		t.Error("equalize = 1 should read as true")
	}
	if doc.Int("tuio", "port", 0) != 3334 {
		t.Error("port should read as 3334")
	}
	if doc.String("camera", "config", NoPath) != NoPath {
		t.Error("absent attribute should return default")
	}
}

func TestDocumentSetNeverCreates(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	if err != nil {
		t.Fatal(err)
	}

	if doc.Set("threshold", "threads", "4") {
		t.Error("Set created a missing attribute")
	}
	if doc.Set("camera", "config", "cam.toml") {
		t.Error("Set created a missing section")
	}
	if doc.Has("threshold", "threads") || doc.Has("camera", "config") {
		t.Error("document gained attributes")
	}

	if !doc.Set("tuio", "port", "4000") {
		t.Fatal("Set on existing attribute failed")
	}
	if doc.Int("tuio", "port", 0) != 4000 {
		t.Error("port not updated")
	}
}

func TestDocumentWriteFilePreservesUnknownSections(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "doc.toml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := doc.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600 kept", fi.Mode().Perm())
	}

	back, err := ReadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.String("extra", "note", "") != "kept" {
		t.Error("unknown section lost on write")
	}
	if back.String("threshold", "gradient", "") != "max" {
		t.Error("gradient token changed on write")
	}
}

func TestReadDocumentMissing(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "absent.toml"))
	if !errors.Is(err, ErrNoDocument) {
		t.Errorf("error = %v, want ErrNoDocument", err)
	}
}
