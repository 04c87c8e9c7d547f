package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Capture.Width != 260 || cfg.Capture.Height != 300 {
		t.Fatalf("unexpected default geometry: %dx%d", cfg.Capture.Width, cfg.Capture.Height)
	}
	if cfg.Capture.ImageSize() != 260*300 {
		t.Fatalf("unexpected image size: %d", cfg.Capture.ImageSize())
	}
	if cfg.Match.ScoreThreshold != 60 {
		t.Fatalf("unexpected score threshold: %d", cfg.Match.ScoreThreshold)
	}
	if cfg.Device.Backend != "auto" {
		t.Fatalf("unexpected backend: %q", cfg.Device.Backend)
	}
	if cfg.Device.Commands.DetectFinger != 3 {
		t.Fatalf("unexpected detect_finger code: %d", cfg.Device.Commands.DetectFinger)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fpscan.toml")
	body := `
[device]
vendor_id = 1155
backend = "simulated"

[device.commands]
detect_finger = 16

[capture]
min_quality = 55
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Device.VendorID != 1155 {
		t.Errorf("vendor_id not overridden: %d", cfg.Device.VendorID)
	}
	if cfg.Device.Commands.DetectFinger != 16 {
		t.Errorf("detect_finger not overridden: %d", cfg.Device.Commands.DetectFinger)
	}
	if cfg.Capture.MinQuality != 55 {
		t.Errorf("min_quality not overridden: %d", cfg.Capture.MinQuality)
	}
	// untouched fields keep defaults
	if cfg.Capture.Width != 260 {
		t.Errorf("width lost its default: %d", cfg.Capture.Width)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		body string
	}{
		{"negative quality", "[capture]\nmin_quality = -1\n"},
		{"zero width", "[capture]\nwidth = 0\n"},
		{"unknown backend", "[device]\nbackend = \"parallel-port\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
