package wire

import (
	"bytes"
	"testing"
)

func TestChecksum(t *testing.T) {
	if got := Checksum([]byte{0x01, 0x02, 0x03}); got != 0x00 {
		t.Fatalf("unexpected checksum: 0x%02X", got)
	}
	if got := Checksum(nil); got != 0x00 {
		t.Fatalf("empty checksum should be zero, got 0x%02X", got)
	}
}

func TestBuildFrame(t *testing.T) {
	f := Build(0x03, []byte{0x01})
	if f[0] != FrameStartFlag || f[len(f)-1] != FrameStopFlag {
		t.Fatalf("start/stop flags incorrect: % X", f)
	}
	// command + length + 1 data byte + checksum + two flags
	if len(f) != 6 {
		t.Fatalf("unexpected frame length: %d", len(f))
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		command byte
		data    []byte
	}{
		{"no data", 0x01, nil},
		{"short data", 0x03, []byte{0x01, 0x02}},
		{"data containing flag values", 0x05, []byte{0xE0, 0xE1, 0xE2, 0x7F}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(Build(tt.command, tt.data))
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if f.Command != tt.command {
				t.Errorf("command mismatch: got 0x%02X want 0x%02X", f.Command, tt.command)
			}
			if !bytes.Equal(f.Data, tt.data) && len(tt.data) > 0 {
				t.Errorf("data mismatch: got % X want % X", f.Data, tt.data)
			}
		})
	}
}

func TestParsePaddedReport(t *testing.T) {
	report := make([]byte, 64)
	copy(report[3:], Build(0x04, []byte{0xAA}))
	f, err := Parse(report)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if f.Command != 0x04 || len(f.Data) != 1 || f.Data[0] != 0xAA {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestParseBadChecksum(t *testing.T) {
	f := Build(0x03, []byte{0x10, 0x20})
	f[2] ^= 0xFF // corrupt a content byte
	if _, err := Parse(f); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestParseNoFrame(t *testing.T) {
	if _, err := Parse([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected error for frameless input")
	}
}

func TestParseTruncatedEscape(t *testing.T) {
	f := []byte{FrameStartFlag, 0x01, 0x00, StuffingFlag, FrameStopFlag}
	if _, err := Parse(f); err == nil {
		t.Fatal("expected error for truncated escape")
	}
}
