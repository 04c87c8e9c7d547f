package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karalabe/usb"

	"github.com/veritouch/fpscan/internal/config"
)

// DeviceInfo is the caller-visible description of an open scanner.
type DeviceInfo struct {
	VendorID     uint16 `json:"vendorId"`
	ProductID    uint16 `json:"productId"`
	Product      string `json:"product,omitempty"`
	Backend      string `json:"backend"`
	TransferMode string `json:"transferMode"`
}

// Backend abstracts one way of reaching scanner hardware. The session owns
// exactly one backend and serializes all calls into it; implementations do
// not need to be concurrency-safe.
type Backend interface {
	// Open connects to the device. Errors carry engine kinds.
	Open(ctx context.Context) (DeviceInfo, error)
	// Close tears the connection down; idempotent.
	Close() error
	// SetLED switches the capture illumination. Best-effort for callers.
	SetLED(on bool) error
	// FingerPresent polls the finger-detection command once.
	FingerPresent(timeout time.Duration) (bool, error)
	// ReadImage acquires one raw frame of exactly size bytes.
	ReadImage(ctx context.Context, size int) ([]byte, error)
	// Name identifies the backend variant for logs and status.
	Name() string
}

// Probe selects a backend once at startup. An explicit configuration wins;
// "auto" checks for matching hardware on the raw USB and HID buses and falls
// back to the simulated backend when neither responds.
func Probe(cfg *config.Config) Backend {
	switch cfg.Device.Backend {
	case "rawusb":
		return NewRawUSBBackend(cfg)
	case "vendorhid":
		return NewVendorHIDBackend(cfg)
	case "simulated":
		return NewSimulatedBackend(cfg, time.Now().UnixNano())
	}

	if infos, err := usb.Enumerate(cfg.Device.VendorID, 0); err == nil && len(infos) > 0 {
		hid := 0
		for _, info := range infos {
			if info.Interface >= 0 && info.UsagePage != 0 {
				hid++
			}
		}
		if hid == len(infos) {
			slog.Info("probe found HID scanner", slog.Int("devices", len(infos)))
			return NewVendorHIDBackend(cfg)
		}
		slog.Info("probe found raw USB scanner", slog.Int("devices", len(infos)))
		return NewRawUSBBackend(cfg)
	}

	slog.Warn("no scanner hardware found, using simulated backend",
		slog.String("vendor_id", fmt.Sprintf("0x%04X", cfg.Device.VendorID)))
	return NewSimulatedBackend(cfg, time.Now().UnixNano())
}
