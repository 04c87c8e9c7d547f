package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/veritouch/fpscan/internal/config"
	"github.com/veritouch/fpscan/pkg/fpimage"
)

// SimulatedBackend produces synthetic ridge frames when no hardware is
// reachable. Each frame advances the seed so consecutive captures differ,
// but a fixed starting seed makes a run reproducible.
type SimulatedBackend struct {
	cfg  *config.Config
	seed atomic.Int64

	// FingerDelay is how many FingerPresent polls report false before the
	// simulated finger arrives. Zero means immediately present.
	FingerDelay int

	polls int
	open  bool
}

func NewSimulatedBackend(cfg *config.Config, seed int64) *SimulatedBackend {
	b := &SimulatedBackend{cfg: cfg}
	b.seed.Store(seed)
	return b
}

func (b *SimulatedBackend) Name() string { return "simulated" }

func (b *SimulatedBackend) Open(ctx context.Context) (DeviceInfo, error) {
	b.open = true
	b.polls = 0
	return DeviceInfo{
		VendorID:     b.cfg.Device.VendorID,
		ProductID:    b.cfg.Device.ProductID,
		Product:      "simulated fingerprint scanner",
		Backend:      b.Name(),
		TransferMode: "synthetic",
	}, nil
}

func (b *SimulatedBackend) Close() error {
	b.open = false
	return nil
}

func (b *SimulatedBackend) SetLED(on bool) error { return nil }

func (b *SimulatedBackend) FingerPresent(timeout time.Duration) (bool, error) {
	if !b.open {
		return false, newError(KindConnection, "scanner not open", nil)
	}
	b.polls++
	return b.polls > b.FingerDelay, nil
}

func (b *SimulatedBackend) ReadImage(ctx context.Context, size int) ([]byte, error) {
	if !b.open {
		return nil, newError(KindConnection, "scanner not open", nil)
	}
	img := fpimage.Synthesize(b.cfg.Capture.Width, b.cfg.Capture.Height, b.seed.Add(1))
	if len(img.Pixels) != size {
		return nil, newError(KindTransfer, "configured geometry does not match requested frame size", nil)
	}
	return img.Pixels, nil
}
