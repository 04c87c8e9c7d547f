package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veritouch/fpscan/internal/config"
	"github.com/veritouch/fpscan/internal/usbdev"
	"github.com/veritouch/fpscan/internal/wire"
)

// controlChunkSize is the fixed read size for control-transfer image reads.
const controlChunkSize = 512

// pollTimeout bounds a single finger-detection read so polling loops stay
// responsive.
const pollTimeout = time.Second

// RawUSBBackend drives scanners that speak vendor control transfers, pulling
// image data over a bulk IN endpoint when one exists and falling back to
// chunked control reads when it does not.
type RawUSBBackend struct {
	cfg *config.Config
	dev *usbdev.Device
}

func NewRawUSBBackend(cfg *config.Config) *RawUSBBackend {
	return &RawUSBBackend{cfg: cfg}
}

func (b *RawUSBBackend) Name() string { return "rawusb" }

func (b *RawUSBBackend) Open(ctx context.Context) (DeviceInfo, error) {
	dev, err := usbdev.Open(b.cfg.Device.VendorID, b.cfg.Device.ProductID)
	if err != nil {
		return DeviceInfo{}, mapTransportError(err, "open scanner")
	}

	// Claiming may fail on platforms where another driver holds the
	// interface; control transfers can still go through, so warn and go on.
	if err := dev.ClaimInterface(); err != nil {
		slog.Warn("interface claim failed, continuing unclaimed", slog.Any("error", err))
	}

	cmds := b.cfg.Device.Commands
	if err := dev.ControlOut(cmds.Init, 0, 0, wire.Build(cmds.Init, nil), 0); err != nil {
		dev.Close()
		return DeviceInfo{}, mapTransportError(err, "init sequence")
	}

	b.dev = dev
	return DeviceInfo{
		VendorID:     dev.VendorID(),
		ProductID:    dev.ProductID(),
		Backend:      b.Name(),
		TransferMode: dev.Mode().String(),
	}, nil
}

func (b *RawUSBBackend) Close() error {
	if b.dev != nil {
		b.dev.Close()
		b.dev = nil
	}
	return nil
}

func (b *RawUSBBackend) SetLED(on bool) error {
	if b.dev == nil {
		return newError(KindConnection, "scanner not open", nil)
	}
	var value uint16
	if on {
		value = 1
	}
	cmds := b.cfg.Device.Commands
	if err := b.dev.ControlOut(cmds.LED, value, 0, wire.Build(cmds.LED, []byte{byte(value)}), 0); err != nil {
		return mapTransportError(err, "set LED")
	}
	return nil
}

func (b *RawUSBBackend) FingerPresent(timeout time.Duration) (bool, error) {
	if b.dev == nil {
		return false, newError(KindConnection, "scanner not open", nil)
	}
	cmds := b.cfg.Device.Commands
	resp, err := b.dev.ControlIn(cmds.DetectFinger, 0, 0, 1, timeout)
	if err != nil {
		return false, mapTransportError(err, "finger detection")
	}
	return len(resp) > 0 && resp[0] != 0, nil
}

// ReadImage acquires one raw frame. Bulk mode reads chunks until the frame
// is complete, accepting a short frame on timeout when data already arrived;
// control mode reads fixed-size chunks indexed by offset. Either path
// escalates to the caller once it fails, which triggers the synthetic
// fallback at the session level.
func (b *RawUSBBackend) ReadImage(ctx context.Context, size int) ([]byte, error) {
	if b.dev == nil {
		return nil, newError(KindConnection, "scanner not open", nil)
	}

	cmds := b.cfg.Device.Commands
	if err := b.dev.ControlOut(cmds.StartCapture, 0, 0, wire.Build(cmds.StartCapture, nil), 0); err != nil {
		return nil, mapTransportError(err, "start capture")
	}

	if b.dev.Mode() == usbdev.ModeBulk {
		frame, err := b.readBulk(ctx, size)
		if err == nil {
			return frame, nil
		}
		slog.Warn("bulk image read failed, trying control transfers", slog.Any("error", err))
	}
	return b.readControl(ctx, size)
}

func (b *RawUSBBackend) readBulk(ctx context.Context, size int) ([]byte, error) {
	chunkSize := b.cfg.Capture.ChunkSize
	frame := make([]byte, 0, size)
	for len(frame) < size {
		if err := ctx.Err(); err != nil {
			return nil, newError(KindTransferTimeout, "capture cancelled", err)
		}
		want := size - len(frame)
		if want > chunkSize {
			want = chunkSize
		}
		chunk, err := b.dev.BulkRead(want, 0)
		if err != nil {
			// a timeout with data already accumulated ends the frame; the
			// plausibility check downstream decides whether to keep it
			if errors.Is(err, usbdev.ErrTimeout) && len(frame) > 0 {
				slog.Debug("bulk read timed out with partial frame", slog.Int("bytes", len(frame)))
				break
			}
			return nil, mapTransportError(err, "bulk image read")
		}
		if len(chunk) == 0 {
			return nil, newError(KindTransfer, "bulk endpoint returned no data", nil)
		}
		frame = append(frame, chunk...)
	}
	if len(frame) > size {
		frame = frame[:size]
	}
	return padFrame(frame, size), nil
}

func (b *RawUSBBackend) readControl(ctx context.Context, size int) ([]byte, error) {
	cmds := b.cfg.Device.Commands
	frame := make([]byte, 0, size)
	for offset := 0; len(frame) < size; offset++ {
		if err := ctx.Err(); err != nil {
			return nil, newError(KindTransferTimeout, "capture cancelled", err)
		}
		want := size - len(frame)
		if want > controlChunkSize {
			want = controlChunkSize
		}
		chunk, err := b.dev.ControlIn(cmds.ReadImage, uint16(offset), 0, want, 0)
		if err != nil {
			return nil, mapTransportError(err, fmt.Sprintf("control image read at chunk %d", offset))
		}
		if len(chunk) == 0 {
			return nil, newError(KindTransfer, "control read returned no data", nil)
		}
		frame = append(frame, chunk...)
	}
	if len(frame) > size {
		frame = frame[:size]
	}
	return frame, nil
}

// padFrame fills a short frame to the expected size with its last value so
// downstream geometry checks hold; implausible content is still rejected by
// validation.
func padFrame(frame []byte, size int) []byte {
	if len(frame) >= size {
		return frame
	}
	fill := byte(0xFF)
	if len(frame) > 0 {
		fill = frame[len(frame)-1]
	}
	for len(frame) < size {
		frame = append(frame, fill)
	}
	return frame
}

func mapTransportError(err error, op string) error {
	switch {
	case errors.Is(err, usbdev.ErrDeviceNotFound):
		return newError(KindDeviceNotFound, "no fingerprint scanner found", err)
	case errors.Is(err, usbdev.ErrPermissionDenied):
		return newError(KindPermissionDenied,
			"permission denied opening scanner (check udev rules or run with USB access)", err)
	case errors.Is(err, usbdev.ErrTimeout):
		return newError(KindTransferTimeout, op+" timed out", err)
	case errors.Is(err, usbdev.ErrTransfer), errors.Is(err, usbdev.ErrNoBulkEndpoint), errors.Is(err, usbdev.ErrClosed):
		return newError(KindTransfer, op+" failed", err)
	default:
		return newError(KindConnection, op+" failed", err)
	}
}
