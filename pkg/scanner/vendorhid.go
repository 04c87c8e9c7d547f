package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/veritouch/fpscan/internal/config"
	"github.com/veritouch/fpscan/internal/hiddev"
	"github.com/veritouch/fpscan/internal/wire"
)

// VendorHIDBackend drives scanners that expose a HID collection: commands go
// out as framed output reports, finger state comes back as a feature report,
// and image data streams through input reports.
type VendorHIDBackend struct {
	cfg *config.Config
	mgr hiddev.Manager
	dev hiddev.Device
}

func NewVendorHIDBackend(cfg *config.Config) *VendorHIDBackend {
	return &VendorHIDBackend{cfg: cfg}
}

// NewVendorHIDBackendWithManager injects a device manager; tests use it with
// the hiddev mock.
func NewVendorHIDBackendWithManager(cfg *config.Config, mgr hiddev.Manager) *VendorHIDBackend {
	return &VendorHIDBackend{cfg: cfg, mgr: mgr}
}

func (b *VendorHIDBackend) Name() string { return "vendorhid" }

func (b *VendorHIDBackend) Open(ctx context.Context) (DeviceInfo, error) {
	if b.mgr == nil {
		mgr, err := hiddev.NewManager()
		if err != nil {
			return DeviceInfo{}, newError(KindConnection, "init HID manager", err)
		}
		b.mgr = mgr
	}

	dev, err := b.mgr.OpenVIDPID(b.cfg.Device.VendorID, b.cfg.Device.ProductID)
	if err != nil {
		return DeviceInfo{}, newError(KindDeviceNotFound, "no HID scanner found", err)
	}
	b.dev = dev

	cmds := b.cfg.Device.Commands
	if err := b.writeCommand(cmds.Init, nil); err != nil {
		dev.Close()
		b.dev = nil
		return DeviceInfo{}, err
	}

	return DeviceInfo{
		VendorID:     b.cfg.Device.VendorID,
		ProductID:    b.cfg.Device.ProductID,
		Backend:      b.Name(),
		TransferMode: "hid",
	}, nil
}

func (b *VendorHIDBackend) Close() error {
	if b.dev == nil {
		return nil
	}
	err := b.dev.Close()
	b.dev = nil
	return err
}

func (b *VendorHIDBackend) writeCommand(command byte, data []byte) error {
	if b.dev == nil {
		return newError(KindConnection, "scanner not open", nil)
	}
	report := wire.Build(command, data)
	if _, outLen, _ := b.dev.ReportLens(); outLen > 0 && len(report) > outLen {
		return newError(KindTransfer, "command frame exceeds output report length", nil)
	}
	if err := b.dev.WriteOutput(b.cfg.Device.ReportID, report); err != nil {
		return newError(KindTransfer, "write command report", err)
	}
	return nil
}

func (b *VendorHIDBackend) SetLED(on bool) error {
	v := byte(0)
	if on {
		v = 1
	}
	return b.writeCommand(b.cfg.Device.Commands.LED, []byte{v})
}

func (b *VendorHIDBackend) FingerPresent(timeout time.Duration) (bool, error) {
	if b.dev == nil {
		return false, newError(KindConnection, "scanner not open", nil)
	}
	report, err := b.dev.ReadFeature(b.cfg.Device.Commands.DetectFinger)
	if err != nil {
		return false, newError(KindTransfer, "read finger state", err)
	}
	frame, err := wire.Parse(report)
	if err != nil {
		// some firmwares return a bare state byte instead of a frame
		slog.Debug("unframed finger report", slog.Any("error", err))
		return len(report) > 0 && report[0] != 0, nil
	}
	return len(frame.Data) > 0 && frame.Data[0] != 0, nil
}

func (b *VendorHIDBackend) ReadImage(ctx context.Context, size int) ([]byte, error) {
	if b.dev == nil {
		return nil, newError(KindConnection, "scanner not open", nil)
	}
	if err := b.writeCommand(b.cfg.Device.Commands.StartCapture, nil); err != nil {
		return nil, err
	}

	frame := make([]byte, 0, size)
	for len(frame) < size {
		if err := ctx.Err(); err != nil {
			return nil, newError(KindTransferTimeout, "capture cancelled", err)
		}
		report, err := b.dev.ReadInput()
		if err != nil {
			return nil, newError(KindTransfer, "read image report", err)
		}
		if len(report) == 0 {
			return nil, newError(KindTransfer, "empty image report", nil)
		}
		if want := size - len(frame); len(report) > want {
			report = report[:want]
		}
		frame = append(frame, report...)
	}
	return frame, nil
}
