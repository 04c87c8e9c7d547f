// Package usbdev is the raw USB transport for fingerprint scanners. It
// enumerates devices by vendor/product ID, claims the scanner interface, and
// exposes the two transfer primitives the capture path needs: vendor control
// transfers and bulk IN reads. Different scanner families ship image data
// over one or the other, so the chosen transfer mode is discovered from the
// endpoint descriptors at open time and fixed for the life of the handle.
package usbdev

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gotmc/libusb"
)

// Vendor request direction bits (bmRequestType).
const (
	DirIn  = 0xC0 // device-to-host
	DirOut = 0x40 // host-to-device
)

// DefaultTimeout bounds a single transfer unless the caller overrides it.
const DefaultTimeout = 5 * time.Second

// TransferMode selects how image payloads are pulled from the device.
type TransferMode int

const (
	ModeControl TransferMode = iota
	ModeBulk
)

func (m TransferMode) String() string {
	if m == ModeBulk {
		return "bulk"
	}
	return "control"
}

var (
	ErrDeviceNotFound   = errors.New("usbdev: device not found")
	ErrPermissionDenied = errors.New("usbdev: permission denied opening device")
	ErrOpenFailed       = errors.New("usbdev: open failed")
	ErrTimeout          = errors.New("usbdev: transfer timed out")
	ErrTransfer         = errors.New("usbdev: transfer failed")
	ErrClosed           = errors.New("usbdev: device closed")
	ErrNoBulkEndpoint   = errors.New("usbdev: no bulk IN endpoint")
)

// Device owns one open scanner handle. It is not safe for concurrent
// transfers; the session layer serializes access.
type Device struct {
	ctx    *libusb.Context
	handle *libusb.DeviceHandle

	vendorID  uint16
	productID uint16

	ifaceNum int
	claimed  bool
	closed   bool

	bulkIn *libusb.EndpointDescriptor
	mode   TransferMode
}

// Open enumerates attached USB devices, filters by vendor ID (and product ID
// when non-zero), and opens the first match. Permission failures map to
// ErrPermissionDenied so callers can surface actionable guidance.
func Open(vendorID, productID uint16) (*Device, error) {
	ctx, err := libusb.NewContext()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	devices, err := ctx.GetDeviceList()
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: enumerate: %v", ErrOpenFailed, err)
	}

	for _, candidate := range devices {
		desc, err := candidate.GetDeviceDescriptor()
		if err != nil {
			continue
		}
		if desc.VendorID != vendorID {
			continue
		}
		if productID != 0 && desc.ProductID != productID {
			continue
		}

		handle, err := candidate.Open()
		if err != nil {
			ctx.Close()
			return nil, classifyOpenError(err)
		}

		d := &Device{
			ctx:       ctx,
			handle:    handle,
			vendorID:  desc.VendorID,
			productID: desc.ProductID,
			mode:      ModeControl,
		}
		d.discoverEndpoints(candidate)
		return d, nil
	}

	ctx.Close()
	return nil, fmt.Errorf("%w: no device with vendor 0x%04X", ErrDeviceNotFound, vendorID)
}

func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "access") || strings.Contains(msg, "permission") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrOpenFailed, err)
}

// discoverEndpoints walks the active configuration looking for a bulk IN
// endpoint. Finding one switches the handle to bulk mode; otherwise image
// reads go over vendor control transfers.
func (d *Device) discoverEndpoints(dev *libusb.Device) {
	cfg, err := dev.GetActiveConfigDescriptor()
	if err != nil {
		slog.Debug("no active config descriptor, staying in control mode", slog.Any("error", err))
		return
	}
	for _, iface := range cfg.SupportedInterfaces {
		for _, alt := range iface.InterfaceDescriptors {
			for _, ep := range alt.EndpointDescriptors {
				// Bit 7 of the endpoint address distinguishes IN endpoints.
				if ep.TransferType() == libusb.BulkTransfer && ep.EndpointAddress&0x80 != 0 {
					d.bulkIn = ep
					d.ifaceNum = int(alt.InterfaceNumber)
					d.mode = ModeBulk
					return
				}
			}
		}
	}
}

// ClaimInterface claims the scanner interface. Failure is non-fatal: vendor
// control transfers may still work without a claimed interface, so callers
// log the returned error as a warning rather than aborting.
func (d *Device) ClaimInterface() error {
	if d.closed {
		return ErrClosed
	}
	if err := d.handle.ClaimInterface(d.ifaceNum); err != nil {
		return fmt.Errorf("usbdev: claim interface %d: %w", d.ifaceNum, err)
	}
	d.claimed = true
	return nil
}

// Mode reports the transfer mode chosen at open time.
func (d *Device) Mode() TransferMode { return d.mode }

func (d *Device) VendorID() uint16  { return d.vendorID }
func (d *Device) ProductID() uint16 { return d.productID }

// ControlIn issues a vendor IN control transfer and returns up to length
// bytes. A zero timeout uses DefaultTimeout.
func (d *Device) ControlIn(request byte, value, index uint16, length int, timeout time.Duration) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	buf := make([]byte, length)
	n, err := d.handle.ControlTransfer(DirIn, request, value, index, buf, length, timeoutMs(timeout))
	if err != nil {
		return nil, classifyTransferError(err)
	}
	return buf[:n], nil
}

// ControlOut issues a vendor OUT control transfer carrying payload.
func (d *Device) ControlOut(request byte, value, index uint16, payload []byte, timeout time.Duration) error {
	if d.closed {
		return ErrClosed
	}
	_, err := d.handle.ControlTransfer(DirOut, request, value, index, payload, len(payload), timeoutMs(timeout))
	if err != nil {
		return classifyTransferError(err)
	}
	return nil
}

// BulkRead reads up to length bytes from the bulk IN endpoint.
func (d *Device) BulkRead(length int, timeout time.Duration) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.bulkIn == nil {
		return nil, ErrNoBulkEndpoint
	}
	buf, n, err := d.handle.BulkTransferIn(d.bulkIn.EndpointAddress, length, timeoutMs(timeout))
	if err != nil {
		return nil, classifyTransferError(err)
	}
	if n < len(buf) {
		buf = buf[:n]
	}
	return buf, nil
}

func classifyTransferError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout") {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransfer, err)
}

func timeoutMs(timeout time.Duration) int {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return int(timeout.Milliseconds())
}

// Close releases the interface (ignoring release errors) and closes the
// handle. It is idempotent and safe on a never-claimed handle.
func (d *Device) Close() {
	if d == nil || d.closed {
		return
	}
	d.closed = true
	if d.claimed {
		if err := d.handle.ReleaseInterface(d.ifaceNum); err != nil {
			slog.Warn("release interface failed", slog.Any("error", err))
		}
	}
	if err := d.handle.Close(); err != nil {
		slog.Warn("close handle failed", slog.Any("error", err))
	}
	d.ctx.Close()
}
