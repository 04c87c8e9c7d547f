// Package hiddev enumerates and opens HID-class fingerprint scanners. Some
// scanner families expose a HID collection instead of vendor bulk endpoints;
// this is the report-level transport the vendor-SDK backend drives.
package hiddev

// Device represents an opened HID scanner capable of report I/O.
type Device interface {
	WriteOutput(reportID byte, data []byte) error
	ReadInput() ([]byte, error)
	WriteFeature(reportID byte, data []byte) error
	ReadFeature(reportID byte) ([]byte, error)
	ReportLens() (inLen, outLen, featLen int)
	Close() error
}

// Info describes an enumerated HID device.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	OpenVIDPID(vendorID, productID uint16) (Device, error)
}

// NewManager returns the usbhid-backed manager.
func NewManager() (Manager, error) {
	return &usbManager{}, nil
}
