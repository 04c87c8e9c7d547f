package hiddev

import (
	"errors"
	"sync"
)

// MockDevice is a scripted HID device for tests. Input reports and feature
// reads are served from queues; writes are recorded.
type MockDevice struct {
	mu sync.Mutex

	inputQueue   [][]byte
	featureQueue map[byte][][]byte

	OutputReports  []MockReport
	FeatureReports []MockReport

	closed bool
}

type MockReport struct {
	ID   byte
	Data []byte
}

func NewMockDevice() *MockDevice {
	return &MockDevice{featureQueue: make(map[byte][][]byte)}
}

// QueueInput appends a report to be returned by the next ReadInput call.
func (m *MockDevice) QueueInput(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputQueue = append(m.inputQueue, data)
}

// QueueFeature appends a report returned by ReadFeature for reportID.
func (m *MockDevice) QueueFeature(reportID byte, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.featureQueue[reportID] = append(m.featureQueue[reportID], data)
}

// Closed reports whether Close has been called.
func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDevice) WriteOutput(reportID byte, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("hiddev: mock device closed")
	}
	m.OutputReports = append(m.OutputReports, MockReport{ID: reportID, Data: append([]byte(nil), data...)})
	return nil
}

func (m *MockDevice) ReadInput() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("hiddev: mock device closed")
	}
	if len(m.inputQueue) == 0 {
		return nil, errors.New("hiddev: mock input queue empty")
	}
	r := m.inputQueue[0]
	m.inputQueue = m.inputQueue[1:]
	return r, nil
}

func (m *MockDevice) WriteFeature(reportID byte, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeatureReports = append(m.FeatureReports, MockReport{ID: reportID, Data: append([]byte(nil), data...)})
	return nil
}

func (m *MockDevice) ReadFeature(reportID byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("hiddev: mock device closed")
	}
	q := m.featureQueue[reportID]
	if len(q) == 0 {
		return nil, errors.New("hiddev: mock feature queue empty")
	}
	r := q[0]
	m.featureQueue[reportID] = q[1:]
	return r, nil
}

func (m *MockDevice) ReportLens() (int, int, int) { return 64, 64, 8 }

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
