package speech

import (
	"sync"
	"time"
)

// LevelCall records one ProcessLevel invocation.
type LevelCall struct {
	LevelDb  float64
	HasAudio bool
}

// MockSource is a mock implementation of ActivitySource for testing. Tests
// drive activity transitions directly with EmitActivity instead of feeding
// levels.
type MockSource struct {
	mu sync.Mutex

	onChange func(active bool)
	active   bool

	// LevelCalls records all calls to ProcessLevel for verification.
	LevelCalls []LevelCall

	// StartCalls and StopCalls count lifecycle invocations.
	StartCalls int
	StopCalls  int

	// Updates records all config updates.
	Updates []ConfigUpdate

	// DestroyCalled tracks if Destroy was called.
	DestroyCalled bool
}

// NewMockSource creates a MockSource with no activity.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// EmitActivity sets the activity state and fires the observer on a real
// transition, mirroring the detector's exactly-once contract.
func (m *MockSource) EmitActivity(active bool) {
	m.mu.Lock()
	changed := m.active != active
	m.active = active
	fire := m.onChange
	m.mu.Unlock()

	if changed && fire != nil {
		fire(active)
	}
}

// ProcessLevel implements ActivitySource.
func (m *MockSource) ProcessLevel(levelDb float64, hasAudio bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LevelCalls = append(m.LevelCalls, LevelCall{LevelDb: levelDb, HasAudio: hasAudio})
}

// SetOnActivityChange implements ActivitySource.
func (m *MockSource) SetOnActivityChange(fn func(active bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Start implements ActivitySource.
func (m *MockSource) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartCalls++
}

// Stop implements ActivitySource.
func (m *MockSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StopCalls++
}

// IsActive implements ActivitySource.
func (m *MockSource) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// UpdateConfig implements ActivitySource.
func (m *MockSource) UpdateConfig(u ConfigUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, u)
}

// Destroy implements ActivitySource.
func (m *MockSource) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DestroyCalled = true
	m.onChange = nil
}

// Ensure MockSource implements ActivitySource at compile time.
var _ ActivitySource = (*MockSource)(nil)
