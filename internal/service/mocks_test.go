package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pmv/internal/domain"
	"pmv/internal/service"
)

// ──────────────────────────────────────────────
// MOCK SERVER
// ──────────────────────────────────────────────

// MockServer is an in-memory service.Server.
type MockServer struct {
	mu       sync.Mutex
	vehicles map[domain.VehicleID]*domain.Vehicle

	// Counters for verification
	GetVehicleCallCount      int32
	RegisterPairingCallCount int32
	StopPairingCallCount     int32
	RegisterLocationCount    int32
	RegisterPaymentCallCount int32

	// Recorded arguments
	LastStopPairing   service.StopPairingRequest
	LastPaymentMethod byte
	LastPaymentAmount float64

	// Error injection
	GetVehicleError       error
	RegisterPairingError  error
	StopPairingError      error
	RegisterLocationError error
	RegisterPaymentError  error
}

// NewMockServer creates a new mock server.
func NewMockServer() *MockServer {
	return &MockServer{
		vehicles: make(map[domain.VehicleID]*domain.Vehicle),
	}
}

// AddVehicle registers a vehicle. The server hands out this same pointer.
func (m *MockServer) AddVehicle(v *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID()] = v
}

func (m *MockServer) GetVehicleByID(ctx context.Context, id domain.VehicleID) (*domain.Vehicle, error) {
	atomic.AddInt32(&m.GetVehicleCallCount, 1)
	if m.GetVehicleError != nil {
		return nil, m.GetVehicleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, domain.Errorf(domain.KindVehicleUnavailable, "vehicle %s not registered", id)
	}
	return v, nil
}

func (m *MockServer) CheckPMVAvail(ctx context.Context, id domain.VehicleID) error {
	v, err := m.GetVehicleByID(ctx, id)
	if err != nil {
		return err
	}
	if v.State() != domain.PMVStateAvailable {
		return domain.ErrVehicleUnavailable
	}
	return nil
}

func (m *MockServer) RegisterPairing(ctx context.Context, user domain.UserAccount, vehicle domain.VehicleID, station domain.StationID, loc domain.GeographicPoint, at time.Time) error {
	atomic.AddInt32(&m.RegisterPairingCallCount, 1)
	if m.RegisterPairingError != nil {
		return m.RegisterPairingError
	}
	return m.SetPairing(ctx, user, vehicle, station, loc, at)
}

func (m *MockServer) SetPairing(ctx context.Context, user domain.UserAccount, vehicle domain.VehicleID, station domain.StationID, loc domain.GeographicPoint, at time.Time) error {
	return nil
}

func (m *MockServer) StopPairing(ctx context.Context, req service.StopPairingRequest) error {
	atomic.AddInt32(&m.StopPairingCallCount, 1)
	m.LastStopPairing = req
	if m.StopPairingError != nil {
		return m.StopPairingError
	}
	return m.UnPairRegisterService(ctx, req.VehicleID, req.ServiceID)
}

func (m *MockServer) UnPairRegisterService(ctx context.Context, vehicle domain.VehicleID, svc domain.ServiceID) error {
	return nil
}

func (m *MockServer) RegisterLocation(ctx context.Context, vehicle domain.VehicleID, station domain.StationID) error {
	atomic.AddInt32(&m.RegisterLocationCount, 1)
	return m.RegisterLocationError
}

func (m *MockServer) RegisterPayment(ctx context.Context, svc domain.ServiceID, user domain.UserAccount, amount float64, method byte) error {
	atomic.AddInt32(&m.RegisterPaymentCallCount, 1)
	m.LastPaymentMethod = method
	m.LastPaymentAmount = amount
	return m.RegisterPaymentError
}

// ──────────────────────────────────────────────
// MOCK SMART FEATURES
// ──────────────────────────────────────────────

// MockQRDecoder returns a fixed vehicle id.
type MockQRDecoder struct {
	VehicleID domain.VehicleID
	Error     error
}

func (m *MockQRDecoder) GetVehicleID(ctx context.Context, image []byte) (domain.VehicleID, error) {
	if m.Error != nil {
		return domain.VehicleID{}, m.Error
	}
	return m.VehicleID, nil
}

// MockBTSignal records broadcast station ids.
type MockBTSignal struct {
	Broadcasts []domain.StationID
	Error      error
}

func (m *MockBTSignal) Broadcast(ctx context.Context, station domain.StationID) error {
	if m.Error != nil {
		return m.Error
	}
	m.Broadcasts = append(m.Broadcasts, station)
	return nil
}

// MockController is an in-memory service.ArduinoMicroController.
type MockController struct {
	Connected bool
	Driving   bool

	ConnectError error
	StartError   error
	StopError    error
}

func (m *MockController) SetBTConnection(ctx context.Context) error {
	if m.ConnectError != nil {
		return m.ConnectError
	}
	m.Connected = true
	return nil
}

func (m *MockController) StartDriving(ctx context.Context) error {
	if m.StartError != nil {
		return m.StartError
	}
	m.Driving = true
	return nil
}

func (m *MockController) StopDriving(ctx context.Context) error {
	if m.StopError != nil {
		return m.StopError
	}
	m.Driving = false
	return nil
}

func (m *MockController) UndoBTConnection(ctx context.Context) {
	m.Connected = false
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	Keys   []string
	Bodies [][]byte
	Error  error
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if m.Error != nil {
		return m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keys = append(m.Keys, routingKey)
	m.Bodies = append(m.Bodies, body)
	return nil
}

// PublishedKeys returns the routing keys seen so far.
func (m *MockPublisher) PublishedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Keys))
	copy(out, m.Keys)
	return out
}

// ──────────────────────────────────────────────
// CLOCK
// ──────────────────────────────────────────────

// testClock is a manually advanced clock.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
