package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pmv/internal/domain"
	"pmv/internal/redis"
	"pmv/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK VEHICLE REPOSITORY
// ──────────────────────────────────────────────

type vehicleRow struct {
	state   domain.PMVState
	loc     *domain.GeographicPoint
	station string
}

// MockVehicleRepository is a mock implementation of VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*vehicleRow

	// Counters for verification
	GetByIDCallCount     int32
	UpdateStateCallCount int32

	// Error injection
	GetByIDError     error
	UpdateStateError error
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{vehicles: make(map[string]*vehicleRow)}
}

func (m *MockVehicleRepository) Create(ctx context.Context, v *domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vehicles[v.ID().String()]; ok {
		return repository.ErrConflict
	}
	row := &vehicleRow{state: v.State()}
	if loc, ok := v.Location(); ok {
		row.loc = &loc
	}
	m.vehicles[v.ID().String()] = row
	return nil
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	vid, _ := domain.NewVehicleID(id)
	return domain.NewVehicle(vid, row.state, row.loc)
}

func (m *MockVehicleRepository) GetAll(ctx context.Context) ([]*domain.Vehicle, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.vehicles))
	for id := range m.vehicles {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	out := make([]*domain.Vehicle, 0, len(ids))
	for _, id := range ids {
		v, err := m.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *MockVehicleRepository) UpdateState(ctx context.Context, id string, state domain.PMVState) error {
	atomic.AddInt32(&m.UpdateStateCallCount, 1)
	if m.UpdateStateError != nil {
		return m.UpdateStateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.state = state
	return nil
}

func (m *MockVehicleRepository) UpdateLocation(ctx context.Context, id string, point domain.GeographicPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.loc = &point
	return nil
}

func (m *MockVehicleRepository) UpdateStation(ctx context.Context, id string, station string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.vehicles[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.station = station
	return nil
}

// State returns the stored state for test assertions.
func (m *MockVehicleRepository) State(id string) domain.PMVState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicles[id].state
}

// Station returns the stored station for test assertions.
func (m *MockVehicleRepository) Station(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vehicles[id].station
}

// ──────────────────────────────────────────────
// MOCK PAIRING REPOSITORY
// ──────────────────────────────────────────────

// MockPairingRepository is a mock implementation of PairingRepository.
type MockPairingRepository struct {
	mu       sync.RWMutex
	pairings map[string]*domain.Pairing

	CreateCallCount                int32
	CloseCallCount                 int32
	MarkServiceRegisteredCallCount int32

	CreateError                error
	MarkServiceRegisteredError error
}

// NewMockPairingRepository creates a new mock pairing repository.
func NewMockPairingRepository() *MockPairingRepository {
	return &MockPairingRepository{pairings: make(map[string]*domain.Pairing)}
}

func (m *MockPairingRepository) Create(ctx context.Context, p *domain.Pairing) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.pairings[p.ID] = &cp
	return nil
}

func (m *MockPairingRepository) GetByID(ctx context.Context, id string) (*domain.Pairing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pairings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPairingRepository) GetActiveByVehicleID(ctx context.Context, vehicleID string) (*domain.Pairing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pairings {
		if p.VehicleID == vehicleID && p.Status == domain.PairingStatusActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockPairingRepository) GetClosedByServiceID(ctx context.Context, vehicleID string, serviceID string) (*domain.Pairing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.pairings {
		if p.VehicleID == vehicleID && p.ServiceID == serviceID && p.Status == domain.PairingStatusClosed {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockPairingRepository) Close(ctx context.Context, p *domain.Pairing) error {
	atomic.AddInt32(&m.CloseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.pairings[p.ID]
	if !ok || stored.Status != domain.PairingStatusActive {
		return repository.ErrNotFound
	}
	p.Status = domain.PairingStatusClosed
	cp := *p
	m.pairings[p.ID] = &cp
	return nil
}

func (m *MockPairingRepository) MarkServiceRegistered(ctx context.Context, vehicleID string, serviceID string) error {
	atomic.AddInt32(&m.MarkServiceRegisteredCallCount, 1)
	if m.MarkServiceRegisteredError != nil {
		return m.MarkServiceRegisteredError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pairings {
		if p.VehicleID == vehicleID && p.ServiceID == serviceID && p.Status == domain.PairingStatusClosed {
			p.ServiceRegistered = true
			return nil
		}
	}
	return repository.ErrNotFound
}

// All returns every stored pairing for test assertions.
func (m *MockPairingRepository) All() []domain.Pairing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Pairing, 0, len(m.pairings))
	for _, p := range m.pairings {
		out = append(out, *p)
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.PaymentRecord

	CreateCallCount int32

	GetByKeyError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]*domain.PaymentRecord)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *domain.PaymentRecord) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.payments {
		if existing.IdempotencyKey == p.IdempotencyKey {
			return repository.ErrConflict
		}
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentRecord, error) {
	if m.GetByKeyError != nil {
		return nil, m.GetByKeyError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Status = status
	return nil
}

// ByKey returns the payment stored under key for test assertions.
func (m *MockPaymentRepository) ByKey(key string) *domain.PaymentRecord {
	p, _ := m.GetByIdempotencyKey(context.Background(), key)
	return p
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.Mutex
	locations map[string]redis.VehicleLocation

	UpdateError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]redis.VehicleLocation)}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, vehicleID string, lat, lng float64) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[vehicleID] = redis.VehicleLocation{VehicleID: vehicleID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyVehicles(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]redis.VehicleLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	center, _ := domain.NewGeographicPoint(lat, lng)
	var out []redis.VehicleLocation
	for _, l := range m.locations {
		p, _ := domain.NewGeographicPoint(l.Lat, l.Lng)
		if d := domain.Distance(center, p); d <= radiusKm {
			l.DistKm = d
			out = append(out, l)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, vehicleID)
	return nil
}

// Has reports whether the vehicle is in the geo index.
func (m *MockLocationStore) Has(vehicleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locations[vehicleID]
	return ok
}

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string

	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

func (m *MockLockStore) AcquireVehicleLock(ctx context.Context, vehicleID, owner string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[vehicleID]; held {
		return false, nil
	}
	m.locks[vehicleID] = owner
	return true, nil
}

func (m *MockLockStore) ReleaseVehicleLock(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, vehicleID)
	return nil
}

// Held reports whether the vehicle is locked.
func (m *MockLockStore) Held(vehicleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[vehicleID]
	return ok
}

// MockCacheStore is a mock implementation of CacheStoreInterface.
type MockCacheStore struct {
	mu       sync.Mutex
	vehicles map[string]redis.CachedVehicle

	GetError error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{vehicles: make(map[string]redis.CachedVehicle)}
}

func (m *MockCacheStore) GetVehicle(ctx context.Context, vehicleID string) (*redis.CachedVehicle, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[vehicleID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *MockCacheStore) SetVehicle(ctx context.Context, v *redis.CachedVehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = *v
	return nil
}

func (m *MockCacheStore) InvalidateVehicle(ctx context.Context, vehicleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vehicles, vehicleID)
	return nil
}

// Cached reports whether the vehicle is cached.
func (m *MockCacheStore) Cached(vehicleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.vehicles[vehicleID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a PaymentGateway with a scripted outcome.
type MockGateway struct {
	ChargeCallCount int32
	Decline         bool
	Error           error
}

func (m *MockGateway) Charge(ctx context.Context, method byte, amount float64) (bool, error) {
	atomic.AddInt32(&m.ChargeCallCount, 1)
	if m.Error != nil {
		return false, m.Error
	}
	return !m.Decline, nil
}

var errStoreDown = errors.New("dial tcp: connection refused")
