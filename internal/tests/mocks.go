package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"zibana/internal/domain"
	"zibana/internal/events"
	"zibana/internal/geo"
	"zibana/internal/lifecycle"
	"zibana/internal/redis"
	"zibana/internal/repository"
	"zibana/internal/routing"
	"zibana/internal/ws"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	CreateCallCount       int32
	UpdateStatusCallCount int32

	CreateError       error
	UpdateStatusError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{drivers: make(map[string]*domain.Driver)}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *driver
	m.drivers[driver.ID] = &d
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.AddDriver(driver)
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := *driver
	return &d, nil
}

func (m *MockDriverRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Driver
	for _, id := range ids {
		if driver, ok := m.drivers[id]; ok {
			d := *driver
			result = append(result, &d)
		}
	}
	return result, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, driver := range m.drivers {
		if driver.Phone == phone {
			d := *driver
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, driver := range m.drivers {
		d := *driver
		result = append(result, &d)
	}
	return result, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

// Status returns a driver's stored status for assertions.
func (m *MockDriverRepository) Status(id string) domain.DriverStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.drivers[id]; ok {
		return d.Status
	}
	return ""
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. Writes are
// conditional on the stored status the same way the Postgres one is.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	CreateCallCount       int32
	UpdateStatusCallCount int32
	StaleWriteCount       int32

	CreateError       error
	UpdateStatusError error
	ListError         error

	// AfterList runs once after the next ListByStatus snapshot is taken.
	AfterList func()
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{rides: make(map[string]*domain.Ride)}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *ride
	m.rides[ride.ID] = &r
}

// SetStatus changes a stored ride's status behind the service's back.
func (m *MockRideRepository) SetStatus(id string, status domain.RideStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rides[id]; ok {
		r.Status = status
	}
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.AddRide(ride)
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := *ride
	return &r, nil
}

func (m *MockRideRepository) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	return m.ListByStatus(ctx)
}

func (m *MockRideRepository) ListByStatus(ctx context.Context, statuses ...domain.RideStatus) ([]*domain.Ride, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	defer m.runAfterList()
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Ride, 0, len(m.rides))
	for _, ride := range m.rides {
		if len(statuses) > 0 && !hasStatus(statuses, ride.Status) {
			continue
		}
		r := *ride
		result = append(result, &r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockRideRepository) runAfterList() {
	m.mu.Lock()
	hook := m.AfterList
	m.AfterList = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (m *MockRideRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ride := range m.rides {
		if ride.AssignedDriverID == driverID && !lifecycle.IsTerminal(ride.Status) {
			r := *ride
			return &r, nil
		}
	}
	return nil, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; !ok {
		return repository.ErrNotFound
	}
	r := *ride
	m.rides[ride.ID] = &r
	return nil
}

func (m *MockRideRepository) UpdateStatus(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		atomic.AddInt32(&m.StaleWriteCount, 1)
		return repository.ErrStaleStatus
	}
	r := *ride
	m.rides[ride.ID] = &r
	return nil
}

func (m *MockRideRepository) RecordMovement(ctx context.Context, rideID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[rideID]
	if !ok || stored.Status != domain.RideStatusInProgress {
		return nil
	}
	if stored.LastMovementAt == nil || stored.LastMovementAt.Before(at) {
		t := at
		stored.LastMovementAt = &t
	}
	return nil
}

func (m *MockRideRepository) MarkIdleAlert(ctx context.Context, rideID string, sentAt time.Time, lastMovementAt, prevAlertAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[rideID]
	if !ok || stored.Status != domain.RideStatusInProgress {
		return false, nil
	}
	if !sameTime(stored.LastMovementAt, lastMovementAt) || !sameTime(stored.IdleAlertSentAt, prevAlertAt) {
		return false, nil
	}
	t := sentAt
	stored.IdleAlertSentAt = &t
	return true, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Ride returns a copy of the stored ride for assertions.
func (m *MockRideRepository) Ride(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	r := *ride
	return &r
}

func hasStatus(statuses []domain.RideStatus, s domain.RideStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[user.ID] = &u
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.AddUser(user)
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.Phone == phone {
			u := *user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.User, 0, len(m.users))
	for _, user := range m.users {
		u := *user
		result = append(result, &u)
	}
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	CreateCallCount int32
	CreateError     error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{payments: make(map[string]*domain.Payment)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := *payment
	m.payments[payment.ID] = &p
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p := *payment
	return &p, nil
}

func (m *MockPaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, payment := range m.payments {
		if payment.IdempotencyKey == key {
			p := *payment
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) ListByRideID(ctx context.Context, rideID string) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Payment
	for _, payment := range m.payments {
		if payment.RideID == rideID {
			p := *payment
			result = append(result, &p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result, nil
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	payment.Status = status
	return nil
}

// CountPayments returns the number of payments.
func (m *MockPaymentRepository) CountPayments() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

// ──────────────────────────────────────────────
// MOCK RECEIPT REPOSITORY
// ──────────────────────────────────────────────

// MockReceiptRepository is a mock implementation of ReceiptRepository.
type MockReceiptRepository struct {
	mu       sync.RWMutex
	receipts map[string]*domain.Receipt

	CreateCallCount int32
}

// NewMockReceiptRepository creates a new mock receipt repository.
func NewMockReceiptRepository() *MockReceiptRepository {
	return &MockReceiptRepository{receipts: make(map[string]*domain.Receipt)}
}

func (m *MockReceiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *receipt
	m.receipts[receipt.RideID] = &r
	return nil
}

func (m *MockReceiptRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	receipt, ok := m.receipts[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := *receipt
	return &r, nil
}

// ──────────────────────────────────────────────
// MOCK TX RUNNER
// ──────────────────────────────────────────────

// MockTxRunner hands the mock repositories to the callback. There is no
// rollback; tests that need one inject BeginError.
type MockTxRunner struct {
	Rides    *MockRideRepository
	Drivers  *MockDriverRepository
	Payments *MockPaymentRepository

	CallCount  int32
	BeginError error
}

func (m *MockTxRunner) WithinTx(ctx context.Context, fn func(s repository.Stores) error) error {
	atomic.AddInt32(&m.CallCount, 1)
	if m.BeginError != nil {
		return m.BeginError
	}
	return fn(repository.Stores{Rides: m.Rides, Drivers: m.Drivers, Payments: m.Payments})
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStore. Nearby
// searches filter by haversine distance like the GEO index does.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation

	UpdateLocationCallCount int32

	UpdateLocationError    error
	FindNearbyDriversError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]redis.DriverLocation)}
}

// SetLocation places a driver for test setup.
func (m *MockLocationStore) SetLocation(driverID string, lat, lng float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.SetLocation(driverID, lat, lng)
	return nil
}

func (m *MockLocationStore) GetLocation(ctx context.Context, driverID string) (*redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[driverID]
	if !ok {
		return nil, redis.ErrLocationUnknown
	}
	return &loc, nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindNearbyDriversError != nil {
		return nil, m.FindNearbyDriversError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	center := geo.Coordinates{Lat: lat, Lng: lng}
	var result []redis.DriverLocation
	for _, loc := range m.locations {
		d := geo.HaversineDistanceKm(center, geo.Coordinates{Lat: loc.Lat, Lng: loc.Lng})
		if d <= radiusKm {
			loc.DistanceKm = d
			result = append(result, loc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DistanceKm < result[j].DistanceKm })
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation checks if a driver location exists.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	held  map[string]*redis.Lock
	owner map[*redis.Lock]string

	AcquireCallCount int32
	ReleaseCallCount int32

	AcquireError error

	// HoldRide makes every ride lock look taken.
	HoldRide bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		held:  make(map[string]*redis.Lock),
		owner: make(map[*redis.Lock]string),
	}
}

func (m *MockLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (*redis.Lock, error) {
	return m.acquire("lock:driver:" + driverID)
}

func (m *MockLockStore) AcquireRideLock(ctx context.Context, rideID string, ttl time.Duration) (*redis.Lock, error) {
	if m.HoldRide {
		atomic.AddInt32(&m.AcquireCallCount, 1)
		return nil, redis.ErrLockHeld
	}
	return m.acquire("lock:ride:" + rideID)
}

func (m *MockLockStore) acquire(key string) (*redis.Lock, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return nil, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.held[key]; taken {
		return nil, redis.ErrLockHeld
	}
	lock := &redis.Lock{}
	m.held[key] = lock
	m.owner[lock] = key
	return lock, nil
}

func (m *MockLockStore) Release(ctx context.Context, lock *redis.Lock) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if lock == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.owner[lock]; ok && m.held[key] == lock {
		delete(m.held, key)
	}
	delete(m.owner, lock)
	return nil
}

// HoldDriver takes a driver lock as another caller would.
func (m *MockLockStore) HoldDriver(driverID string) {
	_, _ = m.acquire("lock:driver:" + driverID)
}

// HeldCount reports how many locks are currently held.
func (m *MockLockStore) HeldCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of CacheStore.
type MockCacheStore struct {
	mu        sync.RWMutex
	drivers   map[string]*redis.CachedDriver
	routes    map[string]*redis.CachedRoute
	available map[string]bool

	InvalidateCallCount int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		drivers:   make(map[string]*redis.CachedDriver),
		routes:    make(map[string]*redis.CachedRoute),
		available: make(map[string]bool),
	}
}

func (m *MockCacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*redis.CachedDriver, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[string]*redis.CachedDriver)
	var missing []string
	for _, id := range driverIDs {
		if d, ok := m.drivers[id]; ok {
			c := *d
			found[id] = &c
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

func (m *MockCacheStore) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *driver
	m.drivers[driver.ID] = &d
	return nil
}

func (m *MockCacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

func (m *MockCacheStore) AddAvailableDriver(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available[driverID] = true
	return nil
}

func (m *MockCacheStore) RemoveAvailableDriver(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.available, driverID)
	return nil
}

func (m *MockCacheStore) GetRoute(ctx context.Context, key string) (*redis.CachedRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.routes[key]; ok {
		c := *r
		return &c, nil
	}
	return nil, nil
}

func (m *MockCacheStore) SetRoute(ctx context.Context, key string, route *redis.CachedRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *route
	m.routes[key] = &r
	return nil
}

// IsAvailable reports whether a driver is in the available set.
func (m *MockCacheStore) IsAvailable(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.available[driverID]
}

// RouteCount returns the number of cached routes.
func (m *MockCacheStore) RouteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.routes)
}

// ──────────────────────────────────────────────
// MOCK TELEMETRY STORE
// ──────────────────────────────────────────────

// MockTelemetryStore is a mock implementation of TelemetryStore.
type MockTelemetryStore struct {
	mu     sync.RWMutex
	points map[string][]geo.GpsPoint

	ClearCallCount int32
}

// NewMockTelemetryStore creates a new mock telemetry store.
func NewMockTelemetryStore() *MockTelemetryStore {
	return &MockTelemetryStore{points: make(map[string][]geo.GpsPoint)}
}

func telemetryKey(rideID string, phase redis.TelemetryPhase) string {
	return rideID + ":" + string(phase)
}

func (m *MockTelemetryStore) Append(ctx context.Context, rideID string, phase redis.TelemetryPhase, p geo.GpsPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := telemetryKey(rideID, phase)
	m.points[key] = append(m.points[key], p)
	return nil
}

func (m *MockTelemetryStore) Points(ctx context.Context, rideID string, phase redis.TelemetryPhase) ([]geo.GpsPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.points[telemetryKey(rideID, phase)]
	out := make([]geo.GpsPoint, len(src))
	copy(out, src)
	return out, nil
}

func (m *MockTelemetryStore) Clear(ctx context.Context, rideID string) error {
	atomic.AddInt32(&m.ClearCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, telemetryKey(rideID, redis.PhasePickup))
	delete(m.points, telemetryKey(rideID, redis.PhaseTrip))
	return nil
}

// Seed stores samples for a ride phase.
func (m *MockTelemetryStore) Seed(rideID string, phase redis.TelemetryPhase, points ...geo.GpsPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := telemetryKey(rideID, phase)
	m.points[key] = append(m.points[key], points...)
}

// Count returns how many samples a ride phase holds.
func (m *MockTelemetryStore) Count(rideID string, phase redis.TelemetryPhase) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points[telemetryKey(rideID, phase)])
}

// ──────────────────────────────────────────────
// MOCK ROUTER
// ──────────────────────────────────────────────

// MockRouter returns a fixed route, or Err when set.
type MockRouter struct {
	Result     routing.Route
	ETAMinutes float64
	Err        error

	RouteCallCount int32
}

func (m *MockRouter) Route(ctx context.Context, origin, destination geo.Coordinates) (routing.Route, error) {
	atomic.AddInt32(&m.RouteCallCount, 1)
	if m.Err != nil {
		return routing.Route{}, m.Err
	}
	return m.Result, nil
}

func (m *MockRouter) ETA(ctx context.Context, origin, destination geo.Coordinates, trafficBuffer float64) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.ETAMinutes, nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER AND BROADCASTER
// ──────────────────────────────────────────────

// MockPublisher records published ride events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.RideEvent
	Err    error
}

func (m *MockPublisher) Publish(ctx context.Context, e events.RideEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, e)
	return nil
}

// Types returns the event types published for a ride, in order.
func (m *MockPublisher) Types(rideID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		if e.RideID == rideID {
			out = append(out, e.Type)
		}
	}
	return out
}

// MockBroadcaster records websocket messages.
type MockBroadcaster struct {
	mu       sync.Mutex
	messages []ws.Message
}

func (m *MockBroadcaster) Broadcast(msg ws.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

// Count returns how many messages of a type were sent for a ride.
func (m *MockBroadcaster) Count(rideID, msgType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.RideID == rideID && msg.Type == msgType {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK PSP (Payment Service Provider)
// ──────────────────────────────────────────────

// MockPSP is a mock payment service provider.
type MockPSP struct {
	mu sync.Mutex

	ShouldFail bool
	FailError  error

	ChargeCallCount int32
}

// NewMockPSP creates a new mock PSP.
func NewMockPSP() *MockPSP {
	return &MockPSP{}
}

func (m *MockPSP) Charge(ctx context.Context, method domain.PaymentMethod, amount float64, currency string) (bool, error) {
	atomic.AddInt32(&m.ChargeCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailError != nil {
		return false, m.FailError
	}
	return !m.ShouldFail, nil
}

// SetFailure configures the PSP to fail.
func (m *MockPSP) SetFailure(shouldFail bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = shouldFail
	m.FailError = err
}

// ──────────────────────────────────────────────
// CLOCK
// ──────────────────────────────────────────────

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current mock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
