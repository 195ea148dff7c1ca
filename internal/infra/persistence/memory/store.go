// Package memory keeps every portal record in process. It honours the same
// invariants as the PostgreSQL backend, including one active booking per
// doctor slot, and is used for development and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"healthbridge/internal/domain/entity"
	"healthbridge/internal/domain/repository"

	"github.com/google/uuid"
)

type tables struct {
	users         map[uuid.UUID]entity.User
	appointments  map[uuid.UUID]entity.Appointment
	prescriptions map[uuid.UUID]entity.Prescription
	labResults    map[uuid.UUID]entity.LabResult
	notifications map[uuid.UUID]entity.Notification
	audit         []entity.AuditEntry
}

func newTables() *tables {
	return &tables{
		users:         make(map[uuid.UUID]entity.User),
		appointments:  make(map[uuid.UUID]entity.Appointment),
		prescriptions: make(map[uuid.UUID]entity.Prescription),
		labResults:    make(map[uuid.UUID]entity.LabResult),
		notifications: make(map[uuid.UUID]entity.Notification),
	}
}

func (t *tables) clone() *tables {
	return &tables{
		users:         maps.Clone(t.users),
		appointments:  maps.Clone(t.appointments),
		prescriptions: maps.Clone(t.prescriptions),
		labResults:    maps.Clone(t.labResults),
		notifications: maps.Clone(t.notifications),
		audit:         slices.Clone(t.audit),
	}
}

// Store owns all tables behind one mutex. A transaction holds the mutex for its
// whole duration, so transactions are serialised.
type Store struct {
	mu   sync.Mutex
	data *tables
	now  func() time.Time
}

// NewStore creates an empty store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates an empty store stamping rows with now.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{data: newTables(), now: now}
}

// scope runs repository work either under the store lock or, inside a
// transaction, directly since the lock is already held.
type scope struct {
	store *Store
	inTx  bool
}

func (s scope) run(fn func(t *tables) error) error {
	if !s.inTx {
		s.store.mu.Lock()
		defer s.store.mu.Unlock()
	}

	return fn(s.store.data)
}

func (s scope) now() time.Time {
	return s.store.now().UTC()
}

type repositoryFactory struct {
	scope scope
}

func (f *repositoryFactory) NewUserRepository() repository.UserRepository {
	return &userRepository{scope: f.scope}
}

func (f *repositoryFactory) NewAppointmentRepository() repository.AppointmentRepository {
	return &appointmentRepository{scope: f.scope}
}

func (f *repositoryFactory) NewPrescriptionRepository() repository.PrescriptionRepository {
	return &prescriptionRepository{scope: f.scope}
}

func (f *repositoryFactory) NewLabResultRepository() repository.LabResultRepository {
	return &labResultRepository{scope: f.scope}
}

func (f *repositoryFactory) NewNotificationRepository() repository.NotificationRepository {
	return &notificationRepository{scope: f.scope}
}

func (f *repositoryFactory) NewAuditRepository() repository.AuditRepository {
	return &auditRepository{scope: f.scope}
}

// Repositories returns a factory whose repositories lock per call.
func (s *Store) Repositories() repository.RepositoryFactory {
	return &repositoryFactory{scope: scope{store: s}}
}

// TransactionManager returns the store's transaction manager.
func (s *Store) TransactionManager() repository.TransactionManager {
	return &transactionManager{store: s}
}

type transactionManager struct {
	store *Store
}

// Execute takes the store lock, runs fn and restores the snapshot taken at the
// start when fn fails or panics.
func (tm *transactionManager) Execute(ctx context.Context, fn func(repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tm.store.mu.Lock()
	defer tm.store.mu.Unlock()

	snapshot := tm.store.data.clone()
	defer func() {
		if r := recover(); r != nil {
			tm.store.data = snapshot
			panic(r)
		}
	}()

	if err := fn(&repositoryFactory{scope: scope{store: tm.store, inTx: true}}); err != nil {
		tm.store.data = snapshot
		return err
	}

	return nil
}
