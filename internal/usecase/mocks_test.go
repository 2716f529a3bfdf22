//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-platform/internal/domain"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/adapter"
	"course-platform/internal/domain/ports/repository"
	"course-platform/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// MockPurchaseRepo is an in-memory PurchaseRepository. Every method has an
// optional Func override for simulating failures and races.
type MockPurchaseRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Purchase

	SaveFunc                  func(ctx context.Context, qx repository.Tx, p *model.Purchase) error
	FindByIDFunc              func(ctx context.Context, qx repository.Tx, id string) (*model.Purchase, error)
	UpdateStatusIfPendingFunc func(ctx context.Context, qx repository.Tx, id string, status model.PurchaseStatus, amount *int64, refID *string, paidAt *time.Time) (bool, error)
	SalesByInstructorFunc     func(ctx context.Context, qx repository.Tx, instructorID string) ([]*model.CourseSales, error)
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{store: make(map[string]*model.Purchase)}
}

func (m *MockPurchaseRepo) Save(ctx context.Context, qx repository.Tx, p *model.Purchase) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, qx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPurchaseRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Purchase, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, qx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPurchaseRepo) FindBySessionID(ctx context.Context, qx repository.Tx, sessionID string) (*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.SessionID != "" && p.SessionID == sessionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPurchaseRepo) FindBySessionAffix(ctx context.Context, qx repository.Tx, sessionID string) (*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Purchase
	for _, p := range m.store {
		if p.SessionID == "" {
			continue
		}
		if !strings.HasPrefix(sessionID, p.SessionID) && !strings.HasPrefix(p.SessionID, sessionID) {
			continue
		}
		if best == nil || better(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// better mirrors the SQL ordering: pending rows first, then newest ID.
func better(a, b *model.Purchase) bool {
	ap, bp := a.Status == model.PurchaseStatusPending, b.Status == model.PurchaseStatusPending
	if ap != bp {
		return ap
	}
	return a.ID > b.ID
}

func (m *MockPurchaseRepo) FindPendingByUserAndCourse(ctx context.Context, qx repository.Tx, userID, courseID string) (*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Purchase
	for _, p := range m.store {
		if p.UserID == userID && p.CourseID == courseID && p.Status == model.PurchaseStatusPending {
			if best == nil || p.ID > best.ID {
				best = p
			}
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockPurchaseRepo) FindLatestPending(ctx context.Context, qx repository.Tx) (*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.Purchase
	for _, p := range m.store {
		if p.Status == model.PurchaseStatusPending && (best == nil || p.ID > best.ID) {
			best = p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MockPurchaseRepo) UpdateSessionID(ctx context.Context, qx repository.Tx, id, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.SessionID = sessionID
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MockPurchaseRepo) UpdateStatusIfPending(ctx context.Context, qx repository.Tx, id string, status model.PurchaseStatus, amount *int64, refID *string, paidAt *time.Time) (bool, error) {
	if m.UpdateStatusIfPendingFunc != nil {
		return m.UpdateStatusIfPendingFunc(ctx, qx, id, status, amount, refID, paidAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PurchaseStatusPending {
		return false, nil
	}
	p.Status = status
	if amount != nil {
		p.Amount = *amount
	}
	if refID != nil {
		p.RefID = *refID
	}
	if paidAt != nil {
		t := *paidAt
		p.PaidAt = &t
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPurchaseRepo) ListPendingOlderThan(ctx context.Context, qx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if p.Status == model.PurchaseStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPurchaseRepo) ListByUserAndStatus(ctx context.Context, qx repository.Tx, userID string, status model.PurchaseStatus) ([]*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if p.UserID == userID && p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockPurchaseRepo) List(ctx context.Context, qx repository.Tx, f repository.PurchaseFilter) ([]*model.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Purchase
	for _, p := range m.store {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if !f.OlderThan.IsZero() && !p.CreatedAt.Before(f.OlderThan) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MockPurchaseRepo) SalesByInstructor(ctx context.Context, qx repository.Tx, instructorID string) ([]*model.CourseSales, error) {
	if m.SalesByInstructorFunc != nil {
		return m.SalesByInstructorFunc(ctx, qx, instructorID)
	}
	return nil, nil
}

// get returns the live stored record (not a copy) for assertions.
func (m *MockPurchaseRepo) get(id string) *model.Purchase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store[id]
}

// ---- MockCourseRepo ----

type MockCourseRepo struct {
	mu      sync.RWMutex
	courses map[string]*model.Course
}

var _ repository.CourseRepository = (*MockCourseRepo)(nil)

func NewMockCourseRepo() *MockCourseRepo {
	return &MockCourseRepo{courses: make(map[string]*model.Course)}
}

func (m *MockCourseRepo) add(c *model.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.courses[c.ID] = &cp
}

func (m *MockCourseRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ---- MockUserRepo ----

type MockUserRepo struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: make(map[string]*model.User)}
}

func (m *MockUserRepo) add(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

func (m *MockUserRepo) FindByID(ctx context.Context, qx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ---- MockEnrollmentRepo ----

type MockEnrollmentRepo struct {
	mu       sync.Mutex
	enrolled map[string]bool // userID + "/" + courseID
	AddCalls int             // total AddEnrollment invocations, including no-ops

	AddEnrollmentFunc func(ctx context.Context, qx repository.Tx, userID, courseID string) error
}

var _ repository.EnrollmentRepository = (*MockEnrollmentRepo)(nil)

func NewMockEnrollmentRepo() *MockEnrollmentRepo {
	return &MockEnrollmentRepo{enrolled: make(map[string]bool)}
}

func (m *MockEnrollmentRepo) AddEnrollment(ctx context.Context, qx repository.Tx, userID, courseID string) error {
	m.mu.Lock()
	m.AddCalls++
	m.mu.Unlock()
	if m.AddEnrollmentFunc != nil {
		return m.AddEnrollmentFunc(ctx, qx, userID, courseID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrolled[userID+"/"+courseID] = true
	return nil
}

func (m *MockEnrollmentRepo) IsEnrolled(ctx context.Context, qx repository.Tx, userID, courseID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrolled[userID+"/"+courseID], nil
}

// ---- MockTxManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

// MockProvider implements adapter.CheckoutProvider.
type MockProvider struct {
	mu          sync.Mutex
	GetCalls    []string // session IDs queried
	CreateCalls int

	CreateSessionFunc  func(ctx context.Context, in adapter.CreateSessionInput) (string, string, error)
	GetSessionFunc     func(ctx context.Context, sessionID string) (*model.SessionStatus, error)
	VerifyAndParseFunc func(payload []byte, sigHeader string) (*model.CompletionEvent, error)
}

var _ adapter.CheckoutProvider = (*MockProvider)(nil)

func (m *MockProvider) Name() string { return "mockpay" }

func (m *MockProvider) CreateSession(ctx context.Context, in adapter.CreateSessionInput) (string, string, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, in)
	}
	sid := "cs_test_" + in.PurchaseID
	return sid, "https://pay.example/" + sid, nil
}

func (m *MockProvider) GetSession(ctx context.Context, sessionID string) (*model.SessionStatus, error) {
	m.mu.Lock()
	m.GetCalls = append(m.GetCalls, sessionID)
	m.mu.Unlock()
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &model.SessionStatus{SessionID: sessionID}, nil
}

func (m *MockProvider) VerifyAndParse(payload []byte, sigHeader string) (*model.CompletionEvent, error) {
	if m.VerifyAndParseFunc != nil {
		return m.VerifyAndParseFunc(payload, sigHeader)
	}
	return nil, domain.ErrInvalidArgument
}

func (m *MockProvider) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GetCalls)
}

// ---- MockLocker ----

type MockLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var _ usecase.Locker = (*MockLocker)(nil)

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	return uuid.NewString(), nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error { return nil }

// ---- MockRecheck ----

type MockRecheck struct {
	mu        sync.Mutex
	Scheduled []string
}

func (m *MockRecheck) Schedule(purchaseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scheduled = append(m.Scheduled, purchaseID)
}

// ---- MockThrottle ----

type MockThrottle struct {
	AllowFunc func(ctx context.Context, purchaseID string) bool
}

func (m *MockThrottle) Allow(ctx context.Context, purchaseID string) bool {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, purchaseID)
	}
	return true
}

// ---- MockTracker ----

type MockTracker struct {
	CompletionPercentFunc func(ctx context.Context, userID, courseID string) (float64, error)
}

var _ adapter.ProgressTracker = (*MockTracker)(nil)

func (m *MockTracker) CompletionPercent(ctx context.Context, userID, courseID string) (float64, error) {
	if m.CompletionPercentFunc != nil {
		return m.CompletionPercentFunc(ctx, userID, courseID)
	}
	return 0, nil
}
