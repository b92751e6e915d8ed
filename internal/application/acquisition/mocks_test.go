package acquisition

import (
	"context"
	"sync"

	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/lote"
	"github.com/stretchr/testify/mock"
)

// MockTokenVerifier is a mock implementation of identity.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, credential string) (identity.Subject, error) {
	args := m.Called(ctx, credential)
	return args.Get(0).(identity.Subject), args.Error(1)
}

// MockActorRepository is a mock implementation of identity.ActorRepository
type MockActorRepository struct {
	mock.Mock
}

func (m *MockActorRepository) FindByID(ctx context.Context, id string) (*identity.Actor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Actor), args.Error(1)
}

func (m *MockActorRepository) Create(ctx context.Context, a *identity.Actor) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockActorRepository) Update(ctx context.Context, id string, fn func(a *identity.Actor) error) (*identity.Actor, error) {
	args := m.Called(ctx, id, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Actor), args.Error(1)
}

func (m *MockActorRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockActorRepository) Settle(ctx context.Context, actorID, loteID string, price int64) (identity.Settlement, error) {
	args := m.Called(ctx, actorID, loteID, price)
	return args.Get(0).(identity.Settlement), args.Error(1)
}

// MockLoteRepository is a mock implementation of lote.Repository
type MockLoteRepository struct {
	mock.Mock
}

func (m *MockLoteRepository) FindByID(ctx context.Context, id string) (*lote.Lote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lote.Lote), args.Error(1)
}

func (m *MockLoteRepository) FindAll(ctx context.Context) ([]lote.Lote, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]lote.Lote), args.Error(1)
}

func (m *MockLoteRepository) Save(ctx context.Context, l *lote.Lote) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockLoteRepository) Publish(ctx context.Context, l *lote.Lote) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockLoteRepository) AssignOwner(ctx context.Context, id string, owner lote.Owner) lote.Assignment {
	return m.Called(ctx, id, owner).Get(0).(lote.Assignment)
}

// tokenTable verifies credentials by lookup
type tokenTable map[string]identity.Subject

func (t tokenTable) Verify(_ context.Context, credential string) (identity.Subject, error) {
	s, ok := t[credential]
	if !ok {
		return identity.Subject{}, errBadToken
	}
	return s, nil
}

// recordingSettler keeps submitted settlements
type recordingSettler struct {
	mu   sync.Mutex
	jobs []Settlement
	err  error
}

func (r *recordingSettler) Submit(s Settlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, s)
	return nil
}

func (r *recordingSettler) submitted() []Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Settlement(nil), r.jobs...)
}
