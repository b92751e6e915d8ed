package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/lote"
	"github.com/lotes/backend/internal/infrastructure/config"
	"github.com/lotes/backend/internal/infrastructure/docstore"
	"github.com/lotes/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

var (
	errBadToken = errors.New("token rejected")
	fixedNow    = time.UnixMilli(1714564800000)
)

type fixture struct {
	store    directory.Store
	actors   *persistence.ActorRepository
	lotes    *persistence.LoteRepository
	settler  *recordingSettler
	verifier tokenTable
	svc      *Service
}

func newFixture(t *testing.T, store directory.Store) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    store,
		actors:   persistence.NewActorRepository(store),
		lotes:    persistence.NewLoteRepository(store),
		settler:  &recordingSettler{},
		verifier: tokenTable{},
	}

	f.addActor(t, "u1", "ana", "Ana", 150, identity.RoleMember)
	f.addActor(t, "u2", "bo", "", 50, identity.RoleMember)
	f.addActor(t, "g1", "gus", "Gus", 1000, identity.RoleGuest)
	f.verifier["tok-ghost"] = identity.Subject{ActorID: "ghost", Role: identity.RoleMember}

	require.NoError(t, f.lotes.Save(ctx, &lote.Lote{ID: "r1", Price: 100}))
	require.NoError(t, f.lotes.Save(ctx, &lote.Lote{ID: "r2", Price: 80}))

	f.svc = NewService(f.verifier, f.actors, f.lotes, f.settler, ServiceConfig{StepTimeout: 2 * time.Second}, nil, zap.NewNop())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) addActor(t *testing.T, id, name, displayName string, tokens int64, role identity.Role) {
	t.Helper()
	a, err := identity.NewActor(id, name, displayName, tokens)
	require.NoError(t, err)
	require.NoError(t, a.SetRole(role))
	require.NoError(t, f.actors.Create(context.Background(), a))
	f.verifier["tok-"+id] = identity.Subject{ActorID: id, Name: name, Role: role}
}

func newSQLStore(t *testing.T) directory.Store {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, persistence.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.AutoMigrate())
	return docstore.NewSQLStore(db.DB, 1000)
}

func TestAcquire_Scenarios(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore())

	t.Run("member acquires an affordable lote", func(t *testing.T) {
		receipt, err := f.svc.Acquire(ctx, "r1", "tok-u1")
		require.NoError(t, err)
		assert.Equal(t, "r1", receipt.LoteID)
		assert.Equal(t, lote.Owner{ActorID: "u1", DisplayName: "Ana", AcquiredAt: fixedNow.UnixMilli()}, receipt.Owner)

		stored, err := f.lotes.FindByID(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, stored.Owner)
		assert.Equal(t, receipt.Owner, *stored.Owner)

		assert.Equal(t, []Settlement{{ActorID: "u1", LoteID: "r1", Price: 100}}, f.settler.submitted())
	})

	t.Run("second claimant is rejected", func(t *testing.T) {
		_, err := f.svc.Acquire(ctx, "r1", "tok-u2")
		assert.ErrorIs(t, err, lote.ErrHasOwner)
		assert.Equal(t, lote.KindAlreadyOwned, lote.KindOf(err))

		stored, err := f.lotes.FindByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "u1", stored.Owner.ActorID, "owner record is unchanged")
	})

	t.Run("rejection is idempotent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := f.svc.Acquire(ctx, "r1", "tok-u1")
			assert.ErrorIs(t, err, lote.ErrHasOwner)
		}
		assert.Len(t, f.settler.submitted(), 1)
	})

	t.Run("price above balance", func(t *testing.T) {
		_, err := f.svc.Acquire(ctx, "r2", "tok-u2")
		assert.ErrorIs(t, err, lote.ErrTooExpensive)
		assert.Equal(t, lote.KindInsufficientBalance, lote.KindOf(err))

		stored, err := f.lotes.FindByID(ctx, "r2")
		require.NoError(t, err)
		assert.Nil(t, stored.Owner)
	})

	t.Run("guest role is unauthorized", func(t *testing.T) {
		_, err := f.svc.Acquire(ctx, "r2", "tok-g1")
		assert.ErrorIs(t, err, lote.ErrUnauthorized)

		stored, err := f.lotes.FindByID(ctx, "r2")
		require.NoError(t, err)
		assert.Nil(t, stored.Owner)
	})

	t.Run("bad credential", func(t *testing.T) {
		_, err := f.svc.Acquire(ctx, "r2", "forged")
		assert.ErrorIs(t, err, lote.ErrUnauthorized)
		assert.ErrorIs(t, err, errBadToken)
	})

	t.Run("unknown actor", func(t *testing.T) {
		_, err := f.svc.Acquire(ctx, "r2", "tok-ghost")
		assert.ErrorIs(t, err, lote.ErrActorNotFound)
		assert.Equal(t, lote.KindInternal, lote.KindOf(err))
	})

	t.Run("unknown lote", func(t *testing.T) {
		_, err := f.svc.Acquire(ctx, "r9", "tok-u2")
		assert.ErrorIs(t, err, lote.ErrLoteNotFound)
	})

	t.Run("display name falls back to name", func(t *testing.T) {
		require.NoError(t, f.lotes.Save(ctx, &lote.Lote{ID: "r3", Price: 10}))
		receipt, err := f.svc.Acquire(ctx, "r3", "tok-u2")
		require.NoError(t, err)
		assert.Equal(t, "bo", receipt.Owner.DisplayName)
	})
}

func TestAcquire_InputGuard(t *testing.T) {
	verifier := new(MockTokenVerifier)
	actors := new(MockActorRepository)
	lotes := new(MockLoteRepository)
	svc := NewService(verifier, actors, lotes, nil, ServiceConfig{}, nil, nil)

	_, err := svc.Acquire(context.Background(), "", "tok")
	assert.ErrorIs(t, err, lote.ErrLoteUndefined)
	assert.Equal(t, lote.KindInvalidRequest, lote.KindOf(err))

	for _, id := range []string{"a/b", "a.b", "#1", "$x", "[0]"} {
		_, err := svc.Acquire(context.Background(), id, "tok")
		assert.ErrorIs(t, err, lote.ErrLoteInvalid, id)
	}

	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	actors.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	lotes.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAcquire_AuthorizationGate(t *testing.T) {
	verifier := new(MockTokenVerifier)
	actors := new(MockActorRepository)
	lotes := new(MockLoteRepository)
	svc := NewService(verifier, actors, lotes, nil, ServiceConfig{}, nil, nil)

	verifier.On("Verify", mock.Anything, "expired").Return(identity.Subject{}, errBadToken)

	_, err := svc.Acquire(context.Background(), "r1", "expired")
	assert.ErrorIs(t, err, lote.ErrUnauthorized)

	verifier.AssertExpectations(t)
	actors.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	lotes.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	lotes.AssertNotCalled(t, "AssignOwner", mock.Anything, mock.Anything, mock.Anything)
}

func TestAcquire_VerifierTimeoutIsInternal(t *testing.T) {
	verifier := new(MockTokenVerifier)
	svc := NewService(verifier, new(MockActorRepository), new(MockLoteRepository), nil,
		ServiceConfig{StepTimeout: 20 * time.Millisecond}, nil, nil)

	verifier.On("Verify", mock.Anything, "slow").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(identity.Subject{}, context.DeadlineExceeded)

	_, err := svc.Acquire(context.Background(), "r1", "slow")
	require.Error(t, err)
	assert.Equal(t, lote.KindInternal, lote.KindOf(err))
	ae, ok := asAcquisitionError(err)
	require.True(t, ok)
	assert.Equal(t, lote.CodeTimeout, ae.Code)
}

var errStoreDown = errors.New("connection reset by peer")

func TestAcquire_StoreFailureIsInternal(t *testing.T) {
	verifier := new(MockTokenVerifier)
	actors := new(MockActorRepository)
	lotes := new(MockLoteRepository)
	settler := &recordingSettler{}
	svc := NewService(verifier, actors, lotes, settler, ServiceConfig{}, nil, nil)

	verifier.On("Verify", mock.Anything, "tok").Return(identity.Subject{ActorID: "u1"}, nil)
	actors.On("FindByID", mock.Anything, "u1").
		Return(&identity.Actor{ID: "u1", Name: "ana", Role: identity.RoleMember, TokenBalance: 500}, nil)
	lotes.On("FindByID", mock.Anything, "r1").Return(&lote.Lote{ID: "r1", Price: 100}, nil)
	lotes.On("AssignOwner", mock.Anything, "r1", mock.AnythingOfType("lote.Owner")).
		Return(lote.Assignment{Outcome: directory.Failed, Err: errStoreDown})

	_, err := svc.Acquire(context.Background(), "r1", "tok")
	require.Error(t, err)
	assert.Equal(t, lote.KindInternal, lote.KindOf(err))
	assert.ErrorIs(t, err, errStoreDown)
	ae, ok := asAcquisitionError(err)
	require.True(t, ok)
	assert.Equal(t, lote.CodeStoreFailure, ae.Code)
	assert.Empty(t, settler.submitted(), "nothing is settled without a committed owner")
}

func TestAcquire_AssignConflictIsAlreadyOwned(t *testing.T) {
	verifier := new(MockTokenVerifier)
	actors := new(MockActorRepository)
	lotes := new(MockLoteRepository)
	settler := &recordingSettler{}
	svc := NewService(verifier, actors, lotes, settler, ServiceConfig{}, nil, nil)

	verifier.On("Verify", mock.Anything, "tok").Return(identity.Subject{ActorID: "u1"}, nil)
	actors.On("FindByID", mock.Anything, "u1").
		Return(&identity.Actor{ID: "u1", Name: "ana", Role: identity.RoleMember, TokenBalance: 500}, nil)
	lotes.On("FindByID", mock.Anything, "r1").Return(&lote.Lote{ID: "r1", Price: 100}, nil)
	lotes.On("AssignOwner", mock.Anything, "r1", mock.AnythingOfType("lote.Owner")).
		Return(lote.Assignment{
			Outcome: directory.Conflict,
			Owner:   &lote.Owner{ActorID: "u2", DisplayName: "bia"},
		})

	receipt, err := svc.Acquire(context.Background(), "r1", "tok")
	require.Error(t, err)
	assert.Nil(t, receipt)
	assert.ErrorIs(t, err, lote.ErrHasOwner)
	assert.Equal(t, lote.KindAlreadyOwned, lote.KindOf(err))
	assert.Empty(t, settler.submitted())
	lotes.AssertExpectations(t)
}

func TestAcquire_SettlementQueueFullKeepsOwnership(t *testing.T) {
	f := newFixture(t, docstore.NewMemoryStore())
	f.settler.err = ErrQueueFull

	receipt, err := f.svc.Acquire(context.Background(), "r1", "tok-u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", receipt.Owner.ActorID)
}

func TestAcquire_MutualExclusion(t *testing.T) {
	stores := map[string]func(t *testing.T) (directory.Store, int){
		"memory": func(*testing.T) (directory.Store, int) { return docstore.NewMemoryStore(), 64 },
		"sql":    func(t *testing.T) (directory.Store, int) { return newSQLStore(t), 16 },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			store, contenders := newStore(t)
			f := newFixture(t, store)
			for i := 0; i < contenders; i++ {
				f.addActor(t, fmt.Sprintf("c%d", i), fmt.Sprintf("c%d", i), "", 1000, identity.RoleMember)
			}

			var (
				wg         sync.WaitGroup
				mu         sync.Mutex
				winners    []string
				rejected   int
				unexpected []error
			)
			start := make(chan struct{})
			for i := 0; i < contenders; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					receipt, err := f.svc.Acquire(context.Background(), "r1", fmt.Sprintf("tok-c%d", i))
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						winners = append(winners, receipt.Owner.ActorID)
					case errors.Is(err, lote.ErrHasOwner):
						rejected++
					default:
						unexpected = append(unexpected, err)
					}
				}(i)
			}
			close(start)
			wg.Wait()

			require.Empty(t, unexpected)
			require.Len(t, winners, 1)
			assert.Equal(t, contenders-1, rejected)

			stored, err := f.lotes.FindByID(context.Background(), "r1")
			require.NoError(t, err)
			assert.Equal(t, winners[0], stored.Owner.ActorID)
			assert.Len(t, f.settler.submitted(), 1)
		})
	}
}

func TestAcquire_SettlesThroughQueue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, docstore.NewMemoryStore())

	queue := NewSettlementQueue(f.actors, SettlementQueueConfig{Workers: 2, QueueSize: 8}, nil, zap.NewNop())
	queue.Start(ctx)
	f.svc.settler = queue

	_, err := f.svc.Acquire(ctx, "r1", "tok-u1")
	require.NoError(t, err)
	require.NoError(t, queue.Stop(ctx))

	actor, err := f.actors.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), actor.TokenBalance)
	assert.True(t, actor.Owns("r1"))
}

func TestAcquire_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(ctx)

	metrics, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	f := newFixture(t, docstore.NewMemoryStore())
	f.svc.metrics = metrics

	_, err = f.svc.Acquire(ctx, "r1", "tok-u1")
	require.NoError(t, err)
	_, err = f.svc.Acquire(ctx, "r1", "tok-u2")
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "lote_acquisitions_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				counts[outcome.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"committed": 1, "already_owned": 1}, counts)
}
