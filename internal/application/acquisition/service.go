// Package acquisition implements lote acquisition: a member claims an unowned
// lote, the ownership record is committed by a conditional write, and the
// price is settled against the member's balance afterwards.
package acquisition

import (
	"context"
	"errors"
	"time"

	"github.com/lotes/backend/internal/domain/directory"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/domain/lote"
	"github.com/lotes/backend/internal/domain/shared"
	"github.com/lotes/backend/internal/infrastructure/logger"
	"github.com/lotes/backend/internal/infrastructure/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/lotes/backend/internal/application/acquisition"

// Receipt is returned for a committed acquisition
type Receipt struct {
	LoteID string
	Owner  lote.Owner
}

// ServiceConfig tunes the acquisition service
type ServiceConfig struct {
	// StepTimeout bounds each call to the verifier or the store
	StepTimeout time.Duration
}

// Service runs acquisitions
type Service struct {
	verifier identity.TokenVerifier
	actors   identity.ActorRepository
	lotes    lote.Repository
	settler  Settler
	config   ServiceConfig
	metrics  *Metrics
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new acquisition service
func NewService(
	verifier identity.TokenVerifier,
	actors identity.ActorRepository,
	lotes lote.Repository,
	settler Settler,
	config ServiceConfig,
	metrics *Metrics,
	logger *zap.Logger,
) *Service {
	if config.StepTimeout <= 0 {
		config.StepTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		verifier: verifier,
		actors:   actors,
		lotes:    lotes,
		settler:  settler,
		config:   config,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
		now:      time.Now,
	}
}

// Acquire claims loteID for the actor identified by credential. Errors are
// *lote.AcquisitionError. The receipt is final: a later settlement failure
// never revokes the ownership.
func (s *Service) Acquire(ctx context.Context, loteID, credential string) (*Receipt, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "acquisition.Acquire",
		trace.WithAttributes(attribute.String("lote.id", loteID)))
	defer span.End()

	receipt, err := s.acquire(ctx, loteID, credential)

	s.metrics.recordAcquisition(ctx, s.now().Sub(start), err)
	log := logger.Enrich(ctx, s.logger).With(zap.String("lote_id", loteID))
	if err != nil {
		kind := lote.KindOf(err)
		span.SetAttributes(attribute.String("acquisition.outcome", kind.String()))
		if kind == lote.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("Acquisition failed", zap.Error(err))
		} else {
			log.Info("Acquisition rejected", zap.String("outcome", kind.String()), zap.Error(err))
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("acquisition.outcome", "committed"))
	log.Info("Lote acquired",
		zap.String("actor_id", receipt.Owner.ActorID),
		zap.Int64("acquisition_timestamp", receipt.Owner.AcquiredAt))
	return receipt, nil
}

func (s *Service) acquire(ctx context.Context, loteID, credential string) (*Receipt, error) {
	if loteID == "" {
		return nil, lote.ErrLoteUndefined
	}
	if !lote.ValidID(loteID) {
		return nil, lote.ErrLoteInvalid
	}

	subject, err := step(ctx, s.config.StepTimeout, func(ctx context.Context) (identity.Subject, error) {
		return s.verifier.Verify(ctx, credential)
	})
	if err != nil {
		if isTimeout(err) {
			return nil, lote.NewAcquisitionError(lote.KindInternal, lote.CodeTimeout, err)
		}
		return nil, lote.NewAcquisitionError(lote.KindUnauthorized, lote.CodeUnauthorized, err)
	}
	ctx = logger.WithActorID(ctx, subject.ActorID)

	actor, err := step(ctx, s.config.StepTimeout, func(ctx context.Context) (*identity.Actor, error) {
		return s.actors.FindByID(ctx, subject.ActorID)
	})
	if err != nil {
		return nil, loadError(err, lote.CodeActorNotFound, lote.CodeActorMalformed)
	}
	if !actor.CanAcquire() {
		return nil, lote.NewAcquisitionError(lote.KindUnauthorized, lote.CodeUnauthorized,
			errors.New("role "+string(actor.Role)+" cannot acquire lotes"))
	}

	target, err := step(ctx, s.config.StepTimeout, func(ctx context.Context) (*lote.Lote, error) {
		return s.lotes.FindByID(ctx, loteID)
	})
	if err != nil {
		return nil, loadError(err, lote.CodeLoteNotFound, lote.CodeLoteMalformed)
	}
	if target.IsOwned() {
		return nil, lote.ErrHasOwner
	}
	if !target.AffordableWith(actor.TokenBalance) {
		return nil, lote.ErrTooExpensive
	}

	candidate := lote.NewOwner(actor.ID, actor.PublicName(), s.now())
	assignment, err := step(ctx, s.config.StepTimeout, func(ctx context.Context) (lote.Assignment, error) {
		a := s.lotes.AssignOwner(ctx, loteID, candidate)
		return a, a.Err
	})
	if err != nil {
		if isTimeout(err) {
			return nil, lote.NewAcquisitionError(lote.KindInternal, lote.CodeTimeout, err)
		}
		return nil, lote.NewAcquisitionError(lote.KindInternal, lote.CodeStoreFailure, err)
	}
	switch assignment.Outcome {
	case directory.Committed:
	case directory.Conflict:
		return nil, lote.ErrHasOwner
	default:
		return nil, lote.NewAcquisitionError(lote.KindInternal, lote.CodeStoreFailure,
			errors.New("owner assignment failed without a cause"))
	}

	owner := candidate
	if assignment.Owner != nil {
		owner = *assignment.Owner
	}

	s.settle(ctx, Settlement{ActorID: actor.ID, LoteID: loteID, Price: target.Price})
	return &Receipt{LoteID: loteID, Owner: owner}, nil
}

// settle hands the charge to the settler. A settlement that cannot be queued
// is logged with everything needed to apply it by hand.
func (s *Service) settle(ctx context.Context, st Settlement) {
	if s.settler == nil {
		return
	}
	if err := s.settler.Submit(st); err != nil {
		logger.Enrich(ctx, s.logger).Error("Settlement not queued",
			zap.String("actor_id", st.ActorID),
			zap.String("lote_id", st.LoteID),
			zap.Int64("price", st.Price),
			zap.Error(err))
		s.metrics.recordSettlement(ctx, settlementFailed)
	}
}

// step runs fn under its own deadline
func step[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func loadError(err error, notFound, malformed string) error {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return lote.NewAcquisitionError(lote.KindInternal, notFound, err)
	case errors.Is(err, persistence.ErrMalformedDocument):
		return lote.NewAcquisitionError(lote.KindInternal, malformed, err)
	case isTimeout(err):
		return lote.NewAcquisitionError(lote.KindInternal, lote.CodeTimeout, err)
	default:
		return lote.NewAcquisitionError(lote.KindInternal, lote.CodeStoreFailure, err)
	}
}

func asAcquisitionError(err error) (*lote.AcquisitionError, bool) {
	var ae *lote.AcquisitionError
	ok := errors.As(err, &ae)
	return ae, ok
}
