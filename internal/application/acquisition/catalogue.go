package acquisition

import (
	"context"
	"errors"

	"github.com/lotes/backend/internal/domain/lote"
	"github.com/lotes/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// CatalogueService reads and publishes lotes
type CatalogueService struct {
	lotes  lote.Repository
	logger *zap.Logger
}

// NewCatalogueService creates a new catalogue service
func NewCatalogueService(lotes lote.Repository, logger *zap.Logger) *CatalogueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogueService{lotes: lotes, logger: logger}
}

// Get returns a lote by id
func (s *CatalogueService) Get(ctx context.Context, id string) (*lote.Lote, error) {
	if !lote.ValidID(id) {
		return nil, shared.ErrInvalidInput.WithMessage("invalid lote id")
	}
	l, err := s.lotes.FindByID(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrNotFound.WithMessage("lote " + id + " not found")
	}
	return l, err
}

// List returns every lote ordered by id
func (s *CatalogueService) List(ctx context.Context) ([]lote.Lote, error) {
	return s.lotes.FindAll(ctx)
}

// Put creates or reprices an unowned lote. Owned lotes are immutable.
func (s *CatalogueService) Put(ctx context.Context, id string, price int64) (*lote.Lote, error) {
	l, err := lote.NewLote(id, price)
	if err != nil {
		return nil, err
	}
	if err := s.lotes.Publish(ctx, l); err != nil {
		return nil, err
	}
	s.logger.Info("Lote published", zap.String("lote_id", id), zap.Int64("price", price))
	return l, nil
}
