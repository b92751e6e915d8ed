package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lotes/backend/internal/application/acquisition"
	"github.com/lotes/backend/internal/domain/lote"
	"github.com/lotes/backend/internal/interfaces/http/dto"
	"github.com/lotes/backend/internal/interfaces/http/middleware"
)

// LoteHandler serves the lote catalogue and acquisitions
type LoteHandler struct {
	BaseHandler
	acquisition *acquisition.Service
	catalogue   *acquisition.CatalogueService
}

// NewLoteHandler creates a new lote handler
func NewLoteHandler(acq *acquisition.Service, catalogue *acquisition.CatalogueService) *LoteHandler {
	return &LoteHandler{acquisition: acq, catalogue: catalogue}
}

// Acquire claims the lote named in the path for the bearer of the
// Authorization header.
//
//	POST /lotes/:loteId/acquire
func (h *LoteHandler) Acquire(c *gin.Context) {
	h.acquire(c, c.Param("loteId"))
}

// AcquireByQuery is Acquire with the id in the loteId query parameter.
//
//	GET /acquireLote?loteId=
func (h *LoteHandler) AcquireByQuery(c *gin.Context) {
	h.acquire(c, c.Query("loteId"))
}

func (h *LoteHandler) acquire(c *gin.Context, loteID string) {
	// The service resolves the credential itself so that an empty lote id is
	// rejected before the token is looked at.
	receipt, err := h.acquisition.Acquire(c.Request.Context(), loteID, c.GetHeader(middleware.AuthHeaderKey))
	if err != nil {
		code := lote.CodeStoreFailure
		var ae *lote.AcquisitionError
		if errors.As(err, &ae) {
			code = ae.Code
		}
		c.JSON(dto.AcquisitionStatus(lote.KindOf(err)), dto.ErrorResponse{Error: code})
		return
	}

	c.Set(middleware.ActorIDKey, receipt.Owner.ActorID)
	c.JSON(http.StatusOK, dto.AcquireResponse{Owner: dto.ToOwnerResponse(receipt.Owner)})
}

// Get returns a single lote
func (h *LoteHandler) Get(c *gin.Context) {
	l, err := h.catalogue.Get(c.Request.Context(), c.Param("loteId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToLoteResponse(l))
}

// List returns every lote
func (h *LoteHandler) List(c *gin.Context) {
	lotes, err := h.catalogue.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	items := make([]dto.LoteResponse, 0, len(lotes))
	for i := range lotes {
		items = append(items, dto.ToLoteResponse(&lotes[i]))
	}
	c.JSON(http.StatusOK, dto.ListResponse[dto.LoteResponse]{Items: items, Total: len(items)})
}

// Put creates or reprices an unowned lote
func (h *LoteHandler) Put(c *gin.Context) {
	var req dto.PutLoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	l, err := h.catalogue.Put(c.Request.Context(), c.Param("loteId"), *req.Price)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToLoteResponse(l))
}
