package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lotes/backend/internal/application/media"
	"github.com/lotes/backend/internal/interfaces/http/dto"
	"github.com/lotes/backend/internal/interfaces/http/middleware"
)

// ThumbnailHandler triggers thumbnail generation for stored images
type ThumbnailHandler struct {
	BaseHandler
	thumbnails *media.ThumbnailService
}

// NewThumbnailHandler creates a new thumbnail handler
func NewThumbnailHandler(thumbnails *media.ThumbnailService) *ThumbnailHandler {
	return &ThumbnailHandler{thumbnails: thumbnails}
}

// Generate resizes the object named in the body
func (h *ThumbnailHandler) Generate(c *gin.Context) {
	var req dto.ThumbnailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	keys, err := h.thumbnails.Generate(c.Request.Context(), req.Key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ThumbnailResponse{Keys: keys})
}
