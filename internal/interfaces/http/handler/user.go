package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	appidentity "github.com/lotes/backend/internal/application/identity"
	"github.com/lotes/backend/internal/domain/identity"
	"github.com/lotes/backend/internal/interfaces/http/dto"
	"github.com/lotes/backend/internal/interfaces/http/middleware"
)

// UserHandler handles user provisioning
type UserHandler struct {
	BaseHandler
	users *appidentity.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(users *appidentity.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Create signs up a new member
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	actor, err := h.users.Register(c.Request.Context(), appidentity.RegisterInput{
		UID:         req.UID,
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.ToUserResponse(actor))
}

// Get returns a user to itself or an admin
func (h *UserHandler) Get(c *gin.Context) {
	caller, ok := h.Subject(c)
	if !ok {
		return
	}
	actor, err := h.users.Get(c.Request.Context(), c.Param("uid"), caller)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(actor))
}

// Update changes a user's profile or credentials
func (h *UserHandler) Update(c *gin.Context) {
	caller, ok := h.Subject(c)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	input := appidentity.UpdateInput{
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Email:        req.Email,
		Password:     req.Password,
		TokenBalance: req.TokenBalance,
	}
	if req.Role != nil {
		role := identity.Role(*req.Role)
		input.Role = &role
	}

	actor, err := h.users.Update(c.Request.Context(), c.Param("uid"), input, caller)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(actor))
}

// Delete removes a user and revokes its tokens
func (h *UserHandler) Delete(c *gin.Context) {
	caller, ok := h.Subject(c)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), c.Param("uid"), caller); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
