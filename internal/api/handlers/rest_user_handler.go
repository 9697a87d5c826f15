package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/services"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService services.IUserService
	logger      *zap.Logger
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService, logger *zap.Logger) *RestUserHandler {
	return &RestUserHandler{
		userService: userService,
		logger:      logger,
	}
}

// SetPasswordRequest carries a new password chosen by an admin.
type SetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// GetUserByID handles GET /v1/users/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	userID, ok := pathID(c)
	if !ok {
		return
	}

	user, err := h.userService.FindByID(c.Request.Context(), caller, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers handles GET /v1/admin/users
func (h *RestUserHandler) ListUsers(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	role := models.Role(strings.ToLower(strings.TrimSpace(c.Query("role"))))

	users, err := h.userService.List(c.Request.Context(), caller, role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users, "total": len(users)})
}

// CreateUser handles POST /v1/admin/users
func (h *RestUserHandler) CreateUser(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var in services.CreateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.Create(c.Request.Context(), caller, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// UpdateUser handles PUT and PATCH /v1/admin/users/:id
func (h *RestUserHandler) UpdateUser(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	userID, ok := pathID(c)
	if !ok {
		return
	}
	var in services.UpdateUserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	user, err := h.userService.Update(c.Request.Context(), caller, userID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser handles DELETE /v1/admin/users/:id
func (h *RestUserHandler) DeleteUser(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	userID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), caller, userID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetPassword handles PUT /v1/admin/users/:id/password
func (h *RestUserHandler) SetPassword(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	userID, ok := pathID(c)
	if !ok {
		return
	}
	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "password is required")
		return
	}

	if err := h.userService.SetPassword(c.Request.Context(), caller, userID, req.Password); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
