package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/auth"
	"opalpixel/invoicing/internal/models"
	"opalpixel/invoicing/internal/services"
)

// RestAuthHandler handles login and session lookups.
type RestAuthHandler struct {
	userService services.IUserService
	jwtSecret   string
	jwtTTL      time.Duration
	logger      *zap.Logger
}

func NewRestAuthHandler(userService services.IUserService, jwtSecret string, jwtTTL time.Duration, logger *zap.Logger) *RestAuthHandler {
	return &RestAuthHandler{
		userService: userService,
		jwtSecret:   jwtSecret,
		jwtTTL:      jwtTTL,
		logger:      logger,
	}
}

// LoginRequest identifies a user by full name and worker ID.
type LoginRequest struct {
	FullName string `json:"full_name" binding:"required"`
	WorkerID string `json:"worker_id" binding:"required"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login handles POST /v1/auth/login
func (h *RestAuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "full_name and worker_id are required")
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.FullName, req.WorkerID, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	token, err := auth.GenerateJWT(models.IdentityOf(user), h.jwtSecret, h.jwtTTL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("user logged in", zap.String("user_id", user.ID.Hex()), zap.String("role", string(user.Role)))
	c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}

// Me handles GET /v1/auth/me
func (h *RestAuthHandler) Me(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), caller, caller.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
