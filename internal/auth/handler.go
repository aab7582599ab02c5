package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qa-dashboard/backend/internal/apperror"
	"github.com/qa-dashboard/backend/internal/models"
	"github.com/qa-dashboard/backend/pkg/response"
	"github.com/qa-dashboard/backend/pkg/utils"
)

// Store is the user side of the Lifecycle Store.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	User        models.UserPublic `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	store  Store
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store Store, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{store: store, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register. New accounts are participants.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		response.BadRequest(c, "username cannot be empty")
		return
	}

	ctx := c.Request.Context()
	if err := h.ensureFree(ctx, req.Email, req.Username); err != nil {
		response.Error(c, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Role:     models.RoleParticipant,
	}
	if err := h.store.CreateUser(ctx, user); err != nil {
		if !apperror.Is(err, apperror.TypeConflict) {
			h.logger.Error("create user failed", zap.Error(err))
		}
		response.Error(c, err)
		return
	}

	h.respondWithToken(c, user, true)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if !apperror.IsNotFound(err) {
			h.logger.Error("lookup user failed", zap.Error(err))
			response.Error(c, err)
			return
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	h.respondWithToken(c, user, false)
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	id := UserID(c)
	if id == nil {
		response.Unauthorized(c, "authentication required")
		return
	}
	user, err := h.store.GetUserByID(c.Request.Context(), *id)
	if err != nil {
		if apperror.IsNotFound(err) {
			response.Unauthorized(c, "authentication required")
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, user.ToPublic())
}

func (h *Handler) ensureFree(ctx context.Context, email, username string) error {
	if _, err := h.store.GetUserByEmail(ctx, email); err == nil {
		return apperror.Conflict("email already registered")
	} else if !apperror.IsNotFound(err) {
		return err
	}
	if _, err := h.store.GetUserByUsername(ctx, username); err == nil {
		return apperror.Conflict("username already taken")
	} else if !apperror.IsNotFound(err) {
		return err
	}
	return nil
}

func (h *Handler) respondWithToken(c *gin.Context, user *models.User, created bool) {
	token, err := h.jwt.Generate(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	body := TokenResponse{AccessToken: token, TokenType: "bearer", User: user.ToPublic()}
	if created {
		response.Created(c, body)
		return
	}
	response.OK(c, body)
}
