package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riverside-fc/backend/internal/loginguard"
	"github.com/riverside-fc/backend/internal/models"
	"github.com/riverside-fc/backend/internal/ratelimit"
	"github.com/riverside-fc/backend/pkg/response"
	"github.com/riverside-fc/backend/pkg/utils"
)

// ContextAdminID is the gin context key holding the signed-in admin's uuid.UUID.
const ContextAdminID = "admin_id"

// AdminStore is the part of Repository used by the handler.
type AdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string             `json:"token"`
	Admin models.AdminPublic `json:"admin"`
}

// TokenIssuer signs session tokens. *JWTService is the production issuer.
type TokenIssuer interface {
	Generate(adminID uuid.UUID, email string) (string, error)
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo    AdminStore
	jwt     TokenIssuer
	limiter *ratelimit.Limiter
	guard   *loginguard.Guard
	logger  *zap.Logger
}

// NewHandler creates an auth handler. limiter applies the per-instance
// login preset; guard applies the shared limit and records attempts.
func NewHandler(repo AdminStore, jwt TokenIssuer, limiter *ratelimit.Limiter, guard *loginguard.Guard, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, limiter: limiter, guard: guard, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := normalizeEmail(req.Email)
	ctx := c.Request.Context()

	if d := h.limiter.Check(email, ratelimit.PresetLogin); !d.Allowed {
		response.TooManyRequests(c, d.Remaining, ratelimit.WaitMessage("login attempts", d.Remaining))
		return
	}
	if st := h.guard.CheckLoginRateLimit(ctx, email, 0, 0); !st.Allowed {
		msg := st.Message
		if msg == "" {
			msg = ratelimit.WaitMessage("login attempts", st.TimeUntilReset)
		}
		response.TooManyRequests(c, st.TimeUntilReset, msg)
		return
	}

	admin, err := h.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("load admin failed", zap.Error(err))
		response.Internal(c, "failed to sign in")
		return
	}
	if admin == nil || !utils.CheckAdminPassword(req.Password, admin.Password) {
		h.guard.LogLoginAttempt(email, false)
		response.Unauthorized(c, "invalid email or password")
		return
	}

	// the password was right, so the attempt counts as a success even when
	// no token can be issued
	h.guard.LogLoginAttempt(email, true)
	token, err := h.jwt.Generate(admin.ID, admin.Email)
	if err != nil {
		h.logger.Error("generate token failed", zap.String("admin_id", admin.ID.String()), zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	h.limiter.Reset(email)
	h.logger.Info("admin signed in", zap.String("admin_id", admin.ID.String()))
	response.OK(c, TokenResponse{Token: token, Admin: admin.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	id := c.MustGet(ContextAdminID).(uuid.UUID)
	admin, err := h.repo.GetByID(c.Request.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		response.Unauthorized(c, "admin no longer exists")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load admin")
		return
	}
	response.OK(c, admin.ToPublic())
}
