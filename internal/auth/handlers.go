package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"notehub-backend/internal/apperr"
	"notehub-backend/internal/httpx"
	"notehub-backend/internal/models"
	"notehub-backend/internal/storage"
)

type UserStore interface {
	CreateUser(ctx context.Context, input models.CreateUserInput) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

type Handler struct {
	users   UserStore
	tenants TenantStore
	tokens  *Tokens
	hasher  *Hasher
	logger  *zap.Logger
}

func NewHandler(users UserStore, tenants TenantStore, tokens *Tokens, hasher *Hasher, logger *zap.Logger) *Handler {
	return &Handler{
		users:   users,
		tenants: tenants,
		tokens:  tokens,
		hasher:  hasher,
		logger:  logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantSlug string `json:"tenantSlug"`
}

// Login verifies credentials and issues a bearer token. Unknown email and
// wrong password are deliberately indistinguishable to the caller.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Email and password are required"))
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			h.logger.Error("login lookup failed", zap.Error(err))
			httpx.Error(w, err)
			return
		}
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Invalid credentials"))
		return
	}

	if !h.hasher.Verify(r.Context(), req.Password, user.PasswordHash) {
		h.logger.Debug("login failed", zap.String("email", req.Email))
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Invalid credentials"))
		return
	}

	tenant, err := h.tenants.GetTenant(r.Context(), user.TenantID)
	if err != nil {
		h.logger.Error("login tenant lookup failed", zap.Error(err), zap.String("tenant_id", user.TenantID))
		httpx.Error(w, apperr.Wrap(apperr.KindInternal, "Internal server error", err))
		return
	}

	h.issueSession(w, http.StatusOK, user, tenant)
}

// Register creates a principal in an existing tenant. The role is always
// Member; any role supplied by the caller is ignored.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" || req.TenantSlug == "" {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Email, password, and tenant are required"))
		return
	}

	tenant, err := h.tenants.GetTenantBySlug(r.Context(), req.TenantSlug)
	if err != nil {
		if errors.Is(err, storage.ErrTenantNotFound) {
			httpx.Error(w, apperr.New(apperr.KindValidation, "Invalid tenant"))
			return
		}
		h.logger.Error("register tenant lookup failed", zap.Error(err))
		httpx.Error(w, err)
		return
	}

	hash, err := h.hasher.Hash(r.Context(), req.Password)
	if err != nil {
		h.logger.Error("password hash failed", zap.Error(err))
		httpx.Error(w, apperr.Wrap(apperr.KindInternal, "Internal server error", err))
		return
	}

	user, err := h.users.CreateUser(r.Context(), models.CreateUserInput{
		TenantID:     tenant.ID,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleMember,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			httpx.Error(w, apperr.New(apperr.KindValidation, "User with this email already exists"))
			return
		}
		h.logger.Error("create user failed", zap.Error(err))
		httpx.Error(w, err)
		return
	}

	h.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("tenant", tenant.Slug),
	)

	h.issueSession(w, http.StatusCreated, user, tenant)
}

// Me returns the caller's current user and tenant records.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
		return
	}

	user, err := h.users.GetUserByID(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			httpx.Error(w, apperr.New(apperr.KindNotFound, "User not found"))
			return
		}
		h.logger.Error("me lookup failed", zap.Error(err))
		httpx.Error(w, err)
		return
	}

	tenant, err := h.tenants.GetTenant(r.Context(), user.TenantID)
	if err != nil {
		h.logger.Error("me tenant lookup failed", zap.Error(err))
		httpx.Error(w, apperr.Wrap(apperr.KindInternal, "Internal server error", err))
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"user": userPayload(user, tenant),
	})
}

func (h *Handler) issueSession(w http.ResponseWriter, status int, user *models.User, tenant *models.Tenant) {
	token, expiresIn, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("token signing failed", zap.Error(err))
		httpx.Error(w, apperr.Wrap(apperr.KindInternal, "Failed to generate token", err))
		return
	}

	httpx.JSON(w, status, map[string]any{
		"accessToken": token,
		"expiresIn":   expiresIn,
		"user":        userPayload(user, tenant),
	})
}

func userPayload(user *models.User, tenant *models.Tenant) map[string]any {
	return map[string]any{
		"id":    user.ID,
		"email": user.Email,
		"role":  user.Role,
		"tenant": map[string]any{
			"id":   tenant.ID,
			"name": tenant.Name,
			"slug": tenant.Slug,
			"plan": tenant.Plan,
		},
	}
}
