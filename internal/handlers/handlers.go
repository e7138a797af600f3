package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"notehub-backend/internal/apperr"
	"notehub-backend/internal/auth"
	"notehub-backend/internal/events"
	"notehub-backend/internal/httpx"
	"notehub-backend/internal/models"
	"notehub-backend/internal/storage"
)

type NoteStore interface {
	ListNotes(ctx context.Context, tenantID string) ([]models.Note, error)
	GetNote(ctx context.Context, tenantID, id string) (*models.Note, error)
	CreateNote(ctx context.Context, tenantID, userID string, input models.NoteInput) (*models.Note, error)
	UpdateNote(ctx context.Context, tenantID, id string, input models.NoteInput) (*models.Note, error)
	DeleteNote(ctx context.Context, tenantID, id string) error
}

type TenantStore interface {
	UpgradePlan(ctx context.Context, tenantID, slug string) (*models.Tenant, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	notes   NoteStore
	tenants TenantStore
	pinger  Pinger
	bus     *events.Publisher
	logger  *zap.Logger
}

func New(notes NoteStore, tenants TenantStore, pinger Pinger, bus *events.Publisher, logger *zap.Logger) *Handler {
	return &Handler{
		notes:   notes,
		tenants: tenants,
		pinger:  pinger,
		bus:     bus,
		logger:  logger,
	}
}

// RegisterRoutes wires public and token-protected routes. Everything under
// the protected group sees a verified principal in its context.
func (h *Handler) RegisterRoutes(r chi.Router, mw *auth.Middleware, authHandler *auth.Handler, loginLimiter func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.With(loginLimiter).Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
		r.Get("/health", h.Health)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)

		r.Get("/auth/me", authHandler.Me)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.ListNotes)
			r.Post("/", h.CreateNote)
			r.Get("/{id}", h.GetNote)
			r.Put("/{id}", h.UpdateNote)
			r.Delete("/{id}", h.DeleteNote)
		})

		r.With(mw.RequireRole(models.RoleAdmin)).
			Post("/tenants/{slug}/upgrade", h.UpgradeTenant)
	})
}

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
		return
	}

	notes, err := h.notes.ListNotes(r.Context(), principal.TenantID)
	if err != nil {
		h.logger.Error("list notes failed", zap.Error(err), zap.String("tenant_id", principal.TenantID))
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
		return
	}

	note, err := h.notes.GetNote(r.Context(), principal.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, h.noteError(err, principal))
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"note": note})
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
		return
	}

	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Invalid request body"))
		return
	}
	if input.Title == "" || input.Content == "" {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Title and content are required"))
		return
	}

	note, err := h.notes.CreateNote(r.Context(), principal.TenantID, principal.ID, input)
	if err != nil {
		httpx.Error(w, h.noteError(err, principal))
		return
	}

	h.bus.Publish(events.Event{
		Type:      events.NoteCreated,
		TenantID:  principal.TenantID,
		ActorID:   principal.ID,
		SubjectID: note.ID,
	})

	httpx.JSON(w, http.StatusCreated, map[string]any{"note": note})
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
		return
	}

	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Invalid request body"))
		return
	}
	if input.Title == "" || input.Content == "" {
		httpx.Error(w, apperr.New(apperr.KindValidation, "Title and content are required"))
		return
	}

	note, err := h.notes.UpdateNote(r.Context(), principal.TenantID, chi.URLParam(r, "id"), input)
	if err != nil {
		httpx.Error(w, h.noteError(err, principal))
		return
	}

	h.bus.Publish(events.Event{
		Type:      events.NoteUpdated,
		TenantID:  principal.TenantID,
		ActorID:   principal.ID,
		SubjectID: note.ID,
	})

	httpx.JSON(w, http.StatusOK, map[string]any{"note": note})
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.notes.DeleteNote(r.Context(), principal.TenantID, id); err != nil {
		httpx.Error(w, h.noteError(err, principal))
		return
	}

	h.bus.Publish(events.Event{
		Type:      events.NoteDeleted,
		TenantID:  principal.TenantID,
		ActorID:   principal.ID,
		SubjectID: id,
	})

	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Note deleted successfully"})
}

// UpgradeTenant moves the caller's tenant from Free to Pro. RequireRole has
// already gated this to Admins; the storage lookup is scoped by the caller's
// tenant id, so a foreign slug comes back as not found.
func (h *Handler) UpgradeTenant(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthenticated, "Authentication required"))
		return
	}

	tenant, err := h.tenants.UpgradePlan(r.Context(), principal.TenantID, chi.URLParam(r, "slug"))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTenantNotFound):
			httpx.Error(w, apperr.New(apperr.KindNotFound, "Tenant not found"))
		case errors.Is(err, storage.ErrTenantAlreadyPro):
			httpx.Error(w, apperr.New(apperr.KindValidation, "Tenant is already on Pro plan"))
		default:
			h.logger.Error("tenant upgrade failed", zap.Error(err), zap.String("tenant_id", principal.TenantID))
			httpx.Error(w, err)
		}
		return
	}

	h.logger.Info("tenant upgraded",
		zap.String("tenant_id", tenant.ID),
		zap.String("slug", tenant.Slug),
		zap.String("actor_id", principal.ID),
	)

	h.bus.Publish(events.Event{
		Type:      events.TenantUpgraded,
		TenantID:  tenant.ID,
		ActorID:   principal.ID,
		SubjectID: tenant.ID,
	})

	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Tenant successfully upgraded to Pro plan",
		"tenant": map[string]any{
			"id":   tenant.ID,
			"name": tenant.Name,
			"slug": tenant.Slug,
			"plan": tenant.Plan,
		},
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		httpx.Error(w, apperr.Wrap(apperr.KindInternal, "Database unavailable", err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) noteError(err error, principal *auth.Principal) error {
	switch {
	case errors.Is(err, storage.ErrNoteNotFound):
		return apperr.New(apperr.KindNotFound, "Note not found")
	case errors.Is(err, storage.ErrNoteLimitReached):
		return apperr.QuotaExceeded(
			"Plan limit reached",
			"Free plan allows maximum 3 notes. Upgrade to Pro for unlimited notes.",
			principal.Role == models.RoleAdmin,
		)
	case errors.Is(err, storage.ErrTenantNotFound):
		return apperr.New(apperr.KindNotFound, "Tenant not found")
	default:
		h.logger.Error("note operation failed", zap.Error(err), zap.String("tenant_id", principal.TenantID))
		return err
	}
}
