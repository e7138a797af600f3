package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notehub-backend/internal/auth"
	"notehub-backend/internal/models"
	"notehub-backend/internal/storage"
)

// memStore mimics the Postgres repository, including the per-store lock that
// makes the quota check and insert a single step.
type memStore struct {
	mu      sync.Mutex
	tenants map[string]*models.Tenant
	notes   map[string]*models.Note
}

func newMemStore() *memStore {
	return &memStore{
		tenants: make(map[string]*models.Tenant),
		notes:   make(map[string]*models.Note),
	}
}

func (s *memStore) addTenant(name, slug string, plan models.Plan) *models.Tenant {
	tenant := &models.Tenant{ID: uuid.New().String(), Name: name, Slug: slug, Plan: plan}
	s.tenants[tenant.ID] = tenant
	return tenant
}

func (s *memStore) addNote(tenantID, userID, title string) *models.Note {
	note := &models.Note{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		CreatedBy: userID,
		Title:     title,
		Content:   "content",
	}
	s.notes[note.ID] = note
	return note
}

func (s *memStore) countNotes(tenantID string) int {
	count := 0
	for _, note := range s.notes {
		if note.TenantID == tenantID {
			count++
		}
	}
	return count
}

func (s *memStore) ListNotes(_ context.Context, tenantID string) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Note, 0)
	for _, note := range s.notes {
		if note.TenantID == tenantID {
			out = append(out, *note)
		}
	}
	return out, nil
}

func (s *memStore) GetNote(_ context.Context, tenantID, id string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok || note.TenantID != tenantID {
		return nil, storage.ErrNoteNotFound
	}
	copied := *note
	return &copied, nil
}

func (s *memStore) CreateNote(_ context.Context, tenantID, userID string, input models.NoteInput) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, storage.ErrTenantNotFound
	}
	if tenant.Plan == models.PlanFree && s.countNotes(tenantID) >= models.FreePlanNoteLimit {
		return nil, storage.ErrNoteLimitReached
	}

	note := &models.Note{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		CreatedBy: userID,
		Title:     input.Title,
		Content:   input.Content,
	}
	s.notes[note.ID] = note
	copied := *note
	return &copied, nil
}

func (s *memStore) UpdateNote(_ context.Context, tenantID, id string, input models.NoteInput) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok || note.TenantID != tenantID {
		return nil, storage.ErrNoteNotFound
	}
	note.Title = input.Title
	note.Content = input.Content
	copied := *note
	return &copied, nil
}

func (s *memStore) DeleteNote(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok || note.TenantID != tenantID {
		return storage.ErrNoteNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *memStore) UpgradePlan(_ context.Context, tenantID, slug string) (*models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.tenants[tenantID]
	if !ok || tenant.Slug != slug {
		return nil, storage.ErrTenantNotFound
	}
	if tenant.Plan == models.PlanPro {
		return nil, storage.ErrTenantAlreadyPro
	}
	tenant.Plan = models.PlanPro
	copied := *tenant
	return &copied, nil
}

func (s *memStore) Ping(context.Context) error { return nil }

type fixture struct {
	store  *memStore
	tokens *auth.Tokens
	router *chi.Mux
	acme   *models.Tenant
	globex *models.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := auth.NewTokens([]byte("test-secret"))
	require.NoError(t, err)

	store := newMemStore()
	acme := store.addTenant("Acme", "acme", models.PlanFree)
	globex := store.addTenant("Globex", "globex", models.PlanFree)

	mw := auth.NewMiddleware(tokens, zap.NewNop())
	hasher := auth.NewHasher(auth.DefaultBcryptCost)
	authHandler := auth.NewHandler(nil, nil, tokens, hasher, zap.NewNop())
	h := New(store, store, store, nil, zap.NewNop())

	r := chi.NewRouter()
	passthrough := func(next http.Handler) http.Handler { return next }
	h.RegisterRoutes(r, mw, authHandler, passthrough)

	return &fixture{store: store, tokens: tokens, router: r, acme: acme, globex: globex}
}

func (f *fixture) token(t *testing.T, tenantID string, role models.Role) string {
	t.Helper()
	signed, _, err := f.tokens.Issue(&models.User{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		Email:    fmt.Sprintf("%s@test", strings.ToLower(string(role))),
		Role:     role,
	})
	require.NoError(t, err)
	return signed
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestNotesRequireToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/notes", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListNotesIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	f.store.addNote(f.acme.ID, "u1", "acme note")
	f.store.addNote(f.globex.ID, "u2", "globex note")

	rec := f.do(http.MethodGet, "/notes", f.token(t, f.acme.ID, models.RoleMember), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Notes []models.Note `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notes, 1)
	assert.Equal(t, "acme note", body.Notes[0].Title)
}

func TestCrossTenantAccessLooksLikeMissing(t *testing.T) {
	f := newFixture(t)
	foreign := f.store.addNote(f.globex.ID, "u2", "globex note")
	token := f.token(t, f.acme.ID, models.RoleMember)

	crossGet := f.do(http.MethodGet, "/notes/"+foreign.ID, token, "")
	missingGet := f.do(http.MethodGet, "/notes/"+uuid.New().String(), token, "")
	assert.Equal(t, http.StatusNotFound, crossGet.Code)
	assert.Equal(t, http.StatusNotFound, missingGet.Code)
	assert.JSONEq(t, missingGet.Body.String(), crossGet.Body.String())

	crossPut := f.do(http.MethodPut, "/notes/"+foreign.ID, token, `{"title":"x","content":"y"}`)
	assert.Equal(t, http.StatusNotFound, crossPut.Code)

	crossDel := f.do(http.MethodDelete, "/notes/"+foreign.ID, token, "")
	assert.Equal(t, http.StatusNotFound, crossDel.Code)

	// The foreign note is untouched.
	assert.Equal(t, 1, f.store.countNotes(f.globex.ID))
}

func TestCreateNoteValidation(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, f.acme.ID, models.RoleMember)

	rec := f.do(http.MethodPost, "/notes", token, `{"title":"","content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFreePlanQuota(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < models.FreePlanNoteLimit-1; i++ {
		f.store.addNote(f.acme.ID, "u1", fmt.Sprintf("note %d", i))
	}

	adminToken := f.token(t, f.acme.ID, models.RoleAdmin)

	// At 2, the third create succeeds.
	rec := f.do(http.MethodPost, "/notes", adminToken, `{"title":"third","content":"c"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 3, f.store.countNotes(f.acme.ID))

	// At 3, the fourth is denied; admins see the self-service upgrade hint.
	rec = f.do(http.MethodPost, "/notes", adminToken, `{"title":"fourth","content":"c"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error      string `json:"error"`
		CanUpgrade bool   `json:"canUpgrade"`
		Message    string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Plan limit reached", body.Error)
	assert.True(t, body.CanUpgrade)
	assert.NotEmpty(t, body.Message)

	// Members cannot self-serve the upgrade.
	memberToken := f.token(t, f.acme.ID, models.RoleMember)
	rec = f.do(http.MethodPost, "/notes", memberToken, `{"title":"fourth","content":"c"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.CanUpgrade)

	// Count never overshot.
	assert.Equal(t, 3, f.store.countNotes(f.acme.ID))

	// The other tenant is unaffected by acme's quota state.
	rec = f.do(http.MethodPost, "/notes", f.token(t, f.globex.ID, models.RoleMember), `{"title":"g","content":"c"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestConcurrentCreatesNeverOvershootQuota(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < models.FreePlanNoteLimit-1; i++ {
		f.store.addNote(f.acme.ID, "u1", fmt.Sprintf("note %d", i))
	}
	token := f.token(t, f.acme.ID, models.RoleMember)

	const attempts = 8
	codes := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := f.do(http.MethodPost, "/notes", token, `{"title":"racer","content":"c"}`)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	created, denied := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusForbidden:
			denied++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, denied)
	assert.Equal(t, models.FreePlanNoteLimit, f.store.countNotes(f.acme.ID))
}

func TestUpgradeTenant(t *testing.T) {
	f := newFixture(t)
	adminToken := f.token(t, f.acme.ID, models.RoleAdmin)
	memberToken := f.token(t, f.acme.ID, models.RoleMember)

	t.Run("member is forbidden", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/tenants/acme/upgrade", memberToken, "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, models.PlanFree, f.store.tenants[f.acme.ID].Plan)
	})

	t.Run("foreign slug looks missing", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/tenants/globex/upgrade", adminToken, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, models.PlanFree, f.store.tenants[f.globex.ID].Plan)
	})

	t.Run("admin upgrades own tenant once", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/tenants/acme/upgrade", adminToken, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Tenant struct {
				Plan string `json:"plan"`
			} `json:"tenant"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "Pro", body.Tenant.Plan)

		rec = f.do(http.MethodPost, "/tenants/acme/upgrade", adminToken, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pro tenant is unbounded", func(t *testing.T) {
		for i := 0; i < models.FreePlanNoteLimit+2; i++ {
			rec := f.do(http.MethodPost, "/notes", memberToken, `{"title":"n","content":"c"}`)
			require.Equal(t, http.StatusCreated, rec.Code)
		}
	})
}

func TestDeleteFreesQuota(t *testing.T) {
	f := newFixture(t)
	var lastID string
	for i := 0; i < models.FreePlanNoteLimit; i++ {
		note := f.store.addNote(f.acme.ID, "u1", fmt.Sprintf("note %d", i))
		lastID = note.ID
	}
	token := f.token(t, f.acme.ID, models.RoleMember)

	rec := f.do(http.MethodPost, "/notes", token, `{"title":"over","content":"c"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodDelete, "/notes/"+lastID, token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/notes", token, `{"title":"fits","content":"c"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
