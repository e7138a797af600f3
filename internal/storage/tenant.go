package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"notehub-backend/internal/models"
)

func (s *Storage) CreateTenant(ctx context.Context, input models.CreateTenantInput) (*models.Tenant, error) {
	query := `
		INSERT INTO tenants (id, name, slug, plan)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, slug, plan, created_at
	`

	var tenant models.Tenant
	err := s.db.QueryRowContext(ctx, query, uuid.New().String(), input.Name, input.Slug, models.PlanFree).
		Scan(&tenant.ID, &tenant.Name, &tenant.Slug, &tenant.Plan, &tenant.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	return &tenant, nil
}

func (s *Storage) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	query := `
		SELECT id, name, slug, plan, created_at
		FROM tenants
		WHERE id = $1
	`

	var tenant models.Tenant
	err := s.db.GetContext(ctx, &tenant, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tenant, nil
}

func (s *Storage) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `
		SELECT id, name, slug, plan, created_at
		FROM tenants
		WHERE slug = $1
	`

	var tenant models.Tenant
	err := s.db.GetContext(ctx, &tenant, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tenant, nil
}

// UpgradePlan moves a tenant from Free to Pro. The lookup is scoped by both
// id and slug so a caller can only ever upgrade its own tenant; a slug that
// exists under another tenant is reported as not found. Re-upgrading a Pro
// tenant is rejected, not silently accepted.
func (s *Storage) UpgradePlan(ctx context.Context, tenantID, slug string) (*models.Tenant, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var tenant models.Tenant
	err = tx.GetContext(ctx, &tenant, `
		SELECT id, name, slug, plan, created_at
		FROM tenants
		WHERE id = $1 AND slug = $2
		FOR UPDATE
	`, tenantID, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	if tenant.Plan == models.PlanPro {
		return nil, ErrTenantAlreadyPro
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tenants SET plan = $1 WHERE id = $2`, models.PlanPro, tenant.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	tenant.Plan = models.PlanPro
	return &tenant, nil
}
