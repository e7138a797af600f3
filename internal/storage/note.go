package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"notehub-backend/internal/models"
)

// Every note query takes the tenant id as an equality predicate. A note in
// another tenant is indistinguishable from a note that does not exist.

func (s *Storage) ListNotes(ctx context.Context, tenantID string) ([]models.Note, error) {
	query := `
		SELECT id, tenant_id, created_by, title, content, created_at, updated_at
		FROM notes
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`

	notes := make([]models.Note, 0)
	if err := s.db.SelectContext(ctx, &notes, query, tenantID); err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *Storage) GetNote(ctx context.Context, tenantID, id string) (*models.Note, error) {
	query := `
		SELECT id, tenant_id, created_by, title, content, created_at, updated_at
		FROM notes
		WHERE id = $1 AND tenant_id = $2
	`

	var note models.Note
	err := s.db.GetContext(ctx, &note, query, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}

	return &note, nil
}

// CreateNote inserts a note under the tenant's plan quota. The tenant row is
// locked for the duration of the transaction, which serializes the count and
// insert against concurrent creates for the same tenant; creates for other
// tenants touch other rows and do not contend. If the context is cancelled
// the transaction rolls back and no partial state remains.
func (s *Storage) CreateNote(ctx context.Context, tenantID, userID string, input models.NoteInput) (*models.Note, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var plan models.Plan
	err = tx.GetContext(ctx, &plan, `SELECT plan FROM tenants WHERE id = $1 FOR UPDATE`, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	if plan == models.PlanFree {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM notes WHERE tenant_id = $1`, tenantID); err != nil {
			return nil, err
		}
		if count >= models.FreePlanNoteLimit {
			return nil, ErrNoteLimitReached
		}
	}

	query := `
		INSERT INTO notes (id, tenant_id, created_by, title, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, created_by, title, content, created_at, updated_at
	`

	var note models.Note
	err = tx.QueryRowContext(ctx, query, uuid.New().String(), tenantID, userID, input.Title, input.Content).
		Scan(&note.ID, &note.TenantID, &note.CreatedBy, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *Storage) UpdateNote(ctx context.Context, tenantID, id string, input models.NoteInput) (*models.Note, error) {
	query := `
		UPDATE notes
		SET title = $1, content = $2, updated_at = NOW()
		WHERE id = $3 AND tenant_id = $4
		RETURNING id, tenant_id, created_by, title, content, created_at, updated_at
	`

	var note models.Note
	err := s.db.QueryRowContext(ctx, query, input.Title, input.Content, id, tenantID).
		Scan(&note.ID, &note.TenantID, &note.CreatedBy, &note.Title, &note.Content, &note.CreatedAt, &note.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}

	return &note, nil
}

func (s *Storage) DeleteNote(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoteNotFound
	}
	return nil
}
