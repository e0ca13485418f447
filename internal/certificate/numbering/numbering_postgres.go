package numbering

import (
	"context"
	"database/sql"
	"fmt"

	"catchcert/internal/certificate/models"
	id "catchcert/pkg/domain"
)

// Schema creates the allocation sequence. Applied at bootstrap; idempotent.
const Schema = `CREATE SEQUENCE IF NOT EXISTS export_document_numbers;`

// PostgresAuthority allocates numbers from a PostgreSQL sequence, which is
// unique across concurrent callers and process restarts.
type PostgresAuthority struct {
	db *sql.DB
}

// NewPostgresAuthority constructs a sequence-backed allocator.
func NewPostgresAuthority(db *sql.DB) *PostgresAuthority {
	return &PostgresAuthority{db: db}
}

// EnsureSchema applies the sequence definition.
func (a *PostgresAuthority) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure numbering schema: %w", err)
	}
	return nil
}

func (a *PostgresAuthority) Allocate(ctx context.Context, journey models.Journey) (id.DocumentNumber, error) {
	var seq int64
	if err := a.db.QueryRowContext(ctx, `SELECT nextval('export_document_numbers')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("numbering: allocate sequence value: %w", err)
	}
	return format(ctx, journey, seq)
}
