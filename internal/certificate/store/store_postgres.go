package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"

	"catchcert/internal/certificate/models"
	id "catchcert/pkg/domain"
	"catchcert/pkg/platform/sentinel"
	"catchcert/pkg/platform/tx"
)

// Schema creates the document table. Applied at bootstrap; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS export_documents (
	document_number  TEXT PRIMARY KEY,
	journey          TEXT NOT NULL,
	status           TEXT NOT NULL,
	created_by       TEXT,
	created_by_email TEXT,
	contact_id       TEXT,
	user_reference   TEXT,
	document_uri     TEXT,
	cloned_from      TEXT,
	parent_voided    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	export_data      JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS export_documents_created_by_idx ON export_documents (created_by);
CREATE INDEX IF NOT EXISTS export_documents_contact_id_idx ON export_documents (contact_id);
CREATE INDEX IF NOT EXISTS export_documents_status_idx ON export_documents (status);
`

// columns maps dotted top-level paths to table columns. Paths under
// "exportData." compile to JSONB path expressions instead.
var columns = map[string]string{
	FieldDocumentNumber: "document_number",
	FieldJourney:        "journey",
	FieldStatus:         "status",
	FieldCreatedBy:      "created_by",
	FieldCreatedByEmail: "created_by_email",
	FieldContactID:      "contact_id",
	FieldUserReference:  "user_reference",
	FieldDocumentURI:    "document_uri",
	FieldClonedFrom:     "cloned_from",
	FieldParentVoided:   "parent_voided",
	FieldCreatedAt:      "created_at",
	FieldUpdatedAt:      "updated_at",
}

const selectColumns = `document_number, journey, status, created_by, created_by_email, contact_id,
	user_reference, document_uri, cloned_from, parent_voided, created_at, updated_at, export_data`

const exportDataPrefix = "exportData."

var pathSegment = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// PostgresStore persists documents in PostgreSQL with the opaque payload in a
// JSONB column, so dotted-path predicates and partial updates compile to
// single conditional statements. Conditional writes (match on number plus the
// mutable status set) are what make concurrent transitions race-safe.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed document store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction carried by the context when one is present,
// so callers can group store operations into a single transaction.
func (s *PostgresStore) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// WithinTx runs fn with a transaction in its context; every store call made
// through that context joins the transaction. Rolls back on error.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres store: begin transaction: %w", err)
	}
	if err := fn(tx.WithTx(ctx, t)); err != nil {
		_ = t.Rollback()
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("postgres store: commit transaction: %w", err)
	}
	return nil
}

// EnsureSchema applies the document table schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.q(ctx).ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure document schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, doc *models.Document) error {
	if doc == nil || doc.DocumentNumber.IsZero() {
		return fmt.Errorf("postgres store: document number is required")
	}
	payload, err := json.Marshal(doc.ExportData)
	if err != nil {
		return fmt.Errorf("postgres store: encode payload: %w", err)
	}
	if doc.ExportData == nil {
		payload = []byte(`{}`)
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO export_documents (`+selectColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		doc.DocumentNumber.String(), string(doc.Journey), string(doc.Status),
		nullable(doc.CreatedBy.String()), nullable(doc.CreatedByEmail),
		nullable(doc.ContactID.String()), nullable(doc.UserReference),
		nullable(doc.DocumentURI), nullable(doc.ClonedFrom.String()),
		doc.ParentVoided, doc.CreatedAt, doc.UpdatedAt, payload,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("postgres store: duplicate document number %s: %w",
				doc.DocumentNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("postgres store: insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOne(ctx context.Context, pred Predicate) (*models.Document, error) {
	where, args, err := compilePredicate(pred, 1)
	if err != nil {
		return nil, err
	}
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM export_documents WHERE `+where+` LIMIT 1`, args...)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: find document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) FindMany(ctx context.Context, pred Predicate, sortBy Sort, page Page) ([]models.Document, error) {
	where, args, err := compilePredicate(pred, 1)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + selectColumns + ` FROM export_documents WHERE ` + where
	if sortBy.Path != "" {
		col, ok := columns[sortBy.Path]
		if !ok {
			return nil, fmt.Errorf("postgres store: unsortable path %q", sortBy.Path)
		}
		query += " ORDER BY " + col
		if sortBy.Desc {
			query += " DESC"
		}
	}
	if page.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", page.Offset)
	}

	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: list documents: %w", err)
	}
	return out, nil
}

// UpdateOne compiles the spec into a single conditional UPDATE so the match
// check and the write are atomic at the store; a racing transition that
// removed the document from the predicate simply yields zero rows.
func (s *PostgresStore) UpdateOne(ctx context.Context, pred Predicate, spec *UpdateSpec) (int64, error) {
	if spec.Empty() {
		return 0, nil
	}
	sets, args, next, err := compileChanges(spec, 1)
	if err != nil {
		return 0, err
	}
	where, whereArgs, err := compilePredicate(pred, next)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)

	// The predicate compiles straight into the UPDATE's WHERE so the status
	// guard is re-evaluated on the locked row itself; routing it through a
	// snapshot subquery would let a row finalized by a concurrent writer
	// slip past the recheck on its number alone. Callers pin the document
	// number, so at most one row can match.
	query := `UPDATE export_documents SET ` + strings.Join(sets, ", ") + ` WHERE ` + where
	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres store: update document: %w", err)
	}
	matched, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres store: rows affected: %w", err)
	}
	return matched, nil
}

func (s *PostgresStore) Delete(ctx context.Context, pred Predicate) (int64, error) {
	where, args, err := compilePredicate(pred, 1)
	if err != nil {
		return 0, err
	}
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM export_documents WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres store: delete documents: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres store: rows affected: %w", err)
	}
	return deleted, nil
}

// -----------------------------------------------------------------------------
// SQL compilation
// -----------------------------------------------------------------------------

func compilePredicate(pred Predicate, firstArg int) (string, []any, error) {
	if len(pred.Any) == 0 && len(pred.All) == 0 {
		return "", nil, fmt.Errorf("postgres store: refusing unconstrained predicate")
	}
	var (
		parts []string
		args  []any
		n     = firstArg
	)
	if len(pred.Any) > 0 {
		var anyParts []string
		for _, c := range pred.Any {
			sqlPart, clauseArgs, next, err := compileClause(c, n)
			if err != nil {
				return "", nil, err
			}
			anyParts = append(anyParts, sqlPart)
			args = append(args, clauseArgs...)
			n = next
		}
		parts = append(parts, "("+strings.Join(anyParts, " OR ")+")")
	}
	for _, c := range pred.All {
		sqlPart, clauseArgs, next, err := compileClause(c, n)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sqlPart)
		args = append(args, clauseArgs...)
		n = next
	}
	return strings.Join(parts, " AND "), args, nil
}

func compileClause(c Clause, n int) (string, []any, int, error) {
	expr, textual, err := fieldExpr(c.Path)
	if err != nil {
		return "", nil, n, err
	}
	switch c.Op {
	case OpEq:
		return fmt.Sprintf("%s = $%d", expr, n), []any{clauseArg(c.Value, textual)}, n + 1, nil
	case OpIn:
		vals := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			vals = append(vals, fmt.Sprintf("%v", v))
		}
		return fmt.Sprintf("%s = ANY($%d)", expr, n), []any{pq.Array(vals)}, n + 1, nil
	case OpGte:
		return fmt.Sprintf("%s >= $%d", expr, n), []any{clauseArg(c.Value, textual)}, n + 1, nil
	case OpLt:
		return fmt.Sprintf("%s < $%d", expr, n), []any{clauseArg(c.Value, textual)}, n + 1, nil
	}
	return "", nil, n, fmt.Errorf("postgres store: unknown clause op %d", c.Op)
}

// fieldExpr maps a dotted path to a SQL expression. The second return reports
// whether the expression yields text (JSONB paths compare as text).
func fieldExpr(path string) (string, bool, error) {
	if col, ok := columns[path]; ok {
		return col, false, nil
	}
	if strings.HasPrefix(path, exportDataPrefix) {
		lit, err := jsonbPath(strings.TrimPrefix(path, exportDataPrefix))
		if err != nil {
			return "", false, err
		}
		return "export_data #>> '" + lit + "'", true, nil
	}
	return "", false, fmt.Errorf("postgres store: unknown field path %q", path)
}

// jsonbPath renders a dotted payload path as a JSONB path literal. Segments
// are restricted to identifier characters; the literal is inlined into SQL.
func jsonbPath(path string) (string, error) {
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if !pathSegment.MatchString(seg) {
			return "", fmt.Errorf("postgres store: invalid payload path segment %q", seg)
		}
	}
	return "{" + strings.Join(segs, ",") + "}", nil
}

func clauseArg(v any, textual bool) any {
	switch x := v.(type) {
	case time.Time, bool:
		if textual {
			return fmt.Sprintf("%v", x)
		}
		return x
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}

// compileChanges turns an update spec into SET fragments. Payload operations
// fold into one export_data expression applied in change order; intermediate
// objects are created with COALESCE-guarded jsonb_set chains.
func compileChanges(spec *UpdateSpec, firstArg int) ([]string, []any, int, error) {
	var (
		sets        []string
		args        []any
		n           = firstArg
		payloadExpr = "export_data"
		hasPayload  = false
	)
	for _, ch := range spec.Changes() {
		if col, ok := columns[ch.Path]; ok {
			switch ch.Op {
			case OpSet:
				sets = append(sets, fmt.Sprintf("%s = $%d", col, n))
				args = append(args, clauseArg(ch.Value, false))
				n++
			case OpUnset:
				sets = append(sets, col+" = NULL")
			default:
				return nil, nil, n, fmt.Errorf("postgres store: op %d unsupported on column %s", ch.Op, col)
			}
			continue
		}
		if !strings.HasPrefix(ch.Path, exportDataPrefix) {
			return nil, nil, n, fmt.Errorf("postgres store: unknown field path %q", ch.Path)
		}
		lit, err := jsonbPath(strings.TrimPrefix(ch.Path, exportDataPrefix))
		if err != nil {
			return nil, nil, n, err
		}
		hasPayload = true
		switch ch.Op {
		case OpSet:
			payloadExpr = ensureParents(payloadExpr, lit)
			payloadExpr = fmt.Sprintf("jsonb_set(%s, '%s', $%d::jsonb, true)", payloadExpr, lit, n)
			args = append(args, jsonArg(ch.Value))
			n++
		case OpUnset:
			payloadExpr = fmt.Sprintf("(%s #- '%s')", payloadExpr, lit)
		case OpPush:
			payloadExpr = ensureParents(payloadExpr, lit)
			payloadExpr = fmt.Sprintf(
				"jsonb_set(%s, '%s', COALESCE(%s #> '%s', '[]'::jsonb) || $%d::jsonb, true)",
				payloadExpr, lit, payloadExpr, lit, n)
			args = append(args, jsonArg(ch.Value))
			n++
		}
	}
	if hasPayload {
		sets = append(sets, "export_data = "+payloadExpr)
	}
	if len(sets) == 0 {
		return nil, nil, n, fmt.Errorf("postgres store: update spec produced no assignments")
	}
	return sets, args, n, nil
}

// ensureParents wraps expr so every ancestor of the path literal exists as an
// object; jsonb_set only creates the final key, not missing intermediates.
func ensureParents(expr, lit string) string {
	segs := strings.Split(strings.Trim(lit, "{}"), ",")
	for i := 1; i < len(segs); i++ {
		parent := "{" + strings.Join(segs[:i], ",") + "}"
		expr = fmt.Sprintf("jsonb_set(%s, '%s', COALESCE(%s #> '%s', '{}'::jsonb), true)",
			expr, parent, expr, parent)
	}
	return expr
}

func jsonArg(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(raw)
}

// -----------------------------------------------------------------------------
// Row scanning
// -----------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc         models.Document
		number      string
		journey     string
		status      string
		createdBy   sql.NullString
		email       sql.NullString
		contact     sql.NullString
		userRef     sql.NullString
		documentURI sql.NullString
		clonedFrom  sql.NullString
		payload     []byte
	)
	err := row.Scan(&number, &journey, &status, &createdBy, &email, &contact, &userRef,
		&documentURI, &clonedFrom, &doc.ParentVoided, &doc.CreatedAt, &doc.UpdatedAt, &payload)
	if err != nil {
		return nil, err
	}
	doc.DocumentNumber = id.DocumentNumber(number)
	doc.Journey = models.Journey(journey)
	doc.Status = models.Status(status)
	doc.CreatedBy = id.UserID(createdBy.String)
	doc.CreatedByEmail = email.String
	doc.ContactID = id.ContactID(contact.String)
	doc.UserReference = userRef.String
	doc.DocumentURI = documentURI.String
	doc.ClonedFrom = id.DocumentNumber(clonedFrom.String)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &doc.ExportData); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return &doc, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
