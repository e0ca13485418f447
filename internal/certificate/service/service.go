// Package service implements the document lifecycle engine: ownership-scoped
// reads through the draft cache, status-guarded conditional mutations, and
// the clone engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"catchcert/internal/audit"
	"catchcert/internal/certificate/cache"
	"catchcert/internal/certificate/metrics"
	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/numbering"
	"catchcert/internal/certificate/ownership"
	"catchcert/internal/certificate/store"
	id "catchcert/pkg/domain"
	dErrors "catchcert/pkg/domain-errors"
	"catchcert/pkg/platform/sentinel"
	"catchcert/pkg/requestcontext"
)

// DocumentService orchestrates the document lifecycle. All reads and writes
// carry the caller's ownership predicate; all writes are conditional on the
// status sets the state machine allows, so losing a race degrades to a
// zero-match no-op instead of corrupting a finalized document.
type DocumentService struct {
	store   store.DocumentStore
	cache   *cache.DraftCache
	numbers numbering.Authority
	audit   audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a DocumentService.
type Option func(*DocumentService)

// WithAuditPublisher sets the lifecycle event publisher.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *DocumentService) { s.audit = p }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *DocumentService) { s.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DocumentService) { s.metrics = m }
}

// New constructs the lifecycle engine over its three collaborators.
func New(docs store.DocumentStore, draftCache *cache.DraftCache, numbers numbering.Authority, opts ...Option) (*DocumentService, error) {
	if docs == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if draftCache == nil {
		return nil, fmt.Errorf("draft cache is required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("numbering authority is required")
	}
	s := &DocumentService{
		store:   docs,
		cache:   draftCache,
		numbers: numbers,
		audit:   audit.NopPublisher{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("catchcert/certificate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateDraft allocates a fresh document number and persists a new DRAFT
// document owned by the caller.
func (s *DocumentService) CreateDraft(ctx context.Context, owner ownership.Owner, journey models.Journey, userReference string) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.CreateDraft",
		trace.WithAttributes(attribute.String("journey", journey.String())))
	defer span.End()

	if _, err := owner.Predicate(); err != nil {
		return nil, err
	}
	if !journey.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid journey %q", journey)
	}

	number, err := s.numbers.Allocate(ctx, journey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "allocate document number")
	}

	now := requestcontext.Now(ctx)
	doc := &models.Document{
		DocumentNumber: number,
		Journey:        journey,
		Status:         models.StatusDraft,
		CreatedBy:      owner.CreatedBy,
		ContactID:      owner.ContactID,
		UserReference:  userReference,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExportData:     map[string]any{},
	}
	if err := s.store.Insert(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert draft")
	}

	if err := s.cache.Invalidate(ctx, owner, cache.DraftHeadersPath(journey)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "invalidate draft headers")
	}
	s.metrics.IncrementCreated()
	s.emit(ctx, audit.ActionDocumentCreated, number, owner, nil)
	return doc, nil
}

// Get returns the caller's view of a document, serving from the cache and
// reading through to the store on a miss. Absence and ownership denial are
// indistinguishable: both return (nil, nil). Negative results are cached as
// tombstones so repeated probes stay off the store.
func (s *DocumentService) Get(ctx context.Context, owner ownership.Owner, number id.DocumentNumber) (*models.Document, error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Get",
		trace.WithAttributes(attribute.String("document.number", number.String())))
	defer span.End()

	pred, err := owner.Predicate()
	if err != nil {
		return nil, err
	}

	if doc, hit := s.cache.GetDocument(ctx, owner, number); hit {
		return doc, nil
	}

	doc, err := s.store.FindOne(ctx, pred.And(store.Eq(store.FieldDocumentNumber, number.String())))
	if errors.Is(err, sentinel.ErrNotFound) {
		s.cache.PutDocument(ctx, owner, number, nil)
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load document")
	}
	s.cache.PutDocument(ctx, owner, number, doc)
	return doc, nil
}

// DraftHeaders returns the owner's mutable-status documents for a journey,
// newest first. Non-empty results are cached under <journey>/draftHeaders.
func (s *DocumentService) DraftHeaders(ctx context.Context, owner ownership.Owner, journey models.Journey) ([]models.DocumentHeader, error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.DraftHeaders",
		trace.WithAttributes(attribute.String("journey", journey.String())))
	defer span.End()

	pred, err := owner.Predicate()
	if err != nil {
		return nil, err
	}

	path := cache.DraftHeadersPath(journey)
	if headers, hit := s.cache.GetHeaders(ctx, owner, path, "draftHeaders"); hit {
		return headers, nil
	}

	docs, err := s.store.FindMany(ctx,
		pred.And(
			store.Eq(store.FieldJourney, string(journey)),
			store.In(store.FieldStatus, statusValues(models.MutableStatuses())...),
		),
		store.Sort{Path: store.FieldCreatedAt, Desc: true},
		store.Page{},
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list drafts")
	}

	headers := projectHeaders(docs)
	s.cache.PutHeaders(ctx, owner, path, headers)
	return headers, nil
}

// CompletedHeaders returns the owner's COMPLETE documents for a month bucket.
// The unpaginated view is cached under <journey>/completedHeaders/<month>-<year>;
// explicit pages bypass the cache.
func (s *DocumentService) CompletedHeaders(ctx context.Context, owner ownership.Owner, journey models.Journey, month, year int, page store.Page) ([]models.DocumentHeader, error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.CompletedHeaders",
		trace.WithAttributes(
			attribute.String("journey", journey.String()),
			attribute.Int("month", month),
			attribute.Int("year", year),
		))
	defer span.End()

	pred, err := owner.Predicate()
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid month %d", month)
	}

	cacheable := page == (store.Page{})
	path := cache.CompletedHeadersPath(journey, month, year)
	if cacheable {
		if headers, hit := s.cache.GetHeaders(ctx, owner, path, "completedHeaders"); hit {
			return headers, nil
		}
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	docs, err := s.store.FindMany(ctx,
		pred.And(
			store.Eq(store.FieldJourney, string(journey)),
			store.Eq(store.FieldStatus, string(models.StatusComplete)),
			store.Gte(store.FieldCreatedAt, from),
			store.Lt(store.FieldCreatedAt, from.AddDate(0, 1, 0)),
		),
		store.Sort{Path: store.FieldCreatedAt, Desc: true},
		page,
	)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list completed documents")
	}

	headers := projectHeaders(docs)
	if cacheable {
		s.cache.PutHeaders(ctx, owner, path, headers)
	}
	return headers, nil
}

// emit publishes a lifecycle event best-effort: the store write has already
// committed, so a publisher failure is logged, never surfaced.
func (s *DocumentService) emit(ctx context.Context, action audit.Action, number id.DocumentNumber, owner ownership.Owner, details map[string]any) {
	event := audit.Event{
		ID:             uuid.NewString(),
		Action:         action,
		DocumentNumber: number.String(),
		Owner:          owner.Identifier(),
		At:             requestcontext.Now(ctx),
		Details:        details,
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.Warn("audit emit failed", "action", action, "documentNumber", number, "error", err)
	}
}

// invalidationPaths returns the cache paths whose content depends on the
// document: its own entry plus the journey's draft headers. When the journey
// cannot be recovered from the number, every journey's headers are dropped
// rather than risking a stale listing.
func invalidationPaths(number id.DocumentNumber) []string {
	paths := []string{cache.DocumentPath(number)}
	if journey, ok := models.JourneyFromNumber(number); ok {
		return append(paths, cache.DraftHeadersPath(journey))
	}
	for _, journey := range allJourneys() {
		paths = append(paths, cache.DraftHeadersPath(journey))
	}
	return paths
}

func allJourneys() []models.Journey {
	return []models.Journey{
		models.JourneyCatchCertificate,
		models.JourneyProcessingStatement,
		models.JourneyStorageDocument,
	}
}

func statusValues(statuses []models.Status) []any {
	out := make([]any, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func projectHeaders(docs []models.Document) []models.DocumentHeader {
	headers := make([]models.DocumentHeader, 0, len(docs))
	for i := range docs {
		headers = append(headers, docs[i].Header())
	}
	return headers
}
