package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"catchcert/internal/audit"
	"catchcert/internal/certificate/cache"
	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/ownership"
	"catchcert/internal/certificate/store"
	id "catchcert/pkg/domain"
	dErrors "catchcert/pkg/domain-errors"
	"catchcert/pkg/requestcontext"
)

// Patch applies a partial update to a document, but only while its status is
// mutable and the caller owns it. The match check and the write are one
// conditional store update; zero matches means the caller raced a completion
// (or never owned the document) and the patch is deliberately dropped without
// error — a lost edit against a finalized document is the accepted outcome.
func (s *DocumentService) Patch(ctx context.Context, owner ownership.Owner, number id.DocumentNumber, spec *store.UpdateSpec) error {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Patch",
		trace.WithAttributes(attribute.String("document.number", number.String())))
	defer span.End()

	if spec.Empty() {
		return nil
	}
	pred, err := owner.Predicate()
	if err != nil {
		return err
	}

	stamped := spec.Clone().Set(store.FieldUpdatedAt, requestcontext.Now(ctx))
	matched, err := s.store.UpdateOne(ctx,
		pred.And(
			store.Eq(store.FieldDocumentNumber, number.String()),
			store.In(store.FieldStatus, statusValues(models.MutableStatuses())...),
		),
		stamped,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "patch document")
	}
	if matched == 0 {
		s.metrics.IncrementPatchDropped()
		s.logger.Debug("patch dropped: document absent, not owned, or no longer mutable",
			"documentNumber", number)
		return nil
	}

	if err := s.cache.Invalidate(ctx, owner, invalidationPaths(number)...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "invalidate after patch")
	}
	s.emit(ctx, audit.ActionDocumentPatched, number, owner, nil)
	return nil
}

// SetStatus transitions a document to the target status, conditional on the
// current status being mutable. A concurrent transition away from the mutable
// set makes this a zero-match no-op, which is reported as success. COMPLETE is
// not reachable here: completion stamps extra fields and goes through
// Complete.
func (s *DocumentService) SetStatus(ctx context.Context, owner ownership.Owner, number id.DocumentNumber, target models.Status) error {
	ctx, span := s.tracer.Start(ctx, "DocumentService.SetStatus",
		trace.WithAttributes(
			attribute.String("document.number", number.String()),
			attribute.String("status.target", string(target)),
		))
	defer span.End()

	if !target.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid status %q", target)
	}
	if target == models.StatusComplete {
		return dErrors.New(dErrors.CodeBadRequest, "completion must go through Complete")
	}
	pred, err := owner.Predicate()
	if err != nil {
		return err
	}

	spec := store.NewUpdate().
		Set(store.FieldStatus, string(target)).
		Set(store.FieldUpdatedAt, requestcontext.Now(ctx))
	matched, err := s.store.UpdateOne(ctx,
		pred.And(
			store.Eq(store.FieldDocumentNumber, number.String()),
			store.In(store.FieldStatus, statusValues(models.MutableStatuses())...),
		),
		spec,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set document status")
	}
	if matched == 0 {
		return nil
	}

	if err := s.cache.Invalidate(ctx, owner, invalidationPaths(number)...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "invalidate after status change")
	}
	s.emit(ctx, audit.ActionStatusChanged, number, owner, map[string]any{"status": string(target)})
	return nil
}

// VoidDraft voids a document while it is still in a mutable status.
func (s *DocumentService) VoidDraft(ctx context.Context, owner ownership.Owner, number id.DocumentNumber) error {
	return s.SetStatus(ctx, owner, number, models.StatusVoid)
}

// Complete moves a document from DRAFT or PENDING to COMPLETE exactly once,
// stamping the generated document URI, the completing caller's email and a
// fresh completion timestamp. An already-complete or absent document is a
// silent success; the losing side of a double-submit sees no error.
func (s *DocumentService) Complete(ctx context.Context, owner ownership.Owner, number id.DocumentNumber, documentURI, byEmail string) error {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Complete",
		trace.WithAttributes(attribute.String("document.number", number.String())))
	defer span.End()

	pred, err := owner.Predicate()
	if err != nil {
		return err
	}

	now := requestcontext.Now(ctx)
	spec := store.NewUpdate().
		Set(store.FieldStatus, string(models.StatusComplete)).
		Set(store.FieldDocumentURI, documentURI).
		Set(store.FieldCreatedByEmail, byEmail).
		Set(store.FieldCreatedAt, now).
		Set(store.FieldUpdatedAt, now)
	matched, err := s.store.UpdateOne(ctx,
		pred.And(
			store.Eq(store.FieldDocumentNumber, number.String()),
			store.In(store.FieldStatus, statusValues(models.CompletableStatuses())...),
		),
		spec,
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "complete document")
	}
	if matched == 0 {
		return nil
	}

	// The document now belongs to the completion month's bucket; the bucket
	// for its previous period, if any, went stale with the headers entry.
	paths := append(invalidationPaths(number), completedBucketPaths(number, now)...)
	if err := s.cache.Invalidate(ctx, owner, paths...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "invalidate after completion")
	}
	s.metrics.IncrementCompleted()
	s.emit(ctx, audit.ActionDocumentCompleted, number, owner, map[string]any{"documentUri": documentURI})
	return nil
}

// DeleteDraft removes a document while its status is still mutable. Deleting
// a finalized or foreign document matches zero rows and is a silent no-op.
func (s *DocumentService) DeleteDraft(ctx context.Context, owner ownership.Owner, number id.DocumentNumber) error {
	ctx, span := s.tracer.Start(ctx, "DocumentService.DeleteDraft",
		trace.WithAttributes(attribute.String("document.number", number.String())))
	defer span.End()

	pred, err := owner.Predicate()
	if err != nil {
		return err
	}

	deleted, err := s.store.Delete(ctx,
		pred.And(
			store.Eq(store.FieldDocumentNumber, number.String()),
			store.In(store.FieldStatus, statusValues(models.MutableStatuses())...),
		),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete draft")
	}
	if deleted == 0 {
		return nil
	}

	if err := s.cache.Invalidate(ctx, owner, invalidationPaths(number)...); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "invalidate after delete")
	}
	s.metrics.IncrementDeleted()
	s.emit(ctx, audit.ActionDocumentDeleted, number, owner, nil)
	return nil
}

// completedBucketPaths names the month buckets a completion makes stale. When
// the journey cannot be recovered from the number, every journey's bucket for
// the period is dropped.
func completedBucketPaths(number id.DocumentNumber, at time.Time) []string {
	if journey, ok := models.JourneyFromNumber(number); ok {
		return []string{cache.CompletedHeadersPath(journey, int(at.Month()), at.Year())}
	}
	var paths []string
	for _, journey := range allJourneys() {
		paths = append(paths, cache.CompletedHeadersPath(journey, int(at.Month()), at.Year()))
	}
	return paths
}
