package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"catchcert/internal/audit"
	"catchcert/internal/certificate/cache"
	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/ownership"
	"catchcert/internal/certificate/store"
	id "catchcert/pkg/domain"
	dErrors "catchcert/pkg/domain-errors"
	"catchcert/pkg/platform/sentinel"
	"catchcert/pkg/requestcontext"
)

// txRunner is implemented by stores that can group writes into a single
// transaction. Stores without it (the memory store) run the writes directly.
type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CloneOptions controls how a document is copied to a new number.
type CloneOptions struct {
	// ExcludeLinkedData drops linked sub-records (landing entries under each
	// product) from the copy instead of cloning them.
	ExcludeLinkedData bool
	// RequestedByAdmin skips the ownership scope on the source lookup; the
	// clone is still created under the requesting owner.
	RequestedByAdmin bool
	// VoidOriginal marks the source with a voided-parent flag. The source's
	// own status is untouched.
	VoidOriginal bool
}

// Clone copies a document under a freshly allocated number. Every identifier
// in the payload namespaced by the source number is re-prefixed with the new
// number, so clone and original never alias a child identifier. The copy is
// fully independent: later patches to either document are invisible on the
// other. A missing or unowned source is a hard failure, unlike the silent
// no-ops of the mutation engine, because cloning nothing has no defensible
// result to return.
func (s *DocumentService) Clone(ctx context.Context, owner ownership.Owner, source id.DocumentNumber, opts CloneOptions) (id.DocumentNumber, error) {
	ctx, span := s.tracer.Start(ctx, "DocumentService.Clone",
		trace.WithAttributes(attribute.String("document.source", source.String())))
	defer span.End()

	ownerPred, err := owner.Predicate()
	if err != nil {
		return "", err
	}
	sourcePred := ownerPred.And(store.Eq(store.FieldDocumentNumber, source.String()))
	if opts.RequestedByAdmin {
		sourcePred = store.Predicate{All: []store.Clause{
			store.Eq(store.FieldDocumentNumber, source.String()),
		}}
	}

	src, err := s.store.FindOne(ctx, sourcePred)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Newf(dErrors.CodeNotFound,
			"clone source %s not found for owner %s", source, owner.Identifier())
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "load clone source")
	}

	number, err := s.numbers.Allocate(ctx, src.Journey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "allocate document number")
	}

	now := requestcontext.Now(ctx)
	clone := src.DeepCopy()
	clone.DocumentNumber = number
	clone.Status = models.StatusDraft
	clone.ClonedFrom = source
	clone.CreatedBy = owner.CreatedBy
	clone.ContactID = owner.ContactID
	clone.CreatedByEmail = ""
	clone.DocumentURI = ""
	clone.ParentVoided = false
	clone.CreatedAt = now
	clone.UpdatedAt = now
	clone.ExportData = renamespace(clone.ExportData, source.ChildPrefix(), number.ChildPrefix())
	if opts.ExcludeLinkedData {
		stripLinkedData(clone.ExportData)
	}

	// Inserting the clone and flagging the parent land together or not at
	// all when the store supports transactions.
	write := func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }
	if tr, ok := s.store.(txRunner); ok {
		write = tr.WithinTx
	}
	if err := write(ctx, func(ctx context.Context) error {
		if err := s.store.Insert(ctx, clone); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert clone")
		}
		if opts.VoidOriginal {
			// Flag write only; deliberately no status filter, the flag is
			// legal on finalized sources.
			flag := store.NewUpdate().Set(store.FieldParentVoided, true)
			if _, err := s.store.UpdateOne(ctx, store.Predicate{All: []store.Clause{
				store.Eq(store.FieldDocumentNumber, source.String()),
			}}, flag); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "flag voided parent")
			}
		}
		return nil
	}); err != nil {
		return "", err
	}

	paths := []string{cache.DraftHeadersPath(clone.Journey)}
	if opts.VoidOriginal {
		paths = append(paths, cache.DocumentPath(source))
	}
	if err := s.cache.Invalidate(ctx, owner, paths...); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "invalidate after clone")
	}
	s.metrics.IncrementCloned()
	s.emit(ctx, audit.ActionDocumentCloned, number, owner, map[string]any{"clonedFrom": source.String()})
	return number, nil
}

// renamespace walks the payload and rewrites every string value carrying the
// old document-number prefix to carry the new one, suffix unchanged.
func renamespace(v map[string]any, oldPrefix, newPrefix string) map[string]any {
	out, _ := rewriteValue(v, oldPrefix, newPrefix).(map[string]any)
	return out
}

func rewriteValue(v any, oldPrefix, newPrefix string) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = rewriteValue(val, oldPrefix, newPrefix)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = rewriteValue(val, oldPrefix, newPrefix)
		}
		return out
	case string:
		if strings.HasPrefix(x, oldPrefix) {
			return newPrefix + strings.TrimPrefix(x, oldPrefix)
		}
		return x
	default:
		return v
	}
}

// stripLinkedData removes the landing entries linked under each product. A
// product with no landings is left as-is.
func stripLinkedData(payload map[string]any) {
	products, ok := payload["products"].([]any)
	if !ok {
		return
	}
	for _, p := range products {
		if product, ok := p.(map[string]any); ok {
			delete(product, "landings")
		}
	}
}
