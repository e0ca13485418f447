package store

import (
	"context"

	"catchcert/internal/certificate/models"
)

// DocumentStore is the durable, queryable document collection. Implementations
// are interface-driven so the service stays testable against the in-memory
// store while production runs on PostgreSQL.
//
// Contract notes:
//   - FindOne returns sentinel.ErrNotFound when no document matches; callers
//     must not distinguish "absent" from "denied by ownership".
//   - UpdateOne applies the spec conditionally and returns the matched count.
//     The predicate must pin a document number, so at most one row matches.
//     Zero matches is not an error: status guards rely on conditional updates
//     degrading to no-ops under races.
//   - Returned documents share no mutable references with store internals.
type DocumentStore interface {
	Insert(ctx context.Context, doc *models.Document) error
	FindOne(ctx context.Context, pred Predicate) (*models.Document, error)
	FindMany(ctx context.Context, pred Predicate, sort Sort, page Page) ([]models.Document, error)
	UpdateOne(ctx context.Context, pred Predicate, spec *UpdateSpec) (int64, error)
	Delete(ctx context.Context, pred Predicate) (int64, error)
}
