//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/store"
	id "catchcert/pkg/domain"
	"catchcert/pkg/platform/sentinel"
	"catchcert/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "export_documents"))
}

func (s *PostgresStoreSuite) seed(number string, mutate func(*models.Document)) *models.Document {
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	doc := &models.Document{
		DocumentNumber: id.DocumentNumber(number),
		Journey:        models.JourneyCatchCertificate,
		Status:         models.StatusDraft,
		CreatedBy:      "user-1",
		CreatedAt:      created,
		UpdatedAt:      created,
		ExportData:     map[string]any{},
	}
	if mutate != nil {
		mutate(doc)
	}
	s.Require().NoError(s.store.Insert(s.ctx, doc))
	return doc
}

func (s *PostgresStoreSuite) TestInsertConflict() {
	s.seed("GBR-2026-CC-000000001", nil)
	err := s.store.Insert(s.ctx, &models.Document{
		DocumentNumber: "GBR-2026-CC-000000001",
		Journey:        models.JourneyCatchCertificate,
		Status:         models.StatusDraft,
	})
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindOneOwnershipDisjunction() {
	s.seed("GBR-2026-CC-000000002", func(d *models.Document) {
		d.CreatedBy = ""
		d.ExportData = map[string]any{
			"exporterDetails": map[string]any{"contactId": "contact-9"},
		}
	})

	doc, err := s.store.FindOne(s.ctx, store.Predicate{
		Any: []store.Clause{
			store.Eq(store.FieldCreatedBy, "nobody"),
			store.Eq(store.FieldContactID, "contact-9"),
			store.Eq(store.FieldExporterContact, "contact-9"),
		},
		All: []store.Clause{store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000002")},
	})
	s.Require().NoError(err)
	s.Equal("GBR-2026-CC-000000002", doc.DocumentNumber.String())

	_, err = s.store.FindOne(s.ctx, store.Predicate{
		Any: []store.Clause{store.Eq(store.FieldExporterContact, "someone-else")},
		All: []store.Clause{store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000002")},
	})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConditionalUpdate() {
	s.Run("matched update lands in the payload", func() {
		s.seed("GBR-2026-CC-000000003", nil)
		matched, err := s.store.UpdateOne(s.ctx,
			store.Predicate{All: []store.Clause{
				store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000003"),
				store.In(store.FieldStatus, "DRAFT", "PENDING", "LOCKED"),
			}},
			store.NewUpdate().
				Set("exportData.conservation.reference", "EU-1").
				Set(store.FieldUserReference, "march shipment"),
		)
		s.Require().NoError(err)
		s.Equal(int64(1), matched)

		doc, err := s.store.FindOne(s.ctx, store.Predicate{All: []store.Clause{
			store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000003"),
		}})
		s.Require().NoError(err)
		s.Equal("march shipment", doc.UserReference)
		conservation := doc.ExportData["conservation"].(map[string]any)
		s.Equal("EU-1", conservation["reference"])
	})

	s.Run("status guard produces a zero-match no-op", func() {
		s.seed("GBR-2026-CC-000000004", func(d *models.Document) {
			d.Status = models.StatusComplete
		})
		matched, err := s.store.UpdateOne(s.ctx,
			store.Predicate{All: []store.Clause{
				store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000004"),
				store.In(store.FieldStatus, "DRAFT", "PENDING", "LOCKED"),
			}},
			store.NewUpdate().Set(store.FieldUserReference, "should not land"),
		)
		s.Require().NoError(err)
		s.Zero(matched)
	})

	s.Run("push appends and unset removes", func() {
		s.seed("GBR-2026-CC-000000005", func(d *models.Document) {
			d.ExportData = map[string]any{"transport": map[string]any{"vehicle": "truck"}}
		})
		pred := store.Predicate{All: []store.Clause{
			store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000005"),
		}}

		_, err := s.store.UpdateOne(s.ctx, pred, store.NewUpdate().
			Push("exportData.products", map[string]any{"species": "COD"}).
			Push("exportData.products", map[string]any{"species": "HAD"}).
			Unset("exportData.transport.vehicle"))
		s.Require().NoError(err)

		doc, err := s.store.FindOne(s.ctx, pred)
		s.Require().NoError(err)
		products := doc.ExportData["products"].([]any)
		s.Require().Len(products, 2)
		s.Equal("COD", products[0].(map[string]any)["species"])
		_, has := doc.ExportData["transport"].(map[string]any)["vehicle"]
		s.False(has)
	})
}

// A writer that finalizes a document while another caller's conditional patch
// is waiting on the row lock must win: the status guard sits in the UPDATE's
// own WHERE, so it is re-evaluated against the committed row and the late
// patch matches zero rows instead of landing on a finalized document.
func (s *PostgresStoreSuite) TestStatusGuardHoldsAcrossConcurrentFinalize() {
	s.seed("GBR-2026-CC-000000030", nil)
	mutableByNumber := store.Predicate{All: []store.Clause{
		store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000030"),
		store.In(store.FieldStatus, "DRAFT", "PENDING", "LOCKED"),
	}}

	type result struct {
		matched int64
		err     error
	}
	patched := make(chan result, 1)

	s.Require().NoError(s.store.WithinTx(s.ctx, func(txCtx context.Context) error {
		matched, err := s.store.UpdateOne(txCtx, mutableByNumber,
			store.NewUpdate().Set(store.FieldStatus, "COMPLETE"))
		if err != nil {
			return err
		}
		s.Equal(int64(1), matched)

		// Starts while the transaction still holds the row lock; the patch
		// can only proceed once COMPLETE has committed.
		go func() {
			m, err := s.store.UpdateOne(s.ctx, mutableByNumber,
				store.NewUpdate().Set(store.FieldUserReference, "late patch"))
			patched <- result{matched: m, err: err}
		}()
		time.Sleep(200 * time.Millisecond)
		return nil
	}))

	res := <-patched
	s.Require().NoError(res.err)
	s.Zero(res.matched)

	doc, err := s.store.FindOne(s.ctx, store.Predicate{All: []store.Clause{
		store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000030"),
	}})
	s.Require().NoError(err)
	s.Equal(models.StatusComplete, doc.Status)
	s.Empty(doc.UserReference)
}

func (s *PostgresStoreSuite) TestFindManyPeriodAndSort() {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.seed("GBR-2026-CC-000000010", func(d *models.Document) {
		d.Status = models.StatusComplete
		d.CreatedAt = base
	})
	s.seed("GBR-2026-CC-000000011", func(d *models.Document) {
		d.Status = models.StatusComplete
		d.CreatedAt = base.Add(48 * time.Hour)
	})
	s.seed("GBR-2026-CC-000000012", func(d *models.Document) {
		d.Status = models.StatusComplete
		d.CreatedAt = base.AddDate(0, 1, 0)
	})

	docs, err := s.store.FindMany(s.ctx,
		store.Predicate{All: []store.Clause{
			store.Eq(store.FieldStatus, "COMPLETE"),
			store.Gte(store.FieldCreatedAt, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
			store.Lt(store.FieldCreatedAt, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
		}},
		store.Sort{Path: store.FieldCreatedAt, Desc: true},
		store.Page{},
	)
	s.Require().NoError(err)
	s.Require().Len(docs, 2)
	s.Equal("GBR-2026-CC-000000011", docs[0].DocumentNumber.String())
	s.Equal("GBR-2026-CC-000000010", docs[1].DocumentNumber.String())
}

func (s *PostgresStoreSuite) TestDeleteConditional() {
	s.seed("GBR-2026-CC-000000020", func(d *models.Document) {
		d.Status = models.StatusComplete
	})

	deleted, err := s.store.Delete(s.ctx, store.Predicate{All: []store.Clause{
		store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000020"),
		store.In(store.FieldStatus, "DRAFT", "PENDING", "LOCKED"),
	}})
	s.Require().NoError(err)
	s.Zero(deleted)

	deleted, err = s.store.Delete(s.ctx, store.Predicate{All: []store.Clause{
		store.Eq(store.FieldDocumentNumber, "GBR-2026-CC-000000020"),
	}})
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)
}
