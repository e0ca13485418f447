package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/ownership"
	id "catchcert/pkg/domain"
)

// failingClient errors on every operation; stands in for an unreachable Redis.
type failingClient struct{ err error }

func (f failingClient) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingClient) Set(context.Context, string, []byte) error   { return f.err }
func (f failingClient) Delete(context.Context, string) error        { return f.err }

type DraftCacheSuite struct {
	suite.Suite
	client *MemoryClient
	cache  *DraftCache
	ctx    context.Context
	owner  ownership.Owner
}

func TestDraftCacheSuite(t *testing.T) {
	suite.Run(t, new(DraftCacheSuite))
}

func (s *DraftCacheSuite) SetupTest() {
	s.client = NewMemoryClient()
	s.cache = New(s.client)
	s.ctx = context.Background()
	s.owner = ownership.Owner{ContactID: "contact-1"}
}

func (s *DraftCacheSuite) TestDocumentEntries() {
	number := id.DocumentNumber("GBR-2026-CC-000000001")

	s.Run("cold cache misses", func() {
		_, hit := s.cache.GetDocument(s.ctx, s.owner, number)
		s.False(hit)
	})

	s.Run("put then get round-trips", func() {
		doc := &models.Document{
			DocumentNumber: number,
			Journey:        models.JourneyCatchCertificate,
			Status:         models.StatusDraft,
			CreatedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		}
		s.cache.PutDocument(s.ctx, s.owner, number, doc)

		got, hit := s.cache.GetDocument(s.ctx, s.owner, number)
		s.Require().True(hit)
		s.Require().NotNil(got)
		s.Equal(number, got.DocumentNumber)
		s.Equal(models.StatusDraft, got.Status)
	})

	s.Run("nil document caches as tombstone", func() {
		absent := id.DocumentNumber("GBR-2026-CC-000000002")
		s.cache.PutDocument(s.ctx, s.owner, absent, nil)

		got, hit := s.cache.GetDocument(s.ctx, s.owner, absent)
		s.True(hit)
		s.Nil(got)
	})

	s.Run("corrupt entry degrades to a miss", func() {
		corrupt := id.DocumentNumber("GBR-2026-CC-000000003")
		s.Require().NoError(s.client.Set(s.ctx, Key(s.owner, DocumentPath(corrupt)), []byte("{not json")))

		_, hit := s.cache.GetDocument(s.ctx, s.owner, corrupt)
		s.False(hit)
	})
}

func (s *DraftCacheSuite) TestHeaderEntries() {
	path := DraftHeadersPath(models.JourneyCatchCertificate)

	s.Run("empty aggregates are never cached", func() {
		s.cache.PutHeaders(s.ctx, s.owner, path, nil)
		s.Zero(s.client.Len())

		_, hit := s.cache.GetHeaders(s.ctx, s.owner, path, "draftHeaders")
		s.False(hit)
	})

	s.Run("non-empty aggregates round-trip", func() {
		headers := []models.DocumentHeader{{
			DocumentNumber: "GBR-2026-CC-000000001",
			Status:         models.StatusDraft,
		}}
		s.cache.PutHeaders(s.ctx, s.owner, path, headers)

		got, hit := s.cache.GetHeaders(s.ctx, s.owner, path, "draftHeaders")
		s.Require().True(hit)
		s.Equal(headers, got)
	})
}

func (s *DraftCacheSuite) TestInvalidate() {
	number := id.DocumentNumber("GBR-2026-CC-000000001")
	docPath := DocumentPath(number)
	headersPath := DraftHeadersPath(models.JourneyCatchCertificate)

	s.Run("removes every named path", func() {
		s.cache.PutDocument(s.ctx, s.owner, number, &models.Document{DocumentNumber: number})
		s.cache.PutHeaders(s.ctx, s.owner, headersPath, []models.DocumentHeader{{DocumentNumber: number}})
		s.Require().Equal(2, s.client.Len())

		s.Require().NoError(s.cache.Invalidate(s.ctx, s.owner, docPath, headersPath))
		s.Zero(s.client.Len())
	})

	s.Run("absent keys are a no-op", func() {
		s.Require().NoError(s.cache.Invalidate(s.ctx, s.owner, docPath, headersPath))
		s.Require().NoError(s.cache.Invalidate(s.ctx, s.owner, "never/written"))
	})

	s.Run("does not touch another owner's entries", func() {
		other := ownership.Owner{ContactID: "contact-2"}
		s.cache.PutDocument(s.ctx, other, number, &models.Document{DocumentNumber: number})

		s.Require().NoError(s.cache.Invalidate(s.ctx, s.owner, docPath))
		_, hit := s.cache.GetDocument(s.ctx, other, number)
		s.True(hit)
	})
}

func (s *DraftCacheSuite) TestDegradedClient() {
	broken := New(failingClient{err: errors.New("connection refused")})
	number := id.DocumentNumber("GBR-2026-CC-000000001")

	s.Run("read errors degrade to a miss", func() {
		_, hit := broken.GetDocument(s.ctx, s.owner, number)
		s.False(hit)
		_, hit = broken.GetHeaders(s.ctx, s.owner, DraftHeadersPath(models.JourneyCatchCertificate), "draftHeaders")
		s.False(hit)
	})

	s.Run("populate errors are swallowed", func() {
		broken.PutDocument(s.ctx, s.owner, number, &models.Document{DocumentNumber: number})
		broken.PutHeaders(s.ctx, s.owner, DraftHeadersPath(models.JourneyCatchCertificate),
			[]models.DocumentHeader{{DocumentNumber: number}})
	})

	s.Run("invalidation errors propagate", func() {
		err := broken.Invalidate(s.ctx, s.owner, DocumentPath(number))
		s.Require().Error(err)

		err = broken.Invalidate(s.ctx, s.owner,
			DocumentPath(number), DraftHeadersPath(models.JourneyCatchCertificate))
		s.Require().Error(err)
	})
}
