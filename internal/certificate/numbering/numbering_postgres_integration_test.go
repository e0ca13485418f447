//go:build integration

package numbering_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/numbering"
	id "catchcert/pkg/domain"
	"catchcert/pkg/requestcontext"
	"catchcert/pkg/testutil/containers"
)

type PostgresAuthoritySuite struct {
	suite.Suite
	authority *numbering.PostgresAuthority
	ctx       context.Context
}

func TestPostgresAuthoritySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuthoritySuite))
}

func (s *PostgresAuthoritySuite) SetupSuite() {
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	postgres := containers.NewPostgresContainer(s.T())
	s.authority = numbering.NewPostgresAuthority(postgres.DB)
	s.Require().NoError(s.authority.EnsureSchema(s.ctx))
}

func (s *PostgresAuthoritySuite) TestConcurrentAllocationsNeverCollide() {
	const workers = 10
	const perWorker = 50

	var wg sync.WaitGroup
	results := make(chan id.DocumentNumber, workers*perWorker)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				n, err := s.authority.Allocate(s.ctx, models.JourneyCatchCertificate)
				if err == nil {
					results <- n
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[id.DocumentNumber]bool)
	for n := range results {
		s.False(seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	s.Len(seen, workers*perWorker)
}
