package numbering

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catchcert/internal/certificate/models"
	id "catchcert/pkg/domain"
	"catchcert/pkg/requestcontext"
)

func TestMemoryAuthorityFormat(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	authority := NewMemoryAuthority()

	n, err := authority.Allocate(ctx, models.JourneyCatchCertificate)
	require.NoError(t, err)
	assert.Equal(t, id.DocumentNumber("GBR-2026-CC-000000001"), n)

	n, err = authority.Allocate(ctx, models.JourneyStorageDocument)
	require.NoError(t, err)
	assert.Equal(t, id.DocumentNumber("GBR-2026-SD-000000002"), n)

	_, err = authority.Allocate(ctx, models.Journey("bogus"))
	require.Error(t, err)
}

func TestMemoryAuthorityConcurrentUniqueness(t *testing.T) {
	const workers = 8
	const perWorker = 200

	authority := NewMemoryAuthority()
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan id.DocumentNumber, workers*perWorker)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				n, err := authority.Allocate(ctx, models.JourneyCatchCertificate)
				if assert.NoError(t, err) {
					results <- n
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[id.DocumentNumber]bool, workers*perWorker)
	for n := range results {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers*perWorker)
}
