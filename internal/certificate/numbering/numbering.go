// Package numbering allocates globally unique document numbers.
//
// Numbers have the form GBR-<year>-<journey code>-<9-digit sequence>. The
// sequence is the uniqueness guarantee; the production allocator draws it
// from a PostgreSQL sequence so concurrent callers can never collide.
package numbering

import (
	"context"
	"fmt"

	"catchcert/internal/certificate/models"
	id "catchcert/pkg/domain"
	"catchcert/pkg/requestcontext"
)

// Authority hands out fresh document numbers. Allocate never returns a number
// it has returned before, across all concurrent callers.
type Authority interface {
	Allocate(ctx context.Context, journey models.Journey) (id.DocumentNumber, error)
}

func format(ctx context.Context, journey models.Journey, seq int64) (id.DocumentNumber, error) {
	if !journey.IsValid() {
		return "", fmt.Errorf("numbering: unknown journey %q", journey)
	}
	year := requestcontext.Now(ctx).UTC().Year()
	return id.DocumentNumber(fmt.Sprintf("GBR-%d-%s-%09d", year, journey.Code(), seq)), nil
}
