package numbering

import (
	"context"
	"sync/atomic"

	"catchcert/internal/certificate/models"
	id "catchcert/pkg/domain"
)

// MemoryAuthority allocates numbers from an in-process counter. Suitable for
// unit suites and single-process development runs only.
type MemoryAuthority struct {
	seq atomic.Int64
}

// NewMemoryAuthority creates an allocator starting at sequence 1.
func NewMemoryAuthority() *MemoryAuthority {
	return &MemoryAuthority{}
}

func (a *MemoryAuthority) Allocate(ctx context.Context, journey models.Journey) (id.DocumentNumber, error) {
	return format(ctx, journey, a.seq.Add(1))
}
