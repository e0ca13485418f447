package cache

import (
	"fmt"

	"catchcert/internal/certificate/models"
	"catchcert/internal/certificate/ownership"
	id "catchcert/pkg/domain"
)

// Cache keys are "<ownerIdentifier>:<logicalPath>". The owner identifier
// prefers contactId over createdBy so colleagues sharing a contact share a
// cache. Logical paths:
//
//	<journey>/draftHeaders
//	<journey>/completedHeaders/<month>-<year>
//	<documentNumber>               (single-document entries)
const keyDelimiter = ":"

// Key composes the full cache key for an owner and a logical path.
func Key(owner ownership.Owner, path string) string {
	return owner.Identifier() + keyDelimiter + path
}

// DocumentPath is the logical path for a single document entry.
func DocumentPath(number id.DocumentNumber) string {
	return number.String()
}

// DraftHeadersPath is the logical path for the owner's draft listing view.
func DraftHeadersPath(journey models.Journey) string {
	return journey.String() + "/draftHeaders"
}

// CompletedHeadersPath is the logical path for the month-bucketed completed
// listing view.
func CompletedHeadersPath(journey models.Journey, month int, year int) string {
	return fmt.Sprintf("%s/completedHeaders/%02d-%d", journey, month, year)
}
