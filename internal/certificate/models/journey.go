package models

import (
	"strings"

	id "catchcert/pkg/domain"
	dErrors "catchcert/pkg/domain-errors"
)

// Journey identifies which export-certificate form a document belongs to.
// The journey decides the document number prefix and the cache key namespace.
type Journey string

const (
	JourneyCatchCertificate    Journey = "catchCertificate"
	JourneyProcessingStatement Journey = "processingStatement"
	JourneyStorageDocument     Journey = "storageDocument"
)

var journeyCodes = map[Journey]string{
	JourneyCatchCertificate:    "CC",
	JourneyProcessingStatement: "PS",
	JourneyStorageDocument:     "SD",
}

// ParseJourney constructs a Journey from external input.
func ParseJourney(s string) (Journey, error) {
	j := Journey(s)
	if _, ok := journeyCodes[j]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid journey %q", s)
	}
	return j, nil
}

func (j Journey) String() string { return string(j) }

// IsValid reports whether the journey is one of the supported forms.
func (j Journey) IsValid() bool {
	_, ok := journeyCodes[j]
	return ok
}

// Code returns the two-letter journey code embedded in document numbers.
func (j Journey) Code() string { return journeyCodes[j] }

// JourneyFromNumber recovers the journey from a document number of the form
// GBR-<year>-<code>-<sequence>. Mutations key their cache invalidation off the
// number alone, so the journey must be derivable from it.
func JourneyFromNumber(n id.DocumentNumber) (Journey, bool) {
	parts := strings.Split(n.String(), "-")
	if len(parts) < 4 {
		return "", false
	}
	for j, code := range journeyCodes {
		if parts[2] == code {
			return j, true
		}
	}
	return "", false
}
