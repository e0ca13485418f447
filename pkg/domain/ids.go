package domain

import (
	"strings"

	dErrors "catchcert/pkg/domain-errors"
)

// DocumentNumber identifies an export-certificate document. Assigned once by the
// numbering authority at creation and immutable afterwards.
//
// Format: GBR-<year>-<journey code>-<sequence>, e.g. GBR-2026-CC-000000042.
// Child identifiers inside a document's payload are namespaced by prefixing the
// document number: "<documentNumber>-<suffix>".
type DocumentNumber string

// ParseDocumentNumber constructs a DocumentNumber from external input.
// Returns CodeInvalidInput when the value is empty or contains whitespace.
func ParseDocumentNumber(s string) (DocumentNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document number cannot be empty")
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", dErrors.New(dErrors.CodeInvalidInput, "document number cannot contain whitespace")
	}
	return DocumentNumber(s), nil
}

func (n DocumentNumber) String() string { return string(n) }

// IsZero reports whether the number is unset.
func (n DocumentNumber) IsZero() bool { return n == "" }

// ChildPrefix returns the prefix child identifiers carry when namespaced by
// this document, i.e. "<number>-".
func (n DocumentNumber) ChildPrefix() string { return string(n) + "-" }

// UserID identifies the principal that created a document. Legacy and
// admin-created records may carry no user at all, so the zero value is legal.
type UserID string

func (u UserID) String() string { return string(u) }
func (u UserID) IsZero() bool   { return u == "" }

// ContactID identifies the organizational contact that owns a document.
type ContactID string

func (c ContactID) String() string { return string(c) }
func (c ContactID) IsZero() bool   { return c == "" }
