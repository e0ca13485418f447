// Package ownership derives the storage predicate that scopes every read and
// write to the documents a caller may see.
//
// A document is owned when any of three locations match: it was created by the
// principal, it belongs to the caller's contact, or that contact is embedded
// in the payload's exporter details. Absence and denial are indistinguishable
// downstream: an unmatched predicate surfaces as "not found".
package ownership

import (
	"catchcert/internal/certificate/store"
	id "catchcert/pkg/domain"
	dErrors "catchcert/pkg/domain-errors"
)

// Owner is the caller's ownership context. At least one identifier must be
// present; an empty Owner can never be turned into a predicate.
type Owner struct {
	CreatedBy id.UserID
	ContactID id.ContactID
}

// IsZero reports whether no identifier is present.
func (o Owner) IsZero() bool {
	return o.CreatedBy.IsZero() && o.ContactID.IsZero()
}

// Identifier returns the string that prefixes the caller's cache keys,
// preferring the contact over the principal when both are supplied.
func (o Owner) Identifier() string {
	if !o.ContactID.IsZero() {
		return o.ContactID.String()
	}
	return o.CreatedBy.String()
}

// Predicate builds the ownership disjunction:
//
//	createdBy = CreatedBy
//	OR contactId = ContactID
//	OR exportData.exporterDetails.contactId = ContactID
//
// Clauses for absent identifiers are omitted. An Owner with neither
// identifier fails with CodeBadRequest: "anyone may access" must never be
// constructible.
func (o Owner) Predicate() (store.Predicate, error) {
	if o.IsZero() {
		return store.Predicate{}, dErrors.New(dErrors.CodeBadRequest,
			"ownership context requires a user or contact identifier")
	}
	var clauses []store.Clause
	if !o.CreatedBy.IsZero() {
		clauses = append(clauses, store.Eq(store.FieldCreatedBy, o.CreatedBy.String()))
	}
	if !o.ContactID.IsZero() {
		clauses = append(clauses,
			store.Eq(store.FieldContactID, o.ContactID.String()),
			store.Eq(store.FieldExporterContact, o.ContactID.String()),
		)
	}
	return store.Predicate{Any: clauses}, nil
}
