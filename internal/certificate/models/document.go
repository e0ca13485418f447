package models

import (
	"encoding/json"
	"time"

	id "catchcert/pkg/domain"
)

// Document is the central entity: a multi-step export-certificate form built
// incrementally as a draft and eventually locked into an immutable record.
//
// Invariants:
//   - DocumentNumber is assigned once at creation and never changes.
//   - A document in a terminal status is immutable via the mutation engine.
//   - ExportData is opaque to the engine: an arbitrary nested payload addressed
//     by dotted paths. The engine never interprets it beyond the clone engine's
//     identifier rewrite and linked-data stripping.
type Document struct {
	DocumentNumber id.DocumentNumber `json:"documentNumber"`
	Journey        Journey           `json:"journey"`
	Status         Status            `json:"status"`
	CreatedBy      id.UserID         `json:"createdBy,omitempty"`
	CreatedByEmail string            `json:"createdByEmail,omitempty"`
	ContactID      id.ContactID      `json:"contactId,omitempty"`
	UserReference  string            `json:"userReference,omitempty"`
	DocumentURI    string            `json:"documentUri,omitempty"`
	ClonedFrom     id.DocumentNumber `json:"clonedFrom,omitempty"`
	ParentVoided   bool              `json:"parentVoided,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	ExportData     map[string]any    `json:"exportData,omitempty"`
}

// Mutable reports whether the mutation engine may still patch this document.
func (d *Document) Mutable() bool { return d.Status.Mutable() }

// DeepCopy returns a copy sharing no mutable references with the receiver.
// The JSON round trip keeps the copy faithful for arbitrarily nested payloads.
func (d *Document) DeepCopy() *Document {
	raw, err := json.Marshal(d)
	if err != nil {
		// Document marshals by construction; payloads arrive as decoded JSON.
		panic("models: document not marshalable: " + err.Error())
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		panic("models: document not unmarshalable: " + err.Error())
	}
	return &out
}

// Header projects the fields the aggregate listing views expose.
func (d *Document) Header() DocumentHeader {
	return DocumentHeader{
		DocumentNumber: d.DocumentNumber,
		Status:         d.Status,
		UserReference:  d.UserReference,
		DocumentURI:    d.DocumentURI,
		CreatedAt:      d.CreatedAt,
	}
}

// DocumentHeader is the lightweight projection served by the draft and
// completed listing views.
type DocumentHeader struct {
	DocumentNumber id.DocumentNumber `json:"documentNumber"`
	Status         Status            `json:"status"`
	UserReference  string            `json:"userReference,omitempty"`
	DocumentURI    string            `json:"documentUri,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
}
