package store

// Dotted field paths understood by both store implementations. Top-level paths
// address invariant-bearing document fields; paths under "exportData." address
// the opaque payload.
const (
	FieldDocumentNumber = "documentNumber"
	FieldJourney        = "journey"
	FieldStatus         = "status"
	FieldCreatedBy      = "createdBy"
	FieldCreatedByEmail = "createdByEmail"
	FieldContactID      = "contactId"
	FieldUserReference  = "userReference"
	FieldDocumentURI    = "documentUri"
	FieldClonedFrom     = "clonedFrom"
	FieldParentVoided   = "parentVoided"
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"

	// FieldExporterContact is the payload location where an owning contact may
	// be embedded, the third leg of the ownership disjunction.
	FieldExporterContact = "exportData.exporterDetails.contactId"
)

// ClauseOp is the comparison a clause applies.
type ClauseOp int

const (
	OpEq ClauseOp = iota
	OpIn
	OpGte
	OpLt
)

// Clause is a single field comparison at a dotted path.
type Clause struct {
	Op     ClauseOp
	Path   string
	Value  any   // OpEq
	Values []any // OpIn
}

// Eq builds an equality clause.
func Eq(path string, value any) Clause {
	return Clause{Op: OpEq, Path: path, Value: value}
}

// In builds a "value in set" clause.
func In(path string, values ...any) Clause {
	return Clause{Op: OpIn, Path: path, Values: values}
}

// Gte builds a "greater or equal" clause; used for period lower bounds.
func Gte(path string, value any) Clause {
	return Clause{Op: OpGte, Path: path, Value: value}
}

// Lt builds a "strictly less" clause; used for period upper bounds.
func Lt(path string, value any) Clause {
	return Clause{Op: OpLt, Path: path, Value: value}
}

// Predicate selects documents. A document matches when every All clause holds
// and, if Any is non-empty, at least one Any clause holds. The ownership
// builder produces the Any disjunction; operations AND their filters on top.
//
// The zero Predicate matches everything; the engine never issues one (the
// ownership builder refuses to construct an unconstrained predicate).
type Predicate struct {
	Any []Clause
	All []Clause
}

// And returns a copy of p with additional conjunctive clauses.
func (p Predicate) And(clauses ...Clause) Predicate {
	out := Predicate{
		Any: p.Any,
		All: make([]Clause, 0, len(p.All)+len(clauses)),
	}
	out.All = append(out.All, p.All...)
	out.All = append(out.All, clauses...)
	return out
}

// Sort orders a FindMany result by a single path.
type Sort struct {
	Path string
	Desc bool
}

// Page bounds a FindMany result. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}

// ChangeOp tags a single update operation.
type ChangeOp int

const (
	OpSet ChangeOp = iota
	OpUnset
	OpPush
)

// Change is one tagged dotted-path operation inside an update spec.
type Change struct {
	Op    ChangeOp
	Path  string
	Value any // OpSet / OpPush payload; nil for OpUnset
}

// UpdateSpec is an ordered set of partial-update operations. Build with the
// fluent methods; stores apply the changes in order within one conditional
// write.
type UpdateSpec struct {
	changes []Change
}

// NewUpdate returns an empty update spec.
func NewUpdate() *UpdateSpec { return &UpdateSpec{} }

// Set assigns a value at a dotted path, creating missing intermediate objects.
func (u *UpdateSpec) Set(path string, value any) *UpdateSpec {
	u.changes = append(u.changes, Change{Op: OpSet, Path: path, Value: value})
	return u
}

// Unset removes the field at a dotted path. Missing fields are a no-op.
func (u *UpdateSpec) Unset(path string) *UpdateSpec {
	u.changes = append(u.changes, Change{Op: OpUnset, Path: path})
	return u
}

// Push appends an element to the array at a dotted path, creating the array
// when absent.
func (u *UpdateSpec) Push(path string, value any) *UpdateSpec {
	u.changes = append(u.changes, Change{Op: OpPush, Path: path, Value: value})
	return u
}

// Clone returns an independent copy of the spec. Services stamp bookkeeping
// fields onto the copy, so a caller can retry with the original untouched.
func (u *UpdateSpec) Clone() *UpdateSpec {
	if u == nil {
		return NewUpdate()
	}
	return &UpdateSpec{changes: append([]Change(nil), u.changes...)}
}

// Changes exposes the ordered operations for store implementations.
func (u *UpdateSpec) Changes() []Change { return u.changes }

// Empty reports whether the spec carries no operations.
func (u *UpdateSpec) Empty() bool { return u == nil || len(u.changes) == 0 }
