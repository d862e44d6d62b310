package silo

import "fmt"

// StructuralLockedError is returned when a caller attempts a structural
// change (entity add/remove, component add/remove, enable toggle)
// while a chunk involved in the change is locked by an in-flight query
// callback.
type StructuralLockedError struct{}

func (e StructuralLockedError) Error() string {
	return "silo: structural change attempted while storage is locked"
}

// CapacityExceededError is returned when the entity id space is exhausted:
// the next index to dispense would collide with the id-mask sentinel.
type CapacityExceededError struct {
	Limit uint32
}

func (e CapacityExceededError) Error() string {
	return fmt.Sprintf("silo: entity capacity exceeded (limit %d)", e.Limit)
}

// ComponentTooLargeError is returned at registration when a type's size
// exceeds Config.MaxComponentSize.
type ComponentTooLargeError struct {
	TypeName string
	Size     uintptr
	Max      uintptr
}

func (e ComponentTooLargeError) Error() string {
	return fmt.Sprintf("silo: component %s is %d bytes, exceeds maximum of %d", e.TypeName, e.Size, e.Max)
}

// QueryTooManyTermsError is returned during compilation when a query
// builder accumulated more terms than Config.MaxQueryTerms.
type QueryTooManyTermsError struct {
	Count int
	Max   int
}

func (e QueryTooManyTermsError) Error() string {
	return fmt.Sprintf("silo: query has %d terms, exceeds maximum of %d", e.Count, e.Max)
}

// EntityRelationError reports an attempt to give an entity a second
// parent.
type EntityRelationError struct {
	Child, Parent Entity
}

func (e EntityRelationError) Error() string {
	return fmt.Sprintf("silo: entity %v already has parent %v", e.Child, e.Parent)
}

// AssertionError reports a violated internal invariant: a programmer
// error (a duplicate graph edge, an unregistered component id, a
// corrupt free chain) that the core never attempts to recover from.
// Locked, missing and duplicate component cases have their own error
// types above and below. Call sites
// that treat it as fatal wrap it with bark.AddTrace before panicking.
type AssertionError struct {
	Msg string
}

func (e AssertionError) Error() string {
	return "silo: assertion failed: " + e.Msg
}

// DuplicateComponentError reports adding a component an entity already
// has.
type DuplicateComponentError struct {
	ComponentName string
}

func (e DuplicateComponentError) Error() string {
	return fmt.Sprintf("silo: entity already has component %s", e.ComponentName)
}

// MissingComponentError reports removing or reading a component an
// entity does not have.
type MissingComponentError struct {
	ComponentName string
}

func (e MissingComponentError) Error() string {
	return fmt.Sprintf("silo: entity does not have component %s", e.ComponentName)
}

// DuplicatePairError reports attaching a relationship pair an entity
// already carries.
type DuplicatePairError struct {
	Pair Pair
}

func (e DuplicatePairError) Error() string {
	return fmt.Sprintf("silo: entity already has pair %v", e.Pair)
}

// MissingPairError reports removing a relationship pair an entity does
// not carry.
type MissingPairError struct {
	Pair Pair
}

func (e MissingPairError) Error() string {
	return fmt.Sprintf("silo: entity does not have pair %v", e.Pair)
}

// InvalidEntityError reports an operation against a handle that is
// null, out of range, or stale (its slot has since been recycled).
type InvalidEntityError struct {
	E Entity
}

func (e InvalidEntityError) Error() string {
	return fmt.Sprintf("silo: %v is not a valid entity", e.E)
}
