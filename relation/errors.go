package relation

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	// ErrTypeMismatch is returned when relations over different entities are merged.
	ErrTypeMismatch = errors.New("relation: type mismatch")

	// ErrRecordNotFound is returned when a finder could not locate the requested records.
	ErrRecordNotFound = errors.New("relation: record not found")

	// ErrUnsupportedOperation is returned for finder requests the entity cannot serve.
	ErrUnsupportedOperation = errors.New("relation: unsupported operation")

	// ErrEmptyJoin is reported by mappers when a required join matched no
	// rows. Load turns it into an empty result.
	ErrEmptyJoin = errors.New("relation: required join matched no rows")

	// ErrReadOnlyRecord is returned when saving or destroying a readonly record.
	ErrReadOnlyRecord = errors.New("relation: record is readonly")
)

// RecordNotFoundError describes a failed lookup with enough context to
// reconstruct it: the entity, the ids or attribute conditions tried, the
// active where clause and, for multi-id lookups, found vs expected counts.
type RecordNotFoundError struct {
	Entity     string
	IDs        []any
	Conditions string
	Found      int
	Expected   int
	Message    string
}

func (e *RecordNotFoundError) Error() string {
	return "relation: " + e.Message
}

// Is reports whether target is ErrRecordNotFound.
func (e *RecordNotFoundError) Is(target error) bool {
	return target == ErrRecordNotFound
}

func notFoundWithoutID(entity Entity) *RecordNotFoundError {
	return &RecordNotFoundError{
		Entity:  entity.Name,
		Message: fmt.Sprintf("Couldn't find %s without an ID", entity.Name),
	}
}

func notFoundOne(entity Entity, id any, conditions string) *RecordNotFoundError {
	return &RecordNotFoundError{
		Entity:     entity.Name,
		IDs:        []any{id},
		Conditions: conditions,
		Expected:   1,
		Message:    fmt.Sprintf("Couldn't find %s with ID=%v%s", entity.Name, id, bracketed(conditions)),
	}
}

func notFoundSome(entity Entity, ids []any, conditions string, found, expected int) *RecordNotFoundError {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return &RecordNotFoundError{
		Entity:     entity.Name,
		IDs:        ids,
		Conditions: conditions,
		Found:      found,
		Expected:   expected,
		Message: fmt.Sprintf("Couldn't find all %s with IDs (%s)%s (found %d results, but was looking for %d)",
			entity.PluralName(), strings.Join(parts, ", "), bracketed(conditions), found, expected),
	}
}

func notFoundByAttributes(entity Entity, attrs []string, values []any) *RecordNotFoundError {
	pairs := make([]string, len(attrs))
	for i, a := range attrs {
		pairs[i] = fmt.Sprintf("%s = %v", a, values[i])
	}
	conditions := strings.Join(pairs, ", ")
	return &RecordNotFoundError{
		Entity:     entity.Name,
		Conditions: conditions,
		Expected:   1,
		Message:    fmt.Sprintf("Couldn't find %s with %s", entity.Name, conditions),
	}
}

func bracketed(conditions string) string {
	if conditions == "" {
		return ""
	}
	return " [WHERE " + conditions + "]"
}

// UnsupportedOperationError reports a finder name that did not parse or
// names attributes the entity does not have.
type UnsupportedOperationError struct {
	Entity string
	Name   string
	Reason string
}

func (e *UnsupportedOperationError) Error() string {
	msg := fmt.Sprintf("relation: undefined finder %q for %s", e.Name, e.Entity)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is reports whether target is ErrUnsupportedOperation.
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// TypeMismatchError reports a merge of relations over different entities.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("relation: cannot merge %s relation into %s relation", e.Got, e.Expected)
}

// Is reports whether target is ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// IsRecordNotFound returns true if err is or wraps a not found error.
func IsRecordNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrRecordNotFound)
}

// IsUnsupportedOperation returns true if err is or wraps an unsupported operation error.
func IsUnsupportedOperation(err error) bool {
	return err != nil && errors.Is(err, ErrUnsupportedOperation)
}

// IsTypeMismatch returns true if err is or wraps a type mismatch error.
func IsTypeMismatch(err error) bool {
	return err != nil && errors.Is(err, ErrTypeMismatch)
}
