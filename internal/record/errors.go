package record

import "fmt"

// ShapeError reports a raw record that lacks a field the transformer needs,
// or carries it with an unusable type.
type ShapeError struct {
	Field  string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("record: field %q: %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &ShapeError{Field: field, Reason: "missing"}
}
