package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateIdentity = errors.New("identity already exists in the catalog")
	ErrIdentityRequired  = errors.New("identity is required")
	ErrNotConfirmed      = errors.New("proposal was not confirmed")
	ErrNotAllowed        = errors.New("field is not allowed for document updates")
	ErrUnknownField      = errors.New("field is not a catalog column")
	ErrIdentityChange    = errors.New("identity cannot be changed by an update")
)

// FieldError is a validation failure tied to one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationErrors collects every field problem found before a write.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the per-field causes to errors.Is.
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, 0, len(v))
	for _, fe := range v {
		errs = append(errs, fe)
	}
	return errs
}

// ByField indexes messages by field name for the form.
func (v ValidationErrors) ByField() map[string]string {
	out := make(map[string]string, len(v))
	for _, fe := range v {
		if _, seen := out[fe.Field]; !seen {
			out[fe.Field] = fe.Message
		}
	}
	return out
}

func (v *ValidationErrors) add(field string, err error) {
	*v = append(*v, FieldError{Field: field, Message: err.Error(), Err: err})
}

// PartialWriteError reports an update that stopped after Written cells.
// Earlier writes stay committed; retrying the same proposal skips them.
type PartialWriteError struct {
	Written int
	Field   string
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("wrote %d field(s), then failed on %q: %v", e.Written, e.Field, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
