package casework

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeUnknownEvent               = "CASE_UNKNOWN_EVENT"
	ErrCodeForbidden                  = "CASE_FORBIDDEN"
	ErrCodeInvalidStageForEvent       = "CASE_INVALID_STAGE_FOR_EVENT"
	ErrCodeValidationFailed           = "CASE_VALIDATION_FAILED"
	ErrCodeGuardFailed                = "CASE_GUARD_FAILED"
	ErrCodeNotificationDeliveryFailed = "CASE_NOTIFICATION_DELIVERY_FAILED"
	ErrCodeVersionConflict            = "CASE_VERSION_CONFLICT"
	ErrCodeHookFailed                 = "CASE_HOOK_FAILED"
	ErrCodeCaseNotFound               = "CASE_NOT_FOUND"
	ErrCodeCommitFailed               = "CASE_COMMIT_FAILED"
)

const (
	MessageUnknownEvent = "Event not recognised."
	MessageForbidden    = "You do not have permission to perform this action."
)

var (
	ErrUnknownEvent = apperrors.New(MessageUnknownEvent, apperrors.CategoryNotFound).
			WithTextCode(ErrCodeUnknownEvent)
	ErrForbidden = apperrors.New(MessageForbidden, apperrors.CategoryAuthz).
			WithTextCode(ErrCodeForbidden)
	ErrInvalidStageForEvent = apperrors.New("event cannot be run from the current stage", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidStageForEvent)
	ErrValidationFailed = apperrors.New("validation failed", apperrors.CategoryValidation).
				WithTextCode(ErrCodeValidationFailed)
	ErrGuardFailed = apperrors.New("precondition failed", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeGuardFailed)
	ErrNotificationDeliveryFailed = apperrors.New("notification delivery failed", apperrors.CategoryExternal).
					WithTextCode(ErrCodeNotificationDeliveryFailed)
	ErrVersionConflict = apperrors.New("case was updated concurrently", apperrors.CategoryConflict).
				WithTextCode(ErrCodeVersionConflict)
	ErrHookFailed = apperrors.New("event hook failed", apperrors.CategoryHandler).
			WithTextCode(ErrCodeHookFailed)
	ErrCaseNotFound = apperrors.New("case not found", apperrors.CategoryNotFound).
			WithTextCode(ErrCodeCaseNotFound)
	ErrCommitFailed = apperrors.New("failed to persist case", apperrors.CategoryExternal).
			WithTextCode(ErrCodeCommitFailed)
)

// NewError clones a taxonomy error, overriding message, source and metadata when given.
func NewError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrHookFailed
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the taxonomy text code carried by err, if any.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// HasCode reports whether err carries the given taxonomy code.
func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// FieldError is a single field-level validation message.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (f FieldError) Error() string {
	if f.Field == "" {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// FieldErrors is the set of messages a validation hook produced.
type FieldErrors []FieldError

func (f FieldErrors) Error() string {
	msgs := f.Messages()
	return strings.Join(msgs, "; ")
}

// Messages returns the human readable messages in order.
func (f FieldErrors) Messages() []string {
	out := make([]string, 0, len(f))
	for _, fe := range f {
		out = append(out, fe.Message)
	}
	return out
}

// NewValidationError wraps field errors as ValidationFailed.
func NewValidationError(fields FieldErrors) *apperrors.Error {
	return NewError(ErrValidationFailed, fields.Error(), fields, nil)
}

// NewGuardError reports a failed business precondition with a display message.
func NewGuardError(message string) *apperrors.Error {
	return NewError(ErrGuardFailed, message, nil, nil)
}

// FieldErrorsOf extracts field errors from a ValidationFailed error.
func FieldErrorsOf(err error) FieldErrors {
	var fe FieldErrors
	if stderrors.As(err, &fe) {
		return fe
	}
	var ge *apperrors.Error
	if stderrors.As(err, &ge) && ge.Source != nil {
		if stderrors.As(ge.Source, &fe) {
			return fe
		}
	}
	return nil
}

// DisplayMessages returns the caller-facing messages for err.
func DisplayMessages(err error) []string {
	if err == nil {
		return nil
	}
	switch ErrorCode(err) {
	case ErrCodeValidationFailed:
		if fe := FieldErrorsOf(err); len(fe) > 0 {
			return fe.Messages()
		}
	case ErrCodeForbidden:
		return []string{MessageForbidden}
	case ErrCodeUnknownEvent:
		return []string{MessageUnknownEvent}
	}
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return []string{ge.Message}
	}
	return []string{err.Error()}
}
