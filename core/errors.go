package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DeliveryErrorMalformedEvent = "DELIVERY_MALFORMED_EVENT"
	DeliveryErrorInvalidChannel = "DELIVERY_INVALID_CHANNEL"
	DeliveryErrorDecryption     = "DELIVERY_DECRYPTION_FAILED"
	DeliveryErrorDispatch       = "DELIVERY_DISPATCH_FAILED"
	DeliveryErrorInternal       = "DELIVERY_INTERNAL_ERROR"
)

// LegacyErrorPrefix is the fixed text older trigger consumers match on.
const LegacyErrorPrefix = "Invalid delivery type. Must be 'sms' or 'voice'."

type ErrorKind string

const (
	ErrorKindMalformedEvent ErrorKind = "malformed_event"
	ErrorKindInvalidChannel ErrorKind = "invalid_channel"
	ErrorKindDecryption     ErrorKind = "decryption"
	ErrorKindDispatch       ErrorKind = "dispatch"
)

var (
	ErrMalformedEvent = errors.New("core: malformed event")
	ErrInvalidChannel = errors.New("core: invalid delivery type, must be 'sms' or 'voice'")
	ErrDecryption     = errors.New("core: code decryption failed")
	ErrDispatch       = errors.New("core: delivery dispatch failed")
)

// SafeDetailer is implemented by causes whose detail text carries no
// recipient data. Only that text reaches error strings and logs.
type SafeDetailer interface {
	SafeDetail() string
}

// SafeDetail returns the first safe detail found in err's chain.
func SafeDetail(err error) string {
	if err == nil {
		return ""
	}
	var detailer SafeDetailer
	if errors.As(err, &detailer) {
		return strings.TrimSpace(detailer.SafeDetail())
	}
	return ""
}

// DeliveryError tags a failure with its kind, the original cause, and log
// context restricted to non-sensitive fields.
type DeliveryError struct {
	Kind    ErrorKind
	Cause   error
	Context map[string]any
}

func newDeliveryError(kind ErrorKind, cause error, context map[string]any) *DeliveryError {
	return &DeliveryError{
		Kind:    kind,
		Cause:   cause,
		Context: cloneFields(context),
	}
}

func (e *DeliveryError) Error() string {
	if e == nil {
		return ErrMalformedEvent.Error()
	}
	base := e.Kind.sentinel().Error()
	if detail := SafeDetail(e.Cause); detail != "" {
		return base + ": " + detail
	}
	return base
}

func (e *DeliveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return e.Kind.sentinel()
	}
	return errors.Join(e.Kind.sentinel(), e.Cause)
}

func (e *DeliveryError) TextCode() string {
	if e == nil {
		return DeliveryErrorInternal
	}
	return e.Kind.textCode()
}

func (e *DeliveryError) ToServiceError() *goerrors.Error {
	if e == nil {
		return goerrors.New("An unexpected error occurred", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(DeliveryErrorInternal)
	}
	category, status := e.Kind.category()
	err := goerrors.New(e.Error(), category).
		WithCode(status).
		WithTextCode(e.Kind.textCode())
	metadata := cloneFields(e.Context)
	metadata["kind"] = string(e.Kind)
	var fieldErr *fieldError
	if errors.As(e.Cause, &fieldErr) {
		metadata["field"] = fieldErr.Field()
	}
	err.WithMetadata(metadata)
	return err
}

func (k ErrorKind) sentinel() error {
	switch k {
	case ErrorKindInvalidChannel:
		return ErrInvalidChannel
	case ErrorKindDecryption:
		return ErrDecryption
	case ErrorKindDispatch:
		return ErrDispatch
	default:
		return ErrMalformedEvent
	}
}

func (k ErrorKind) textCode() string {
	switch k {
	case ErrorKindMalformedEvent:
		return DeliveryErrorMalformedEvent
	case ErrorKindInvalidChannel:
		return DeliveryErrorInvalidChannel
	case ErrorKindDecryption:
		return DeliveryErrorDecryption
	case ErrorKindDispatch:
		return DeliveryErrorDispatch
	default:
		return DeliveryErrorInternal
	}
}

func (k ErrorKind) category() (goerrors.Category, int) {
	switch k {
	case ErrorKindMalformedEvent:
		return goerrors.CategoryValidation, http.StatusBadRequest
	case ErrorKindInvalidChannel:
		return goerrors.CategoryBadInput, http.StatusBadRequest
	case ErrorKindDecryption:
		return goerrors.CategoryOperation, http.StatusUnprocessableEntity
	case ErrorKindDispatch:
		return goerrors.CategoryExternal, http.StatusBadGateway
	default:
		return goerrors.CategoryInternal, http.StatusInternalServerError
	}
}

// AsDeliveryError finds the tagged error anywhere in err's chain.
func AsDeliveryError(err error) (*DeliveryError, bool) {
	if err == nil {
		return nil, false
	}
	var tagged *DeliveryError
	if errors.As(err, &tagged) {
		return tagged, true
	}
	return nil, false
}

// ToServiceError maps any handler error onto the go-errors envelope.
func ToServiceError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if tagged, ok := AsDeliveryError(err); ok {
		return tagged.ToServiceError()
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected error occurred").
		WithCode(http.StatusInternalServerError).
		WithTextCode(DeliveryErrorInternal)
}

// HostError is returned to the invoking workflow. Its message keeps the
// legacy shape while Unwrap exposes the tagged cause.
type HostError struct {
	Message string
	Err     error
}

func (e *HostError) Error() string {
	if e == nil {
		return LegacyErrorPrefix
	}
	return e.Message
}

func (e *HostError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type legacyErrorSummary struct {
	Kind     string `json:"kind"`
	TextCode string `json:"text_code"`
	Message  string `json:"message"`
}

// LegacyErrorMessage renders prefix + redacted request JSON + newline +
// error summary JSON.
func LegacyErrorMessage(event *Event, err error) string {
	var b strings.Builder
	b.WriteString(LegacyErrorPrefix)

	var request *EventRequest
	if event != nil {
		request = event.Request
	}
	requestJSON, marshalErr := json.Marshal(RedactEventRequest(request))
	if marshalErr != nil {
		requestJSON = []byte("{}")
	}
	b.Write(requestJSON)
	b.WriteByte('\n')

	summary := legacyErrorSummary{Kind: "internal", TextCode: DeliveryErrorInternal, Message: "An unexpected error occurred"}
	if tagged, ok := AsDeliveryError(err); ok {
		summary.Kind = string(tagged.Kind)
		summary.TextCode = tagged.TextCode()
		summary.Message = tagged.Error()
	}
	summaryJSON, marshalErr := json.Marshal(summary)
	if marshalErr != nil {
		summaryJSON = []byte(fmt.Sprintf("{%q:%q}", "text_code", summary.TextCode))
	}
	b.Write(summaryJSON)
	return b.String()
}

type fieldError struct {
	field   string
	message string
}

func errField(field, message string) error {
	return &fieldError{field: field, message: message}
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s %s", e.field, e.message)
}

func (e *fieldError) SafeDetail() string {
	return e.Error()
}

func (e *fieldError) Field() string {
	return e.field
}
