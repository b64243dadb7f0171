package awskms

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	goerrors "github.com/goliatone/go-errors"
)

const (
	KMSErrorInvalidConfig     = "KMS_INVALID_CONFIG"
	KMSErrorInvalidInput      = "KMS_INVALID_INPUT"
	KMSErrorAccessDenied      = "KMS_ACCESS_DENIED"
	KMSErrorNotFound          = "KMS_NOT_FOUND"
	KMSErrorInvalidCiphertext = "KMS_INVALID_CIPHERTEXT"
	KMSErrorThrottled         = "KMS_THROTTLED"
	KMSErrorFailure           = "KMS_FAILURE"
)

// FaultCode returns the KMS error code carried by err, for example
// "IncorrectKeyException", or "" when err is not an API fault.
func FaultCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsFault reports whether err carries a KMS fault with the given code.
func IsFault(err error, code string) bool {
	return code != "" && FaultCode(err) == code
}

func wrapFault(operation string, err error) error {
	code := FaultCode(err)
	category, textCode, status := classifyFault(code)
	message := "awskms: " + strings.ToLower(operation) + " failed"
	if code != "" {
		message = "awskms: " + strings.ToLower(operation) + " rejected"
	}
	return goerrors.Wrap(err, category, message).
		WithCode(status).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"operation":  operation,
			"fault_type": code,
		})
}

func classifyFault(code string) (goerrors.Category, string, int) {
	switch code {
	case "":
		return goerrors.CategoryExternal, KMSErrorFailure, http.StatusBadGateway
	case "AccessDeniedException":
		return goerrors.CategoryAuthz, KMSErrorAccessDenied, http.StatusForbidden
	case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException":
		return goerrors.CategoryAuth, KMSErrorAccessDenied, http.StatusUnauthorized
	case "NotFoundException":
		return goerrors.CategoryNotFound, KMSErrorNotFound, http.StatusNotFound
	case "InvalidCiphertextException", "IncorrectKeyException", "InvalidKeyUsageException":
		return goerrors.CategoryBadInput, KMSErrorInvalidCiphertext, http.StatusBadRequest
	case "ThrottlingException", "LimitExceededException":
		return goerrors.CategoryRateLimit, KMSErrorThrottled, http.StatusTooManyRequests
	}
	return goerrors.CategoryExternal, KMSErrorFailure, http.StatusBadGateway
}
