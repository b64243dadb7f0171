package twilio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-custom-sender/core"
)

var _ core.SafeDetailer = (*APIError)(nil)

const (
	TwilioErrorInvalidConfig  = "TWILIO_INVALID_CONFIG"
	TwilioErrorInvalidRequest = "TWILIO_INVALID_REQUEST"
	TwilioErrorUnauthorized   = "TWILIO_UNAUTHORIZED"
	TwilioErrorRateLimited    = "TWILIO_RATE_LIMITED"
	TwilioErrorRejected       = "TWILIO_REJECTED"
	TwilioErrorUnavailable    = "TWILIO_UNAVAILABLE"
)

// APIError is the error document returned by the REST API.
type APIError struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	MoreInfo   string `json:"more_info"`
	Status     int    `json:"status"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != 0 {
		return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("twilio status %d: %s", e.StatusCode, e.Message)
}

// SafeDetail omits the provider message, which can echo the recipient.
func (e *APIError) SafeDetail() string {
	if e == nil {
		return ""
	}
	if e.Code != 0 {
		return fmt.Sprintf("twilio error %d (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("twilio status %d", e.StatusCode)
}

// APIErrorCode returns the numeric Twilio code carried by err, or zero.
func APIErrorCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func parseAPIError(collection string, res core.TransportResponse) error {
	apiErr := &APIError{StatusCode: res.StatusCode}
	if err := json.Unmarshal(res.Body, apiErr); err != nil || strings.TrimSpace(apiErr.Message) == "" {
		apiErr.Message = http.StatusText(res.StatusCode)
	}

	category, textCode, code := classifyStatus(res.StatusCode)
	return goerrors.Wrap(apiErr, category, "twilio: create "+strings.ToLower(collection)+" rejected").
		WithCode(code).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"provider_id":   ProviderID,
			"status_code":   res.StatusCode,
			"provider_code": apiErr.Code,
			"more_info":     apiErr.MoreInfo,
		})
}

func classifyStatus(status int) (goerrors.Category, string, int) {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth, TwilioErrorUnauthorized, http.StatusBadGateway
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz, TwilioErrorUnauthorized, http.StatusBadGateway
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit, TwilioErrorRateLimited, http.StatusTooManyRequests
	case status >= 400 && status < 500:
		return goerrors.CategoryExternal, TwilioErrorRejected, http.StatusBadGateway
	default:
		return goerrors.CategoryExternal, TwilioErrorUnavailable, http.StatusBadGateway
	}
}
