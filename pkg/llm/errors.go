package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies an LLM failure.
type ErrorType string

const (
	ErrorTypeAuth                ErrorType = "auth"
	ErrorTypeQuota               ErrorType = "quota"
	ErrorTypeInsufficientCredits ErrorType = "insufficient_credits"
	ErrorTypeRateLimit           ErrorType = "rate_limit"
	ErrorTypeTimeout             ErrorType = "timeout"
	ErrorTypeServer              ErrorType = "server"
	ErrorTypeModel               ErrorType = "model"
	ErrorTypeEndpoint            ErrorType = "endpoint"
	ErrorTypeUnknown             ErrorType = "unknown"
)

// userMessages are the canned texts shown to end users for each ErrorType.
var userMessages = map[ErrorType]string{
	ErrorTypeAuth:                "The AI service rejected our credentials. Please contact support.",
	ErrorTypeQuota:               "The AI service quota has been exceeded. Please try again later or contact support.",
	ErrorTypeInsufficientCredits: "The AI service account is out of credits. Please contact support.",
	ErrorTypeRateLimit:           "The AI service is receiving too many requests. Please wait a moment and try again.",
	ErrorTypeTimeout:             "The AI service took too long to respond. Please try again.",
	ErrorTypeServer:              "The AI service is temporarily unavailable. Please try again in a few minutes.",
	ErrorTypeModel:               "The configured AI model is unavailable. Please contact support.",
	ErrorTypeEndpoint:            "We could not reach the AI service. Please try again in a few minutes.",
	ErrorTypeUnknown:             "Something went wrong while generating your analysis. Please try again.",
}

// UserMessage returns the canned user-facing text for t.
func (t ErrorType) UserMessage() string {
	if msg, ok := userMessages[t]; ok {
		return msg
	}
	return userMessages[ErrorTypeUnknown]
}

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Model      string    // Model name if known
	Endpoint   string    // Endpoint URL if known
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if host := endpointHost(e.Endpoint); host != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", host))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// UserMessage returns the canned user-facing text for this error.
func (e *Error) UserMessage() string {
	return e.Type.UserMessage()
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}

// ClassifyError categorizes an error and returns a structured Error.
// Provider SDK error structures are inspected first; message matching is only
// used for errors that carry no structure.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorTypeTimeout, "request timeout", true, err)
	}

	var oaiAPIErr *openai.APIError
	if errors.As(err, &oaiAPIErr) {
		classified := classifyOpenAIAPIError(oaiAPIErr, err)
		classified.StatusCode = oaiAPIErr.HTTPStatusCode
		return classified
	}

	var oaiReqErr *openai.RequestError
	if errors.As(err, &oaiReqErr) {
		classified := classifyStatus(oaiReqErr.HTTPStatusCode, err)
		classified.StatusCode = oaiReqErr.HTTPStatusCode
		return classified
	}

	var antAPIErr *anthropic.APIError
	if errors.As(err, &antAPIErr) {
		return classifyAnthropicAPIError(antAPIErr, err)
	}

	var antReqErr *anthropic.RequestError
	if errors.As(err, &antReqErr) {
		classified := classifyStatus(antReqErr.StatusCode, err)
		classified.StatusCode = antReqErr.StatusCode
		return classified
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(ErrorTypeTimeout, "request timeout", true, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	}

	return classifyMessage(err)
}

func classifyOpenAIAPIError(apiErr *openai.APIError, err error) *Error {
	code, _ := apiErr.Code.(string)
	switch {
	case code == "insufficient_quota" || apiErr.Type == "insufficient_quota":
		return NewError(ErrorTypeQuota, "quota exceeded", false, err)
	case code == "invalid_api_key":
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case code == "model_not_found":
		return NewError(ErrorTypeModel, "model not found", false, err)
	case code == "rate_limit_exceeded":
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	}
	return classifyStatus(apiErr.HTTPStatusCode, err)
}

func classifyAnthropicAPIError(apiErr *anthropic.APIError, err error) *Error {
	lower := strings.ToLower(apiErr.Message)
	switch string(apiErr.Type) {
	case "authentication_error", "permission_error":
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case "not_found_error":
		return NewError(ErrorTypeModel, "model not found", false, err)
	case "rate_limit_error":
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case "overloaded_error", "api_error":
		return NewError(ErrorTypeServer, "server error", true, err)
	case "invalid_request_error":
		if strings.Contains(lower, "credit balance") {
			return NewError(ErrorTypeInsufficientCredits, "insufficient credits", false, err)
		}
	}
	return classifyMessage(err)
}

// classifyStatus maps a bare HTTP status code.
func classifyStatus(status int, err error) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case status == http.StatusPaymentRequired:
		return NewError(ErrorTypeInsufficientCredits, "insufficient credits", false, err)
	case status == http.StatusNotFound:
		return NewError(ErrorTypeEndpoint, "endpoint not found", false, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewError(ErrorTypeTimeout, "request timeout", true, err)
	case status == http.StatusTooManyRequests:
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case status >= 500:
		return NewError(ErrorTypeServer, "server error", true, err)
	}
	return classifyMessage(err)
}

// classifyMessage is the fallback for errors without provider structure.
func classifyMessage(err error) *Error {
	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "insufficient_quota") || strings.Contains(lower, "exceeded your current quota"):
		return NewError(ErrorTypeQuota, "quota exceeded", false, err)
	case strings.Contains(lower, "credit balance") || strings.Contains(lower, "insufficient credits"):
		return NewError(ErrorTypeInsufficientCredits, "insufficient credits", false, err)
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "incorrect api key"):
		return NewError(ErrorTypeAuth, "authentication failed", false, err)
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return NewError(ErrorTypeRateLimit, "rate limited", true, err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return NewError(ErrorTypeTimeout, "request timeout", true, err)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return NewError(ErrorTypeEndpoint, "connection failed", true, err)
	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") || strings.Contains(lower, "does not exist")):
		return NewError(ErrorTypeModel, "model not found", false, err)
	case strings.Contains(lower, "internal server error") || strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") || strings.Contains(lower, "overloaded"):
		return NewError(ErrorTypeServer, "server error", true, err)
	}
	return NewError(ErrorTypeUnknown, "llm error", false, err)
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
