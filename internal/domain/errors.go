package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError is the root of the error taxonomy. Every exported error type
// in this file implements it; handlers at the orchestrator boundary type-
// switch or errors.As against these rather than matching strings.
type DomainError interface {
	error
	Message() string
	Code() string
}

type baseError struct {
	kind    string
	message string
	code    string
}

func (e *baseError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.kind, e.message, e.code)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}
func (e *baseError) Message() string { return e.message }
func (e *baseError) Code() string    { return e.code }

func newBase(kind, message, code string) *baseError {
	return &baseError{kind: kind, message: message, code: code}
}

// ValidationError signals malformed caller input.
type ValidationError struct{ *baseError }

func NewValidationError(message string, code ...string) *ValidationError {
	return &ValidationError{newBase("ValidationError", message, firstCode(code))}
}

// SessionError and its SessionNotFoundError specialization.
type SessionError struct{ *baseError }

func NewSessionError(message string, code ...string) *SessionError {
	return &SessionError{newBase("SessionError", message, firstCode(code))}
}

type SessionNotFoundError struct{ *SessionError }

func NewSessionNotFoundError(id string) *SessionNotFoundError {
	return &SessionNotFoundError{&SessionError{newBase("SessionNotFoundError", "session not found: "+id, "session_not_found")}}
}

// MessageError signals a malformed or missing message.
type MessageError struct{ *baseError }

func NewMessageError(message string, code ...string) *MessageError {
	return &MessageError{newBase("MessageError", message, firstCode(code))}
}

// AuthenticationError and its LLMAuthenticationError specialization.
type AuthenticationError struct{ *baseError }

func NewAuthenticationError(message string, code ...string) *AuthenticationError {
	return &AuthenticationError{newBase("AuthenticationError", message, firstCode(code))}
}

type LLMAuthenticationError struct{ *AuthenticationError }

func NewLLMAuthenticationError(message string) *LLMAuthenticationError {
	return &LLMAuthenticationError{&AuthenticationError{newBase("LLMAuthenticationError", message, "llm_authentication")}}
}

// AuthorizationError and its ToolAuthorizationError / DataSourcePermissionError specializations.
type AuthorizationError struct{ *baseError }

func NewAuthorizationError(message string, code ...string) *AuthorizationError {
	return &AuthorizationError{newBase("AuthorizationError", message, firstCode(code))}
}

type ToolAuthorizationError struct{ *AuthorizationError }

func NewToolAuthorizationError(tool string) *ToolAuthorizationError {
	return &ToolAuthorizationError{&AuthorizationError{newBase("ToolAuthorizationError", "not authorized to use tool: "+tool, "tool_authorization")}}
}

type DataSourcePermissionError struct{ *AuthorizationError }

func NewDataSourcePermissionError(source string) *DataSourcePermissionError {
	return &DataSourcePermissionError{&AuthorizationError{newBase("DataSourcePermissionError", "not authorized for data source: "+source, "data_source_permission")}}
}

// ConfigurationError and its LLMConfigurationError specialization.
type ConfigurationError struct{ *baseError }

func NewConfigurationError(message string, code ...string) *ConfigurationError {
	return &ConfigurationError{newBase("ConfigurationError", message, firstCode(code))}
}

type LLMConfigurationError struct{ *ConfigurationError }

func NewLLMConfigurationError(message string) *LLMConfigurationError {
	return &LLMConfigurationError{&ConfigurationError{newBase("LLMConfigurationError", message, "llm_configuration")}}
}

// LLMError and its RateLimitError / LLMTimeoutError / LLMServiceError specializations.
type LLMError struct{ *baseError }

func NewLLMError(message string, code ...string) *LLMError {
	return &LLMError{newBase("LLMError", message, firstCode(code))}
}

type LLMServiceError struct{ *LLMError }

func NewLLMServiceError(message string) *LLMServiceError {
	return &LLMServiceError{&LLMError{newBase("LLMServiceError", message, "llm_service")}}
}

type RateLimitError struct{ *LLMError }

func NewRateLimitError(message string) *RateLimitError {
	return &RateLimitError{&LLMError{newBase("RateLimitError", message, "rate_limit")}}
}

type LLMTimeoutError struct{ *LLMError }

func NewLLMTimeoutError(message string) *LLMTimeoutError {
	return &LLMTimeoutError{&LLMError{newBase("LLMTimeoutError", message, "llm_timeout")}}
}

// ToolError wraps a tool-execution failure that escaped the never-throws
// contract (e.g. a programming error in the executor itself, not a normal
// failed ToolResult).
type ToolError struct{ *baseError }

func NewToolError(message string, code ...string) *ToolError {
	return &ToolError{newBase("ToolError", message, firstCode(code))}
}

// PromptOverrideError signals a failure applying an MCP prompt override.
type PromptOverrideError struct{ *baseError }

func NewPromptOverrideError(message string) *PromptOverrideError {
	return &PromptOverrideError{newBase("PromptOverrideError", message, "prompt_override")}
}

func firstCode(code []string) string {
	if len(code) > 0 {
		return code[0]
	}
	return ""
}

// AsDomainError reports whether err (or something it wraps) is a DomainError.
func AsDomainError(err error) (DomainError, bool) {
	var de DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// FailureKind is the stable classification produced by Classify, used both
// for logging and for picking the user-facing message (§7).
type FailureKind string

const (
	FailureRateLimit      FailureKind = "RateLimit"
	FailureLLMTimeout     FailureKind = "LLMTimeout"
	FailureLLMAuth        FailureKind = "LLMAuthentication"
	FailureLLMService     FailureKind = "LLMService"
)

// Classify is a pure function mapping an LLM-call failure to a stable
// (kind, user-facing message, log message) triple. User messages never
// contain raw exception text, stack traces, API keys, or provider-specific
// identifiers; they start with a capital letter and end with a period.
// Classifying an error whose text is one of the user messages returned
// here yields the same kind and user message again (the log message is
// then that user message).
func Classify(err error) (kind FailureKind, userMessage string, logMessage string) {
	if err == nil {
		return FailureLLMService, "The AI service encountered an error. Please try again or contact support if the issue persists.", ""
	}
	logMessage = err.Error()
	typeName := fmt.Sprintf("%T", err)
	haystack := strings.ToLower(typeName + " " + logMessage)

	switch {
	case strings.Contains(haystack, "ratelimit") || strings.Contains(haystack, "rate limit") || strings.Contains(haystack, "high traffic"):
		return FailureRateLimit, "The AI service is experiencing high traffic. Please try again in a moment.", logMessage
	case strings.Contains(haystack, "timeout") || strings.Contains(haystack, "timed out"):
		return FailureLLMTimeout, "The AI service request timed out. Please try again.", logMessage
	case strings.Contains(haystack, "unauthorized") || strings.Contains(haystack, "authentication") ||
		strings.Contains(haystack, "invalid api key") || strings.Contains(haystack, "invalid_api_key") ||
		strings.Contains(haystack, "api key"):
		return FailureLLMAuth, "There was an authentication issue with the AI service. Please contact your administrator.", logMessage
	default:
		return FailureLLMService, "The AI service encountered an error. Please try again or contact support if the issue persists.", logMessage
	}
}
