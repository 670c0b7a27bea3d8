package domain

import "errors"

// Common domain errors
var (
	// Prompt errors
	ErrPromptNotFound    = errors.New("prompt not found")
	ErrPromptRefRequired = errors.New("promptId or promptText is required")
	ErrAlreadyArchived   = errors.New("prompt is already archived")
	ErrInvalidTier       = errors.New("invalid prompt tier")
	ErrInvalidOutcome    = errors.New("invalid prompt outcome")
	ErrInvalidPrompt     = errors.New("prompt text failed validation")

	// Profile errors
	ErrUserNotFound = errors.New("user not found")

	// Auth errors
	ErrUnauthorized = errors.New("missing or invalid token")

	// Generation errors
	ErrGenerationFailed = errors.New("prompt generation failed")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
