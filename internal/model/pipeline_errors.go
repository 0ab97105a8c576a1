package model

import "time"

// NotFoundError is returned when a material or client id does not
// resolve to a row.
type NotFoundError struct {
	BaseError
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

// NewNotFound creates a NotFoundError for the given resource/id pair.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Code:      ErrCodeNotFound,
			Message:   resource + " not found",
			Timestamp: time.Now(),
		},
		Resource: resource,
		ID:       id,
	}
}

// ConflictError is returned when a stage task cannot be submitted
// because the material is already being advanced by another task.
type ConflictError struct {
	BaseError
	MaterialID string `json:"material_id"`
}

// NewConflict creates a ConflictError for materialID.
func NewConflict(materialID string) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Code:      ErrCodeConflict,
			Message:   "material is being translated",
			Timestamp: time.Now(),
		},
		MaterialID: materialID,
	}
}

// VersionConflictError is returned by an optimistic-lock update whose
// expected_version no longer matches the stored row.
type VersionConflictError struct {
	BaseError
	MaterialID      string `json:"material_id"`
	ExpectedVersion int    `json:"expected_version"`
}

// NewVersionConflict creates a VersionConflictError.
func NewVersionConflict(materialID string, expectedVersion int) *VersionConflictError {
	return &VersionConflictError{
		BaseError: BaseError{
			Code:      ErrCodeVersionConflict,
			Message:   "version conflict",
			Timestamp: time.Now(),
		},
		MaterialID:      materialID,
		ExpectedVersion: expectedVersion,
	}
}

// ProviderRecoverableError marks an upstream outage that falls the
// material back to a reviewable step rather than failing it.
type ProviderRecoverableError struct {
	BaseError
	Provider string `json:"provider"`
	Cause    error  `json:"-"`
}

// NewProviderRecoverable creates a ProviderRecoverableError.
func NewProviderRecoverable(provider, message string, cause error) *ProviderRecoverableError {
	return &ProviderRecoverableError{
		BaseError: BaseError{
			Code:      ErrCodeProviderRecoverable,
			Message:   message,
			Timestamp: time.Now(),
		},
		Provider: provider,
		Cause:    cause,
	}
}

func (e *ProviderRecoverableError) Unwrap() error { return e.Cause }

// ProviderFatalError marks a malformed-input/auth/quota failure that
// transitions the material to failed.
type ProviderFatalError struct {
	BaseError
	Provider string `json:"provider"`
	Cause    error  `json:"-"`
}

// NewProviderFatal creates a ProviderFatalError.
func NewProviderFatal(provider, message string, cause error) *ProviderFatalError {
	return &ProviderFatalError{
		BaseError: BaseError{
			Code:      ErrCodeProviderFatal,
			Message:   message,
			Timestamp: time.Now(),
		},
		Provider: provider,
		Cause:    cause,
	}
}

func (e *ProviderFatalError) Unwrap() error { return e.Cause }

// StageTimeoutError marks a stage that exceeded its deadline. Given
// the same downstream treatment as ProviderFatalError (spec §7).
type StageTimeoutError struct {
	BaseError
	Stage string `json:"stage"`
}

// NewStageTimeout creates a StageTimeoutError.
func NewStageTimeout(stage string) *StageTimeoutError {
	return &StageTimeoutError{
		BaseError: BaseError{
			Code:      ErrCodeStageTimeout,
			Message:   stage + " stage exceeded its deadline",
			Timestamp: time.Now(),
		},
		Stage: stage,
	}
}

// Additional error codes extending the taxonomy in errors.go.
const (
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeVersionConflict     ErrorCode = "VERSION_CONFLICT"
	ErrCodeProviderRecoverable ErrorCode = "PROVIDER_RECOVERABLE"
	ErrCodeProviderFatal       ErrorCode = "PROVIDER_FATAL"
	ErrCodeStageTimeout        ErrorCode = "STAGE_TIMEOUT"
)
