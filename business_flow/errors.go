// Package businessflow contains the renewal, inventory and reporting use cases
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lookup errors
	ErrTenantNotFound = errors.New("tenant not found")
	ErrClientNotFound = errors.New("client not found")

	// Dispatch errors
	ErrInvalidRenewalRequest = errors.New("invalid renewal request")
	ErrProviderNotRegistered = errors.New("provider not registered")
	ErrProviderAccountNotSet = errors.New("provider credentials not configured")
	ErrUnknownProviderKind   = errors.New("unknown provider kind")

	// Inventory errors
	ErrProductCodeRequired = errors.New("product code is required")
	ErrNoCodesProvided     = errors.New("no codes provided")

	// Filter errors
	ErrInvalidDateRange      = errors.New("invalid date range")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
	ErrDateRangeTooLarge     = errors.New("date range cannot exceed 366 days")
	ErrExportTooLarge        = errors.New("export exceeds the row limit, narrow the date range")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsTenantNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound)
}

func IsClientNotFound(err error) bool {
	return errors.Is(err, ErrClientNotFound)
}

func IsInvalidRenewalRequest(err error) bool {
	return errors.Is(err, ErrInvalidRenewalRequest)
}

func IsUnknownProviderKind(err error) bool {
	return errors.Is(err, ErrUnknownProviderKind)
}

func IsProductCodeRequired(err error) bool {
	return errors.Is(err, ErrProductCodeRequired)
}

func IsNoCodesProvided(err error) bool {
	return errors.Is(err, ErrNoCodesProvided)
}

func IsInvalidDateRange(err error) bool {
	return errors.Is(err, ErrInvalidDateRange)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}

func IsDateRangeTooLarge(err error) bool {
	return errors.Is(err, ErrDateRangeTooLarge)
}

func IsExportTooLarge(err error) bool {
	return errors.Is(err, ErrExportTooLarge)
}
