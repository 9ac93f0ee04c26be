package errors

import (
	"fmt"
)

// DataQualityError records a non-fatal data quality issue discovered during
// cleaning or validation. Issues are collected into the run's quality report
// and never abort the batch pipeline.
type DataQualityError struct {
	EntityID  string
	Indicator string
	Issue     string
	Details   string
}

// Error implements the error interface
func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality [%s] %s/%s: %s", e.Issue, e.EntityID, e.Indicator, e.Details)
}

// NewDataQualityError creates a data quality error
func NewDataQualityError(entityID, indicator, issue, details string) *DataQualityError {
	return &DataQualityError{
		EntityID:  entityID,
		Indicator: indicator,
		Issue:     issue,
		Details:   details,
	}
}

// ModelFitError records a per-entity model fitting failure. The failing
// entity is isolated with a status value and the run continues.
type ModelFitError struct {
	EntityID string
	Metric   string
	Reason   string
	Cause    error
}

// Error implements the error interface
func (e *ModelFitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model fit %s/%s: %s: %v", e.EntityID, e.Metric, e.Reason, e.Cause)
	}
	return fmt.Sprintf("model fit %s/%s: %s", e.EntityID, e.Metric, e.Reason)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause
func (e *ModelFitError) Unwrap() error {
	return e.Cause
}

// NewModelFitError creates a model fit error
func NewModelFitError(entityID, metric, reason string, cause error) *ModelFitError {
	return &ModelFitError{EntityID: entityID, Metric: metric, Reason: reason, Cause: cause}
}

// CalculationError is fatal to a single simulator call. It is returned
// synchronously to the caller and never recorded in pipeline output.
type CalculationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *CalculationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("calculation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("calculation error: %s", e.Message)
}

// NewCalculationError creates a calculation error for the given field
func NewCalculationError(field, message string) *CalculationError {
	return &CalculationError{Field: field, Message: message}
}
