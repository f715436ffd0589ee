// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package anonymizer

import (
	"errors"
	"fmt"
	"time"
)

// ErrReverseUnsupported is returned when reversing a document whose mode
// kept no recoverable data.
var ErrReverseUnsupported = errors.New("reversal is only supported for encrypt-mode documents")

// ErrorType defines the type of processing error
type ErrorType int

const (
	// ErrorLedgerWrite indicates a mapping or document record could not be written
	ErrorLedgerWrite ErrorType = iota

	// ErrorEncryption indicates an encrypt or decrypt failure
	ErrorEncryption

	// ErrorDetection indicates the detector failed on a text unit
	ErrorDetection

	// ErrorGeneration indicates a replacement value could not be produced
	ErrorGeneration

	// ErrorConfiguration indicates a configuration error
	ErrorConfiguration

	// ErrorUnresolved indicates a placeholder with no usable ledger record
	ErrorUnresolved
)

// String returns the string representation of the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorLedgerWrite:
		return "ledger_write"
	case ErrorEncryption:
		return "encryption"
	case ErrorDetection:
		return "detection"
	case ErrorGeneration:
		return "generation"
	case ErrorConfiguration:
		return "configuration"
	case ErrorUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// ProcessingError represents an error that occurred while processing a document
type ProcessingError struct {
	// Type is the type of error
	Type ErrorType

	// Message is the error message
	Message string

	// DocumentID is the document being processed when the error occurred
	DocumentID string

	// Component is the component that generated the error
	Component string

	// Recoverable indicates whether processing may continue
	Recoverable bool

	// Timestamp is when the error occurred
	Timestamp time.Time

	// Cause is the underlying error that caused this error
	Cause error
}

// Error implements the error interface
func (e *ProcessingError) Error() string {
	msg := fmt.Sprintf("[%s] %s (component: %s", e.Type, e.Message, e.Component)
	if e.DocumentID != "" {
		msg += ", document: " + e.DocumentID
	}
	msg += ")"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping
func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// NewProcessingError creates a new ProcessingError
func NewProcessingError(errorType ErrorType, message, documentID, component string, cause error) *ProcessingError {
	return &ProcessingError{
		Type:        errorType,
		Message:     message,
		DocumentID:  documentID,
		Component:   component,
		Recoverable: isRecoverable(errorType),
		Timestamp:   time.Now(),
		Cause:       cause,
	}
}

// isRecoverable determines if an error type is recoverable
func isRecoverable(errorType ErrorType) bool {
	switch errorType {
	case ErrorUnresolved:
		return true // placeholder stays in the text
	case ErrorEncryption:
		return true // a failed decrypt leaves the placeholder
	default:
		return false
	}
}

// ErrorCollection manages a collection of processing errors
type ErrorCollection struct {
	errors []ProcessingError
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{errors: make([]ProcessingError, 0)}
}

// Add adds an error to the collection
func (c *ErrorCollection) Add(err ProcessingError) {
	c.errors = append(c.errors, err)
}

// GetErrors returns all errors in the collection
func (c *ErrorCollection) GetErrors() []ProcessingError {
	return c.errors
}

// HasErrors returns true if the collection contains any errors
func (c *ErrorCollection) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrorsByType returns all errors of the specified type
func (c *ErrorCollection) GetErrorsByType(errorType ErrorType) []ProcessingError {
	var result []ProcessingError
	for _, err := range c.errors {
		if err.Type == errorType {
			result = append(result, err)
		}
	}
	return result
}

// Count returns the number of errors in the collection
func (c *ErrorCollection) Count() int {
	return len(c.errors)
}
