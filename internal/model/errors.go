package model

import (
	"errors"
	"fmt"
)

// ConfigurationError reports missing setup detected before any I/O.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// TransportError reports a failed call to the survey platform.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d from %s", e.Op, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StorageError reports a failure inside a storage backend.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s storage: failed to %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DataShapeError reports a fetched record that breaks the platform contract.
type DataShapeError struct {
	SubmissionID string
	Field        string
	Reason       string
}

func (e *DataShapeError) Error() string {
	if e.SubmissionID == "" {
		return fmt.Sprintf("malformed submission: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("malformed submission %s: %s %s", e.SubmissionID, e.Field, e.Reason)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsStorageError reports whether err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
