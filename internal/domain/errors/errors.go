package errors

import (
	"errors"
	"fmt"
)

type ErrUnknownSource struct {
	Source string
}

func (e *ErrUnknownSource) Error() string {
	return "unknown source: " + e.Source
}

func (e *ErrUnknownSource) Is(target error) bool {
	_, ok := target.(*ErrUnknownSource)
	return ok
}

type ErrMessageNotFound struct {
	ChannelID string
	MessageID string
}

func (e *ErrMessageNotFound) Error() string {
	return fmt.Sprintf("message %s not found in channel %s", e.MessageID, e.ChannelID)
}

func (e *ErrMessageNotFound) Is(target error) bool {
	_, ok := target.(*ErrMessageNotFound)
	return ok
}

// IsMessageNotFound reports whether err is a missing-message error from the
// notification transport.
func IsMessageNotFound(err error) bool {
	return errors.Is(err, &ErrMessageNotFound{})
}

type ErrMissingMessageRef struct {
	ItemID string
}

func (e *ErrMissingMessageRef) Error() string {
	return "no message ref stored for item: " + e.ItemID
}

func (e *ErrMissingMessageRef) Is(target error) bool {
	_, ok := target.(*ErrMissingMessageRef)
	return ok
}

type ErrUnknownStoreType struct {
	StoreType string
}

func (e *ErrUnknownStoreType) Error() string {
	return "unknown baseline store type: " + e.StoreType
}

func (e *ErrUnknownStoreType) Is(target error) bool {
	_, ok := target.(*ErrUnknownStoreType)
	return ok
}

type ErrLoginFailed struct {
	Cause error
}

func (e *ErrLoginFailed) Error() string {
	return fmt.Sprintf("notification transport login failed: %v", e.Cause)
}

func (e *ErrLoginFailed) Unwrap() error {
	return e.Cause
}

type ErrBuildSQLQuery struct {
	Operation string
	Cause     error
}

func (e *ErrBuildSQLQuery) Error() string {
	return fmt.Sprintf("building SQL query for %s: %v", e.Operation, e.Cause)
}

func (e *ErrBuildSQLQuery) Unwrap() error {
	return e.Cause
}

type ErrSQLExecution struct {
	Operation string
	Cause     error
}

func (e *ErrSQLExecution) Error() string {
	return fmt.Sprintf("executing SQL query for %s: %v", e.Operation, e.Cause)
}

func (e *ErrSQLExecution) Unwrap() error {
	return e.Cause
}

type ErrSQLScan struct {
	Entity string
	Cause  error
}

func (e *ErrSQLScan) Error() string {
	return fmt.Sprintf("scanning %s: %v", e.Entity, e.Cause)
}

func (e *ErrSQLScan) Unwrap() error {
	return e.Cause
}

type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.StatusCode)
}
