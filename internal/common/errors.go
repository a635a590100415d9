// Package common defines the pipeline error taxonomy. Stages classify
// their failures (connectivity / aggregation / write / config) so the
// orchestrator can decide what is retryable next run and what is fatal.
package common

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Error categories. Connectivity errors are safe to retry on the next
// run; config errors are fatal at startup; aggregation and write errors
// abort only the tenant iteration that raised them.
const (
	CategoryConnectivity = "connectivity"
	CategoryAggregation  = "aggregation"
	CategoryWrite        = "write"
	CategoryConfig       = "config"
	CategoryEnrichment   = "enrichment"
)

// ErrorCode identifies a failure class within a category.
type ErrorCode struct {
	Code        string // e.g. CONN_001
	Category    string // one of the Category* constants
	Description string
}

var (
	ErrCodeMongoConnect = ErrorCode{Code: "CONN_001", Category: CategoryConnectivity, Description: "MongoDB connection failed"}
	ErrCodeMongoTimeout = ErrorCode{Code: "CONN_002", Category: CategoryConnectivity, Description: "MongoDB operation timed out"}
	ErrCodeMariaConnect = ErrorCode{Code: "CONN_003", Category: CategoryConnectivity, Description: "MariaDB connection failed"}

	ErrCodeAggregate = ErrorCode{Code: "AGG_001", Category: CategoryAggregation, Description: "Aggregation pipeline failed"}
	ErrCodeDecode    = ErrorCode{Code: "AGG_002", Category: CategoryAggregation, Description: "Result decoding failed"}

	ErrCodeBulkWrite = ErrorCode{Code: "WRITE_001", Category: CategoryWrite, Description: "Bulk upsert failed"}

	ErrCodeEnrichQuery = ErrorCode{Code: "ENRICH_001", Category: CategoryEnrichment, Description: "Billing account query failed"}

	ErrCodeConfig = ErrorCode{Code: "CFG_001", Category: CategoryConfig, Description: "Invalid configuration"}
)

// Error is the pipeline error type: a code, a message and the wrapped
// cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a pipeline error wrapping cause (cause may be nil).
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// Category returns the error category of err, or "" when err carries no
// pipeline classification.
func Category(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code.Category
	}
	return ""
}

// IsConnectivity reports whether err is classified as a connectivity
// failure (tenant skipped, watermark untouched, retried next run).
func IsConnectivity(err error) bool {
	return Category(err) == CategoryConnectivity
}

// Sentinel errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrRequiredField = errors.New("required field missing")
)

// ConvertMongoError translates a MongoDB driver error into the pipeline
// taxonomy. Timeouts and network errors become connectivity errors so
// the tenant is retried next run instead of being treated as a data bug.
func ConvertMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsTimeout(err) {
		return NewError(ErrCodeMongoTimeout, "mongodb operation timed out", err)
	}
	if mongo.IsNetworkError(err) {
		return NewError(ErrCodeMongoConnect, "mongodb network error", err)
	}

	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		return NewError(ErrCodeBulkWrite, fmt.Sprintf("bulk write: %d write errors", len(bulkErr.WriteErrors)), err)
	}

	return NewError(ErrCodeAggregate, "mongodb operation failed", err)
}
