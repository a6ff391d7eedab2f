package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Malformed requests map to INVALID_ARGUMENT.
// Context timeouts map to DEADLINE_EXCEEDED, cancellation to CANCELED.
// Anything else (encoding failures) maps to INTERNAL.

var (
	// ErrBatchTooLarge indicates a Dispatch batch above the configured maximum.
	ErrBatchTooLarge = errors.New("batch size exceeds maximum")

	// ErrInvalidEvent indicates an event that cannot be decoded into a record.
	ErrInvalidEvent = errors.New("invalid event")
)

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, ErrBatchTooLarge), errors.Is(err, ErrInvalidEvent):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
