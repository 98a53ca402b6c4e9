package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingIdentity  = errors.New("missing identifying field")
	ErrInvalidRange     = errors.New("invalid date range")
	ErrRangeMismatch    = errors.New("comparison range length differs from current range")
	ErrUnknownMetric    = errors.New("unknown metric")
	ErrUnknownDimension = errors.New("unknown dimension")
	ErrUpstream         = errors.New("upstream API error")
	ErrNoAccounts       = errors.New("no accounts to sync")
	ErrNotFound         = errors.New("not found")
)

// TransformError reports a raw insight that cannot be placed in the fact
// store key space.
type TransformError struct {
	Field string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform insight: %s: %v", e.Field, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
