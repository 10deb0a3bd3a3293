package repository

import "errors"

var (
	// ErrNotFound standard error when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate a record with the same unique key already exists.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConditionFailed a conditional update matched zero rows. Used
	// by coupon redemption and granted-token consumption, where the
	// guard in the UPDATE is what enforces the invariant.
	ErrConditionFailed = errors.New("conditional update matched no rows")
)
