package influx

import "errors"

var (
	// ErrInvalidRange is returned when a requested time range is empty or
	// inverted (stop <= start). A caller error, mapped to 400 upstream.
	ErrInvalidRange = errors.New("invalid time range")

	// ErrQuery wraps transport or query-syntax failures from the store.
	// Never retried here; the caller decides what to do with it.
	ErrQuery = errors.New("store query failed")

	// ErrMalformedRow is returned when a returned row lacks a required
	// field, which indicates a schema mismatch with the store.
	ErrMalformedRow = errors.New("malformed row")
)
