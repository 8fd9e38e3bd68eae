package domain

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPoint is returned for coordinates that are not finite or out of range.
	ErrInvalidPoint = errors.New("invalid coordinate")
	// ErrMarkerNotRendered is returned when activating a marker that is not on the map.
	ErrMarkerNotRendered = errors.New("marker not rendered")
	// ErrUpstream is returned when an upstream data provider fails.
	ErrUpstream = errors.New("upstream request failed")
)

// ErrInvalidInput is returned when a required argument is missing or malformed.
var ErrInvalidInput = errors.New("invalid input")
