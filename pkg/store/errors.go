package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a descriptor, link entry or calibration is missing.
	ErrNotFound = errors.New("not found")

	// ErrParse is returned when a persisted descriptor is malformed.
	ErrParse = errors.New("malformed descriptor")

	// ErrReadOnly is returned when writing to a config tree.
	ErrReadOnly = errors.New("store is read-only")

	// ErrExists is returned when an append-only record is written twice.
	ErrExists = errors.New("already exists")

	// ErrNoCalibration is returned by LoadRGB2LMS when no transform matches.
	ErrNoCalibration = fmt.Errorf("no matching calibration for this display configuration: %w", ErrNotFound)
)
