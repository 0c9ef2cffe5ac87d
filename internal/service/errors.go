package service

import "errors"

// ErrInvalidRequest wraps request validation failures so the transport can
// map them to a 400 without string matching.
var ErrInvalidRequest = errors.New("invalid request")

// ErrRunNotFound is returned for lookups and cancellations of unknown runs.
var ErrRunNotFound = errors.New("run not found")
