package service

import "errors"

// Sentinel errors returned by the Service.
var (
	ErrNotStarted   = errors.New("service: not started")
	ErrNotReady     = errors.New("service: ratings not ready")
	ErrBackpressure = errors.New("service: opr queue full")
	ErrTimeout      = errors.New("service: opr computation timed out")
	ErrNilRepo      = errors.New("service: nil repository")
)
