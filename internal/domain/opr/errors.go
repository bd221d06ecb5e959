package opr

import "errors"

// Sentinel errors for the OPR engine.
var (
	ErrNilRepository = errors.New("opr: nil repository")
	ErrFactorization = errors.New("opr: svd factorization failed")
)
