package importer

import "errors"

// Sentinel errors for the importer.
var (
	ErrNilWriter    = errors.New("importer: nil writer")
	ErrFileName     = errors.New("importer: file name must be {season}-{event}-{matches|scores}.json")
	ErrDecode       = errors.New("importer: malformed document")
	ErrNotDirectory = errors.New("importer: not a directory")
)
