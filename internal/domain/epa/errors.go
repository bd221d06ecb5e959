package epa

import (
	"errors"
	"fmt"

	"github.com/okian/scoutstat/internal/domain/match"
)

// Sentinel errors for the EPA engine.
var (
	ErrNilRepository        = errors.New("epa: nil repository")
	ErrNotInitialized       = errors.New("epa: engine not initialized")
	ErrEmptyBootstrapWindow = errors.New("epa: no matches in bootstrap window")
	ErrMissingCounterpart   = errors.New("epa: missing match counterpart")
	ErrOutOfOrder           = errors.New("epa: match precedes team history")
	ErrAlreadyReplayed      = errors.New("epa: season already replayed")
	ErrUnrankedTeam         = errors.New("epa: team has no rating updates")
)

// MissingCounterpartError identifies the alliance record that could not be
// resolved.
type MissingCounterpartError struct {
	Key    match.Key
	Record string // "participation" or "score"
}

func (e *MissingCounterpartError) Error() string {
	return fmt.Sprintf("%s: no %s record for %s", ErrMissingCounterpart, e.Record, e.Key)
}

func (e *MissingCounterpartError) Unwrap() error { return ErrMissingCounterpart }
