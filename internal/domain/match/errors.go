package match

import "errors"

// Sentinel errors for the match model.
var (
	ErrUnknownStatistic  = errors.New("unknown statistic")
	ErrUnsupportedSeason = errors.New("unsupported season")
	ErrInvalidStartTime  = errors.New("invalid start time")
)
