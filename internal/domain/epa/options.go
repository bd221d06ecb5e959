package epa

import "github.com/okian/scoutstat/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSeason sets the season loaded by Init.
func WithSeason(season int) Option {
	return func(e *Engine) {
		if season > 0 {
			e.season = season
		}
	}
}

// WithBootstrapWindow sets the inclusive epoch-second window whose matches
// seed the default rating.
func WithBootstrapWindow(start, end int64) Option {
	return func(e *Engine) {
		if end >= start {
			e.windowStart = start
			e.windowEnd = end
		}
	}
}
