package opr

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
