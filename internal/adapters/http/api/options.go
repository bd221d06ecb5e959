package api

import (
	"github.com/okian/scoutstat/pkg/logger"
	"golang.org/x/time/rate"
)

const defaultMaxLimit = 1000

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps the leaderboard limit parameter.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithRateLimit limits OPR requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
