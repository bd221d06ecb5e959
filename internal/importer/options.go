package importer

import (
	"time"

	"github.com/okian/scoutstat/internal/domain/dedupe"
	"github.com/okian/scoutstat/pkg/logger"
)

// Option applies a configuration option to the Importer.
type Option func(*Importer)

// WithLogger sets the importer logger.
func WithLogger(l logger.Logger) Option {
	return func(im *Importer) {
		if l != nil {
			im.logger = l
		}
	}
}

// WithDeduper replaces the content deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(im *Importer) {
		if d != nil {
			im.seen = d
		}
	}
}

// WithSettleDelay sets how long a watched file must stay unchanged before it
// is imported.
func WithSettleDelay(d time.Duration) Option {
	return func(im *Importer) {
		if d > 0 {
			im.settle = d
		}
	}
}
