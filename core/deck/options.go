package deck

import (
	"context"
	"log/slog"

	"github.com/FocuswithJustin/deckir/core/dialect"
)

// Option configures Parse, Render, CheckFidelity and Jitter.
type Option func(*options)

type options struct {
	dialect *dialect.Dialect
	logger  *slog.Logger
}

// WithDialect selects the vocabulary. The default is dialect.Default().
func WithDialect(d *dialect.Dialect) Option {
	return func(o *options) {
		if d != nil {
			o.dialect = d
		}
	}
}

// WithLogger sets a logger for diagnostic output. Nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{dialect: dialect.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *options) logEnabled(level slog.Level) bool {
	return o.logger != nil && o.logger.Enabled(context.Background(), level)
}
