package docstore

import (
	"io"
	"log/slog"
)

// DefaultTable is the table the DB forwards its document methods to.
const DefaultTable = "_default"

type settings struct {
	logger       *slog.Logger
	metrics      MetricsCollector
	defaultTable string
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:      NoopMetrics{},
		defaultTable: DefaultTable,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a DB or a Table.
type Option func(*settings)

// WithLogger sets the logger. Tables log cache activity and writes at debug
// level. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDefaultTable changes the name of the table DB methods forward to.
func WithDefaultTable(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.defaultTable = name
		}
	}
}
