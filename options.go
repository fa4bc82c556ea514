package seal

import (
	"time"

	"github.com/brickingsoft/errors"
	"github.com/rs/zerolog"
)

const (
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultAggregationThreshold = 16 * 1024
)

type Options struct {
	// HandshakeTimeout bounds the whole handshake. Zero disables the deadline.
	HandshakeTimeout time.Duration
	// AggregationThreshold caps how many bytes consecutive small owned writes
	// may coalesce into before being handed to the engine.
	AggregationThreshold int
	// Executor runs engine delegated tasks.
	Executor TaskExecutor
	Logger   zerolog.Logger
}

type Option func(options *Options) (err error)

func WithHandshakeTimeout(d time.Duration) Option {
	return func(options *Options) (err error) {
		if d < 0 {
			err = errors.New("seal: handshake timeout must not be negative")
			return
		}
		options.HandshakeTimeout = d
		return
	}
}

func WithAggregationThreshold(n int) Option {
	return func(options *Options) (err error) {
		if n < 0 {
			err = errors.New("seal: aggregation threshold must not be negative")
			return
		}
		options.AggregationThreshold = n
		return
	}
}

func WithExecutor(executor TaskExecutor) Option {
	return func(options *Options) (err error) {
		if executor == nil {
			err = errors.New("seal: executor is nil")
			return
		}
		options.Executor = executor
		return
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(options *Options) (err error) {
		options.Logger = logger
		return
	}
}

func defaultOptions() Options {
	return Options{
		HandshakeTimeout:     DefaultHandshakeTimeout,
		AggregationThreshold: DefaultAggregationThreshold,
		Executor:             InlineExecutor{},
		Logger:               zerolog.Nop(),
	}
}
