package seal

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
)

// Config is the TOML tuning surface of a session. All fields are optional;
// zero values keep the defaults.
type Config struct {
	HandshakeTimeout     string `toml:"handshake_timeout"`
	AggregationThreshold int    `toml:"aggregation_threshold"`
	MaxTaskGoroutines    int    `toml:"max_task_goroutines"`
	TaskCloseTimeout     string `toml:"task_close_timeout"`
}

func ReadConfig(path string) (config Config, err error) {
	if _, decodeErr := toml.DecodeFile(path, &config); decodeErr != nil {
		err = errors.New("seal: read config failed", errors.WithWrap(decodeErr))
		return
	}
	return
}

func (config *Config) AsOptions() (options []Option, err error) {
	if config.HandshakeTimeout != "" {
		d, parseErr := time.ParseDuration(config.HandshakeTimeout)
		if parseErr != nil {
			err = errors.New("seal: invalid handshake_timeout", errors.WithWrap(parseErr))
			return
		}
		options = append(options, WithHandshakeTimeout(d))
	}
	if config.AggregationThreshold > 0 {
		options = append(options, WithAggregationThreshold(config.AggregationThreshold))
	}
	return
}

// AsRxpOptions maps the task executor tuning onto rxp options, for callers
// building the pool behind NewExecutors.
func (config *Config) AsRxpOptions() (options []rxp.Option, err error) {
	if n := config.MaxTaskGoroutines; n > 0 {
		options = append(options, rxp.WithMaxGoroutines(n))
	}
	if config.TaskCloseTimeout != "" {
		d, parseErr := time.ParseDuration(config.TaskCloseTimeout)
		if parseErr != nil {
			err = errors.New("seal: invalid task_close_timeout", errors.WithWrap(parseErr))
			return
		}
		options = append(options, rxp.WithCloseTimeout(d))
	}
	return
}
