package config

import (
	"time"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// CommandBusConfig holds the tunables of the ring buffer.
type CommandBusConfig struct {
	BufferSize   int           `env:"COMMANDBUS_BUFFER_SIZE" envDefault:"4096"`
	ClaimPolicy  string        `env:"COMMANDBUS_CLAIM_POLICY" envDefault:"blocking"`
	WaitStrategy string        `env:"COMMANDBUS_WAIT_STRATEGY" envDefault:"blocking"`
	SleepPeriod  time.Duration `env:"COMMANDBUS_WAIT_SLEEP_PERIOD" envDefault:"100us"`
}

// LoadCommandBusConfig parses CommandBusConfig from the environment.
func LoadCommandBusConfig() (CommandBusConfig, error) {
	var cfg CommandBusConfig
	if err := ParseEnv(&cfg); err != nil {
		return CommandBusConfig{}, err
	}

	return cfg, nil
}

// Options translates the configuration into commandbus options.
// Unknown claim policies or wait strategies are reported here, the buffer size by commandbus.NewCommandBus.
func (c CommandBusConfig) Options() ([]commandbus.Option, error) {
	claimPolicy, err := commandbus.ParseClaimPolicy(c.ClaimPolicy)
	if err != nil {
		return nil, err
	}

	waitStrategy, err := commandbus.ParseWaitStrategy(c.WaitStrategy, c.SleepPeriod)
	if err != nil {
		return nil, err
	}

	return []commandbus.Option{
		commandbus.WithBufferSize(c.BufferSize),
		commandbus.WithClaimPolicy(claimPolicy),
		commandbus.WithWaitStrategy(waitStrategy),
	}, nil
}
