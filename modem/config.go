package modem

import (
	"log/slog"
	"time"
)

// Config holds the settings used by New. Build one with NewConfigBuilder.
type Config struct {
	// Dialer opens the transport to the modem. Required.
	Dialer Dialer
	// Logger receives SEND/RECV records and failures.
	Logger *slog.Logger
	// PollInterval is the sleep between BytesAvailable checks while waiting
	// for a response.
	PollInterval time.Duration
	// BurstIdle ends a multi-line read once the modem has been silent this long.
	BurstIdle time.Duration
	// CommandTimeout bounds every operation when the caller's context has no
	// deadline. Zero keeps the unbounded wait of the modem protocol.
	CommandTimeout time.Duration
	// PropagateKeyRejection makes ProvisionKey return a *KeyRejectedError
	// in addition to the KeyResult. By default rejection is only logged.
	PropagateKeyRejection bool
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.BurstIdle <= 0 {
		c.BurstIdle = DefaultReadTimeout
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	b.config.PollInterval = d
	return b
}

func (b *ConfigBuilder) WithBurstIdle(d time.Duration) *ConfigBuilder {
	b.config.BurstIdle = d
	return b
}

func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.CommandTimeout = d
	return b
}

func (b *ConfigBuilder) WithPropagateKeyRejection(propagate bool) *ConfigBuilder {
	b.config.PropagateKeyRejection = propagate
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
