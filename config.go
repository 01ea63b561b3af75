package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`

	Serial SerialConfig `yaml:"serial"`
	Modem  ModemConfig  `yaml:"modem"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// SerialConfig describes how the modem's serial port is opened
type SerialConfig struct {
	// Port is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	Port string `yaml:"port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 9600)
	BaudRate int `yaml:"baud_rate"`
	// ReadTimeout bounds a single read on the port
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ModemConfig holds the settings applied to the modem at startup
type ModemConfig struct {
	// CommandTimeout bounds each AT exchange; zero waits indefinitely
	CommandTimeout time.Duration `yaml:"command_timeout"`
	// PropagateKeyRejection turns "+KEY: ERROR" responses into errors
	PropagateKeyRejection bool `yaml:"propagate_key_rejection"`
	// ADR is sent to the modem at startup when set
	ADR *bool `yaml:"adr"`
	// Keys are provisioned at startup when non-empty
	Keys KeysConfig `yaml:"keys"`
}

type KeysConfig struct {
	NwkSKey string `yaml:"nwkskey"`
	AppSKey string `yaml:"appskey"`
	AppKey  string `yaml:"appkey"`
}

// MQTTConfig configures the uplink bridge. An empty Broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	UplinkTopic string `yaml:"uplink_topic"`
	ResultTopic string `yaml:"result_topic"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.LogLevel = "info"
		c.Serial.Port = "/dev/ttyUSB0"
		c.Serial.BaudRate = 9600
		c.Serial.ReadTimeout = 100 * time.Millisecond
		c.MQTT.ClientID = "loragw-1"
		c.MQTT.UplinkTopic = "lorawan/uplink"
		c.MQTT.ResultTopic = "lorawan/uplink/result"
		return nil
	}
}

// WithFile overlays values from a YAML file. An empty path is a no-op.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		return nil
	}
}

// WithDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func WithDotEnv(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.Serial.Port = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			b, err := strconv.Atoi(baud)
			if err != nil {
				return fmt.Errorf("BAUD_RATE: %w", err)
			}
			c.Serial.BaudRate = b
		}

		if timeout := os.Getenv("READ_TIMEOUT"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("READ_TIMEOUT: %w", err)
			}
			c.Serial.ReadTimeout = d
		}

		if timeout := os.Getenv("COMMAND_TIMEOUT"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				return fmt.Errorf("COMMAND_TIMEOUT: %w", err)
			}
			c.Modem.CommandTimeout = d
		}

		if propagate := os.Getenv("PROPAGATE_KEY_REJECTION"); propagate != "" {
			p, err := strconv.ParseBool(propagate)
			if err != nil {
				return fmt.Errorf("PROPAGATE_KEY_REJECTION: %w", err)
			}
			c.Modem.PropagateKeyRejection = p
		}

		if adr := os.Getenv("ADR"); adr != "" {
			a, err := parseSwitch(adr)
			if err != nil {
				return fmt.Errorf("ADR: %w", err)
			}
			c.Modem.ADR = &a
		}

		if key := os.Getenv("NWKSKEY"); key != "" {
			c.Modem.Keys.NwkSKey = key
		}
		if key := os.Getenv("APPSKEY"); key != "" {
			c.Modem.Keys.AppSKey = key
		}
		if key := os.Getenv("APPKEY"); key != "" {
			c.Modem.Keys.AppKey = key
		}

		if broker := os.Getenv("MQTT_BROKER"); broker != "" {
			c.MQTT.Broker = broker
		}
		if id := os.Getenv("MQTT_CLIENT_ID"); id != "" {
			c.MQTT.ClientID = id
		}
		if topic := os.Getenv("MQTT_UPLINK_TOPIC"); topic != "" {
			c.MQTT.UplinkTopic = topic
		}
		if topic := os.Getenv("MQTT_RESULT_TOPIC"); topic != "" {
			c.MQTT.ResultTopic = topic
		}
		if user := os.Getenv("MQTT_USERNAME"); user != "" {
			c.MQTT.Username = user
		}
		if pass := os.Getenv("MQTT_PASSWORD"); pass != "" {
			c.MQTT.Password = pass
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "serial-port":
				c.Serial.Port = f.Value.String()
			case "baud-rate":
				b, convErr := strconv.Atoi(f.Value.String())
				if convErr != nil {
					err = fmt.Errorf("baud-rate: %w", convErr)
					return
				}
				c.Serial.BaudRate = b
			case "command-timeout":
				d, parseErr := time.ParseDuration(f.Value.String())
				if parseErr != nil {
					err = fmt.Errorf("command-timeout: %w", parseErr)
					return
				}
				c.Modem.CommandTimeout = d
			case "adr":
				a, parseErr := parseSwitch(f.Value.String())
				if parseErr != nil {
					err = fmt.Errorf("adr: %w", parseErr)
					return
				}
				c.Modem.ADR = &a
			case "mqtt-broker":
				c.MQTT.Broker = f.Value.String()
			}
		})
		return err
	}
}

// parseSwitch accepts on/off in addition to the strconv.ParseBool forms.
func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "ON", "On":
		return true, nil
	case "off", "OFF", "Off":
		return false, nil
	}
	return strconv.ParseBool(s)
}
