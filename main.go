package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"i4.energy/across/loragw/modem"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	envFile := flag.String("env-file", ".env", "Path to a .env file (ignored if missing)")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 9600, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("command-timeout", "0s", "Upper bound for one AT exchange, 0 waits indefinitely")
	flag.String("adr", "", "Adaptive data rate to apply at startup (on, off)")
	flag.String("mqtt-broker", "", "MQTT broker URL, empty disables the uplink bridge")
	flag.Parse()

	config, err := LoadConfig(
		WithDefaults(),
		WithFile(*configPath),
		WithDotEnv(*envFile),
		WithEnv(),
		WithFlags(flag.CommandLine),
	)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(config.LogLevel)

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(modem.SerialDialer{
			PortName:    config.Serial.Port,
			BaudRate:    config.Serial.BaudRate,
			ReadTimeout: config.Serial.ReadTimeout,
		}).
		WithLogger(logger).
		WithBurstIdle(config.Serial.ReadTimeout).
		WithCommandTimeout(config.Modem.CommandTimeout).
		WithPropagateKeyRejection(config.Modem.PropagateKeyRejection).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		if modem.IsPortUnavailable(err) {
			logger.Error("Serial port unavailable", "port", config.Serial.Port, "error", err)
		} else {
			logger.Error("Failed to create modem", "error", err)
		}
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(registry)

	if err := applyModemSettings(ctx, m, config.Modem, metrics, logger); err != nil {
		logger.Error("Failed to configure modem", "error", err)
		m.Close()
		os.Exit(1)
	}

	logger.Info("Starting LoRaWAN gateway", "identity", m.Identity())

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:   logger.With("component", "server"),
			Device:   m,
			Metrics:  metrics,
			Gatherer: registry,
		},
	}

	var bridge *Bridge
	if config.MQTT.Broker != "" {
		bridge = NewBridge(config.MQTT, m, metrics, logger.With("component", "mqtt"))
		if err := bridge.Connect(ctx); err != nil {
			logger.Error("MQTT bridge unavailable", "error", err)
		}
	}

	if err := serve(ctx, httpServer, bridge, m, logger); err != nil {
		os.Exit(1)
	}
}

// serve runs httpServer until ctx is done or the server fails. The bridge
// and the modem are released on both paths before the server is shut down.
func serve(ctx context.Context, httpServer *http.Server, bridge *Bridge, m io.Closer, logger *slog.Logger) error {
	// Start HTTP server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var failure error
	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		logger.Error("HTTP server failed", "error", err)
		failure = err
	}

	if bridge != nil {
		logger.Info("Disconnecting MQTT bridge")
		bridge.Disconnect()
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		return errors.Join(failure, err)
	}
	return failure
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// applyModemSettings provisions the configured keys and ADR setting. A key
// the modem rejects is logged and does not stop the gateway unless key
// rejection propagation is enabled.
func applyModemSettings(ctx context.Context, d Device, config ModemConfig, metrics *Metrics, logger *slog.Logger) error {
	keys := []struct {
		keyType modem.KeyType
		value   string
	}{
		{modem.KeyNwkSKey, config.Keys.NwkSKey},
		{modem.KeyAppSKey, config.Keys.AppSKey},
		{modem.KeyAppKey, config.Keys.AppKey},
	}
	for _, k := range keys {
		if k.value == "" {
			continue
		}
		result, err := d.ProvisionKey(ctx, k.keyType, k.value)
		metrics.ObserveKey(result, err)
		if err != nil {
			return err
		}
		if result.Accepted {
			logger.Info("Key provisioned", "key", k.keyType)
		}
	}

	if config.ADR != nil {
		if err := d.SetADR(ctx, *config.ADR); err != nil {
			return err
		}
		metrics.ObserveADR(*config.ADR)
	}
	return nil
}
