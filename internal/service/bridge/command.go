package bridge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pianohome/keynote-bridge/internal/config"
	"github.com/pianohome/keynote-bridge/internal/ha"
	"github.com/pianohome/keynote-bridge/internal/logger"
	"github.com/pianohome/keynote-bridge/internal/midi/coremidi"
)

// Options controls how the bridge is assembled.
type Options struct {
	// ConfigPath is the path to the main YAML configuration file.
	ConfigPath string
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
	// TestMode replaces the Home Assistant client with a logging dispatcher,
	// so the full gate pipeline can be exercised without a running instance.
	TestMode bool
}

// tokenEnvVar is where the Home Assistant access token is read from.
const tokenEnvVar = "HA_TOKEN"

var (
	// errTokenMissing is returned when the access token env variable is unset.
	errTokenMissing = errors.New(tokenEnvVar + " environment variable is not set")
	// errHAURLMissing is returned when no Home Assistant URL is configured.
	errHAURLMissing = errors.New("ha.url must be configured")
)

// Run loads configuration, assembles the device and dispatcher and drives the
// dispatch loop until the context is done.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "bridge")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logLevel := cfg.Logging.Level
	if opts.LogLevel != "" {
		logLevel = opts.LogLevel
	}

	if level, ok := logger.ParseLogLevel(logLevel); ok {
		logger.SetLevel(level)
	}

	mapping, err := config.LoadMapping(cfg.MappingFile)
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}

	logger.InfoKV(ctx, "Configuration loaded",
		"mapped_notes", len(mapping.Notes), "arming_enabled", cfg.Arming.Enabled)

	device, err := coremidi.New(cfg.MIDI.Channel)
	if err != nil {
		return fmt.Errorf("create MIDI client: %w", err)
	}

	dispatcher, cleanup, err := buildDispatcher(ctx, cfg, opts.TestMode)
	if err != nil {
		return err
	}
	defer cleanup()

	return NewService(cfg, mapping, device, dispatcher).Run(ctx)
}

// buildDispatcher returns the outbound action dispatcher: the real Home
// Assistant client, or the logging stand-in for test mode.
func buildDispatcher(ctx context.Context, cfg *config.Config, testMode bool) (ha.Dispatcher, func(), error) {
	if testMode {
		logger.Info(ctx, "Running in test mode, service calls are logged only")
		return LogDispatcher{}, func() {}, nil
	}

	if cfg.HA.URL == "" {
		return nil, nil, errHAURLMissing
	}

	token := os.Getenv(tokenEnvVar)
	if token == "" {
		return nil, nil, errTokenMissing
	}

	backoff := make([]time.Duration, 0, len(cfg.Runtime.ReconnectBackoff))
	for _, d := range cfg.Runtime.ReconnectBackoff {
		backoff = append(backoff, d.Std())
	}

	client, err := ha.NewClient(cfg.HA.URL, token, ha.WithReconnectBackoff(backoff))
	if err != nil {
		return nil, nil, fmt.Errorf("create Home Assistant client: %w", err)
	}

	if err = client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to Home Assistant: %w", err)
	}

	cleanup := func() {
		_ = client.Close()
	}

	return client, cleanup, nil
}
