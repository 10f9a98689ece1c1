package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pianohome/keynote-bridge/internal/config"
	"github.com/pianohome/keynote-bridge/internal/midi/coremidi"
	"github.com/pianohome/keynote-bridge/internal/service/bridge"
	"github.com/pianohome/keynote-bridge/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string
	// testMode logs actions instead of calling Home Assistant.
	testMode bool

	// rootCmd represents the base command for running the bridge daemon.
	rootCmd = &cobra.Command{
		Use:   "keynote-bridge",
		Short: "Turn a MIDI keyboard into a smart-home shopping remote.",
		Long: `Background service that listens to a MIDI keyboard and drives Home Assistant.

Watches note presses on the configured keyboard, guards them behind an
arming ritual (an unlock sequence, a chord, or both), and dispatches mapped
notes as grocery-list additions with spoken confirmations. Reconnects
automatically when the keyboard or Home Assistant drops away.

Run with --test to exercise a mapping without touching Home Assistant.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			bridgeOptions := &bridge.Options{
				ConfigPath: configPath,
				LogLevel:   logLevel,
				TestMode:   testMode,
			}

			return bridge.Run(ctx, bridgeOptions)
		},
	}

	// devicesCmd lists the MIDI input ports visible to the daemon.
	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List available MIDI input ports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			device, err := coremidi.New(0)
			if err != nil {
				return fmt.Errorf("create MIDI client: %w", err)
			}

			ports, err := device.ListPorts()
			if err != nil {
				return fmt.Errorf("list MIDI ports: %w", err)
			}

			if len(ports) == 0 {
				cmd.Println("no MIDI input ports found")

				return nil
			}

			for _, port := range ports {
				cmd.Println(port)
			}

			return nil
		},
	}
)

// Execute runs the keynote-bridge CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "override the configured log level")
	rootCmd.Flags().BoolVarP(&testMode, "test", "t", false, "log actions instead of calling Home Assistant")

	rootCmd.AddCommand(devicesCmd)
}
