package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/announce"
	"github.com/fieldlink/stationd/internal/bleuart"
	"github.com/fieldlink/stationd/internal/command"
	"github.com/fieldlink/stationd/internal/config"
	"github.com/fieldlink/stationd/internal/console"
	"github.com/fieldlink/stationd/internal/logging"
	"github.com/fieldlink/stationd/internal/relay"
	"github.com/fieldlink/stationd/internal/wifi"
)

var (
	configPath string
	logLevel   string
)

func init() {
	runCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); empty disables logging")
	configInitCmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "Path to write the configuration file")
	configCmd.AddCommand(configInitCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the station agent",
	Long: `Start the agent: bring up the relay outputs and the wireless
manager, register the BLE console if enabled, and serve the interactive
console until EOF or a termination signal.

Startup is fatal-on-failure: a collaborator that cannot be brought up
aborts the process. Failures after startup surface only as command
responses.`,
	Example: `  # Run with the default configuration path
  stationd run

  # Run with a local configuration file
  stationd run --config ./config.yaml`,
	RunE: runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log := logging.GetLogger()
	defer logging.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Relay outputs first: they must be in a known state before anything
	// can command them.
	backend, err := relay.NewPeriphBackend()
	if err != nil {
		return fmt.Errorf("GPIO bring-up: %w", err)
	}
	channels := make([]relay.Channel, 0, len(cfg.Relays))
	for _, rc := range cfg.Relays {
		channels = append(channels, relay.Channel{ID: rc.ID, Pin: rc.Pin})
	}
	relays, err := relay.NewManager(backend, channels)
	if err != nil {
		return fmt.Errorf("relay bring-up: %w", err)
	}

	driver := wifi.NewWPADriver(cfg.Wireless.Interface)
	manager := wifi.NewManager(driver)
	if err := manager.Initialize(); err != nil {
		return err
	}

	var ble *bleuart.Server
	if cfg.Transport.Enabled {
		ble = bleuart.NewServer(cfg.DeviceName, cfg.Transport.FragmentSize)
	}

	var announcer *announce.Announcer
	if cfg.Announce.Enabled {
		announcer = announce.New(cfg.DeviceName, cfg.Announce.Port)
	}

	// Interface values must stay nil when the collaborator is disabled;
	// a typed nil would defeat the router's availability checks.
	var transport command.Transport
	if ble != nil {
		transport = ble
	}
	var presence command.Announcer
	if announcer != nil {
		presence = announcer
	}
	router := command.NewRouter(manager, relays, transport, presence)

	if ble != nil {
		ble.SetHandler(func(line string) string {
			return router.Dispatch(command.ParseLine(line), command.SecondaryChannel)
		})
		if err := ble.Start(); err != nil {
			return fmt.Errorf("BLE bring-up: %w", err)
		}
		if err := ble.StartAdvertising(); err != nil {
			log.Warn("initial BLE advertising failed", zap.Error(err))
		}
	}

	shutdown := func() {
		if ble != nil {
			if err := ble.StopAdvertising(); err != nil {
				log.Warn("stop advertising", zap.Error(err))
			}
		}
		announcer.Withdraw()
		relays.Shutdown()
		logging.Sync()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("shutting down", zap.String("signal", sig.String()))
		shutdown()
		os.Exit(0)
	}()

	err = console.New(router).Run()
	shutdown()
	return err
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the agent configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Example: `  # Write the default configuration to the default path
  stationd config init

  # Write to a local file
  stationd config init --config ./config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("refusing to overwrite existing file: %s", configPath)
		}
		cfg := config.Default()
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("write configuration: %w", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", configPath)
		return nil
	},
}
