package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"harpclock/config"
	"harpclock/host/logger"
	"harpclock/host/serial"
	"harpclock/host/sim"
)

// flags that override the config file when set
type options struct {
	configFile   string
	outputPort   string
	outputBaud   int
	syncPort     string
	syncBaud     int
	leadUS       uint64
	estimateRate bool
	registerPort string
	logLevel     string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "harpclock-host",
		Short: "Broadcast harp seconds on a serial line",
		Long: `Reads harp synchronization frames from one serial port and writes the
current harp second, as 4 little-endian bytes, to another port on every harp
second boundary. An optional third port answers Harp register requests.`,
		Example: `  harpclock-host --sync /dev/ttyUSB0 --output /dev/ttyUSB1
  harpclock-host -c harpclock.yaml --log-level debug`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	f.StringVar(&opts.outputPort, "output", "", "serial port the seconds are written to")
	f.IntVar(&opts.outputBaud, "output-baud", 0, "output baud rate")
	f.StringVar(&opts.syncPort, "sync", "", "serial port carrying harp synchronization frames")
	f.IntVar(&opts.syncBaud, "sync-baud", 0, "synchronization baud rate")
	f.Uint64Var(&opts.leadUS, "lead-us", 0, "microseconds between the end of a sync frame and its second boundary")
	f.BoolVar(&opts.estimateRate, "estimate-rate", false, "estimate clock drift between sync frames")
	f.StringVar(&opts.registerPort, "registers", "", "serial port for Harp register requests")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(newPrintConfigCommand(&opts))
	return cmd
}

func newPrintConfigCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "print-config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

// loadConfig reads the config file, if any, and applies explicitly set flags
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configFile != "" {
		var err error
		if cfg, err = config.LoadFile(opts.configFile); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("output") {
		cfg.Output.Port = opts.outputPort
	}
	if f.Changed("output-baud") {
		cfg.Output.Baud = opts.outputBaud
	}
	if f.Changed("sync") {
		cfg.Sync.Port = opts.syncPort
	}
	if f.Changed("sync-baud") {
		cfg.Sync.Baud = opts.syncBaud
	}
	if f.Changed("lead-us") {
		cfg.Sync.LeadUS = opts.leadUS
	}
	if f.Changed("estimate-rate") {
		cfg.Sync.EstimateRate = opts.estimateRate
	}
	if f.Changed("registers") {
		cfg.Registers.Port = opts.registerPort
	}
	if f.Changed("log-level") {
		cfg.Debug.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log, _, err := logger.New(cfg.Debug.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	logger.AttachCore(log)

	if cfg.Output.Port == "" {
		return errors.New("no output port configured")
	}
	if cfg.Sync.Port == "" {
		log.Warn("no sync port configured, broadcasting will never start")
	}

	var ports sim.Ports
	output, err := serial.Open(serial.DefaultConfig(cfg.Output.Port, cfg.Output.Baud))
	if err != nil {
		return err
	}
	defer output.Close()
	ports.Output = output

	if cfg.Sync.Port != "" {
		syncPort, err := serial.Open(serial.DefaultConfig(cfg.Sync.Port, cfg.Sync.Baud))
		if err != nil {
			return err
		}
		defer syncPort.Close()
		ports.Sync = syncPort
	}

	if cfg.Registers.Port != "" {
		regPort, err := serial.Open(serial.DefaultConfig(cfg.Registers.Port, cfg.Registers.Baud))
		if err != nil {
			return err
		}
		defer regPort.Close()
		ports.Registers = regPort
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("starting",
		"output", cfg.Output.Port,
		"sync", cfg.Sync.Port,
		"registers", cfg.Registers.Port,
		"device", fmt.Sprintf("%s (%d)", cfg.Device.Name, cfg.Device.WhoAmI))

	err = sim.New(cfg, log, ports).Run(ctx)
	logger.DumpTiming(log.With(zap.String("phase", "shutdown")))
	return err
}
