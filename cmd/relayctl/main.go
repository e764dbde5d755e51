package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mkrell/relayctl/internal/archive"
	"codeberg.org/mkrell/relayctl/internal/config"
	"codeberg.org/mkrell/relayctl/internal/errors"
	"codeberg.org/mkrell/relayctl/internal/hal"
	"codeberg.org/mkrell/relayctl/internal/logger"
	"codeberg.org/mkrell/relayctl/internal/pid"
	"codeberg.org/mkrell/relayctl/internal/profile"
	"codeberg.org/mkrell/relayctl/internal/sequencer"
)

var (
	cfg *config.Config
	rig *hal.SimRig
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		logger.SetLogLevel(logLevel(config.LogLevel(cfg.LogLevel)))
	}
	logger.Debug().Msg("Config loaded")

	if cfg.Profile != "" {
		if err := applyProfile(); err != nil {
			logger.Fatal().Err(err).Str("profile", cfg.Profile).Msg("Failed to apply sweep profile")
		}
	}

	rig = hal.NewSimRig(cfg.Sim.ContactLevel, cfg.Sim.ContactOhms)
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	recorder, err := archive.NewService(archive.Config{
		DBPath:  cfg.ArchiveDB,
		Enabled: cfg.Archive,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open run archive")
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close run archive")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	seq := sequencer.New(cfg, rig.Rig(), recorder)

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Streaming samples...")
		err = seq.RunMonitor(ctx)
	} else {
		err = seq.Cycle(ctx)
	}
	if err != nil && err != context.Canceled {
		logger.Error().
			Str("error_code", string(errors.CodeOf(err))).
			Err(err).
			Msg("Test sequencing ended with error")
	}

	cleanup()
}

func applyProfile() error {
	f, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return err
	}

	p, err := f.Find(cfg.Profile)
	if err != nil {
		return err
	}

	if err := p.Apply(cfg); err != nil {
		return err
	}
	logger.Info().Str("profile", cfg.Profile).Msg("Sweep profile applied")

	return nil
}

func logLevel(l config.LogLevel) logger.LogLevel {
	switch l {
	case config.LogLevelDebug:
		return logger.DebugLevel
	case config.LogLevelWarning:
		return logger.WarnLevel
	case config.LogLevelError:
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// cleanup forces the actuation output to zero regardless of how sequencing
// ended. The relay under test must never stay energized past exit.
func cleanup() {
	rig.SetLevel(0)
	logger.Info().Msg("Exiting...")
}
