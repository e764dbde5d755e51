package config

import (
	"os"
	"time"

	"codeberg.org/mkrell/relayctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultConfigName = "relayctl"
	configEnvVar      = "RELAYCTL_CONFIG"
)

// Config holds every tunable of the test engine. All scheduling ticks are
// plain durations so a host-side test suite can shrink them without touching
// any logic.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`

	// Monitor holds actuation at MonitorLevel and streams samples without
	// running the sweep state machine.
	Monitor      bool `mapstructure:"monitor"`
	MonitorLevel int  `mapstructure:"monitor_level"`

	DataDir     string `mapstructure:"data_dir"`
	Profile     string `mapstructure:"profile"`
	ProfilePath string `mapstructure:"profile_path"`

	Archive   bool   `mapstructure:"archive"`
	ArchiveDB string `mapstructure:"archive_db"`

	Sweep  Sweep  `mapstructure:"sweep"`
	Timing Timing `mapstructure:"timing"`
	Limits Limits `mapstructure:"limits"`
	Bridge Bridge `mapstructure:"bridge"`
	Sim    Sim    `mapstructure:"sim"`
}

// Sweep bounds the actuation range stepped during a test run.
type Sweep struct {
	Start         int `mapstructure:"start"`
	End           int `mapstructure:"end"`
	Step          int `mapstructure:"step"`
	TestsPerCycle int `mapstructure:"tests_per_cycle"`
}

// Timing carries every fixed cadence of the engine.
type Timing struct {
	AcquireInterval time.Duration `mapstructure:"acquire_interval"`
	DrainInterval   time.Duration `mapstructure:"drain_interval"`
	DisplayInterval time.Duration `mapstructure:"display_interval"`
	StabilizeDelay  time.Duration `mapstructure:"stabilize_delay"`
	Dwell           time.Duration `mapstructure:"dwell"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	GlobalTimeout   time.Duration `mapstructure:"global_timeout"`
	JoinTimeout     time.Duration `mapstructure:"join_timeout"`
}

// Limits carries the safety and validity ceilings.
type Limits struct {
	CurrentCeilingMA     float64 `mapstructure:"current_ceiling_ma"`
	ResistanceCeilingOhm float64 `mapstructure:"resistance_ceiling_ohm"`
	ContactMinOhm        float64 `mapstructure:"contact_min_ohm"`
	StabilizeSamples     int     `mapstructure:"stabilize_samples"`
	StabilizeMaxCV       float64 `mapstructure:"stabilize_max_cv"`
}

// Bridge describes the sensing-bridge electrical constants.
type Bridge struct {
	R1Ohm        float64 `mapstructure:"r1_ohm"`
	ExcitationMV float64 `mapstructure:"excitation_mv"`
	MVPerLSB     float64 `mapstructure:"mv_per_lsb"`
}

// Sim models the simulated rig the binary drives on a host without
// hardware: the actuation level at which the relay closes and the contact
// resistance it presents once closed.
type Sim struct {
	ContactLevel int     `mapstructure:"contact_level"`
	ContactOhms  float64 `mapstructure:"contact_ohms"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("monitor_level", 128)
	v.SetDefault("data_dir", "/var/lib/relayctl")
	v.SetDefault("profile_path", "/etc/relayctl-profiles.yaml")
	v.SetDefault("archive_db", "/var/lib/relayctl/runs.db")

	v.SetDefault("sweep.start", 0)
	v.SetDefault("sweep.end", 255)
	v.SetDefault("sweep.step", 1)
	v.SetDefault("sweep.tests_per_cycle", 4)

	v.SetDefault("timing.acquire_interval", 5*time.Millisecond)
	v.SetDefault("timing.drain_interval", 10*time.Millisecond)
	v.SetDefault("timing.display_interval", 200*time.Millisecond)
	v.SetDefault("timing.stabilize_delay", 25*time.Millisecond)
	v.SetDefault("timing.dwell", 100*time.Millisecond)
	v.SetDefault("timing.poll_interval", 25*time.Millisecond)
	v.SetDefault("timing.lock_timeout", 10*time.Millisecond)
	v.SetDefault("timing.global_timeout", 60*time.Second)
	v.SetDefault("timing.join_timeout", 2*time.Second)

	v.SetDefault("limits.current_ceiling_ma", 70.0)
	v.SetDefault("limits.resistance_ceiling_ohm", 1e6)
	v.SetDefault("limits.contact_min_ohm", 10.0)
	v.SetDefault("limits.stabilize_samples", 5)
	v.SetDefault("limits.stabilize_max_cv", 40.0)

	v.SetDefault("bridge.r1_ohm", 1000.0)
	v.SetDefault("bridge.excitation_mv", 3300.0)
	v.SetDefault("bridge.mv_per_lsb", 0.1)

	v.SetDefault("sim.contact_level", 120)
	v.SetDefault("sim.contact_ohms", 150.0)
}

// Load reads configuration from flags, environment and the TOML config file.
// Flag values override file values; the config file path may be forced via
// RELAYCTL_CONFIG.
func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("relayctl", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.Bool("monitor", false, "Hold actuation and stream samples without sweeping")
	flags.Bool("archive", false, "Record test-run outcomes to the archive database")
	flags.String("log-level", "", "Log level (debug, info, warning, error)")
	flags.String("profile", "", "Named sweep profile to apply")
	flags.String("data-dir", "", "Directory for per-run sample logs")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"debug":     "debug",
		"verbose":   "verbose",
		"monitor":   "monitor",
		"archive":   "archive",
		"log-level": "log_level",
		"profile":   "profile",
		"data-dir":  "data_dir",
	}
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := bindings[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	if path := os.Getenv(configEnvVar); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").
				WithData(err.Error())
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would stall or damage the rig.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	intervals := map[string]time.Duration{
		"timing.acquire_interval": c.Timing.AcquireInterval,
		"timing.drain_interval":   c.Timing.DrainInterval,
		"timing.display_interval": c.Timing.DisplayInterval,
		"timing.stabilize_delay":  c.Timing.StabilizeDelay,
		"timing.dwell":            c.Timing.Dwell,
		"timing.poll_interval":    c.Timing.PollInterval,
		"timing.lock_timeout":     c.Timing.LockTimeout,
		"timing.global_timeout":   c.Timing.GlobalTimeout,
		"timing.join_timeout":     c.Timing.JoinTimeout,
	}
	for key, d := range intervals {
		if d <= 0 {
			return errFactory.WithData(errors.ErrInvalidInterval, key)
		}
	}

	if c.Sweep.Step <= 0 || c.Sweep.End < c.Sweep.Start {
		return errFactory.WithData(errors.ErrInvalidConfig, "sweep range")
	}
	if c.Sweep.Start < 0 || c.Sweep.End > 255 {
		return errFactory.WithData(errors.ErrInvalidConfig, "sweep bounds outside 0..255")
	}
	if c.Limits.CurrentCeilingMA <= 0 || c.Limits.ResistanceCeilingOhm <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "non-positive limit")
	}
	if c.Limits.StabilizeSamples < 2 {
		return errFactory.WithData(errors.ErrInvalidConfig, "stabilize_samples below 2")
	}
	if c.Bridge.R1Ohm <= 0 || c.Bridge.ExcitationMV <= 0 || c.Bridge.MVPerLSB <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "non-positive bridge constant")
	}
	if c.Sim.ContactLevel < 0 || c.Sim.ContactLevel > 255 || c.Sim.ContactOhms <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "sim contact model")
	}

	return nil
}
