package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Dicklesworthstone/bpulse/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. BPULSE_INTERVAL.
const EnvPrefix = "BPULSE_"

// Config carries runtime options for bpulse.
type Config struct {
	Interval     time.Duration // how often the sampler is probed
	FrameRate    int           // render ticks per second
	Families     model.Mask
	Disk         string
	CPU          string
	Eth          string
	IO           string
	EnableBatt   bool
	JSON         bool
	SettingsPath string
	LogFile      string
	LogLevel     string
	MetricsAddr  string

	// Settings holds every key of the settings file, including ones no flag
	// claims.
	Settings Settings
}

func Default() Config {
	return Config{
		Interval:   time.Second,
		FrameRate:  25,
		Families:   model.AllFamilies,
		Disk:       "/",
		EnableBatt: true,
		LogLevel:   "info",
		Settings:   Settings{},
	}
}

// FramePeriod is the reactor tick length.
func (c Config) FramePeriod() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(c.FrameRate)
}

// ProbeEvery is the number of render ticks between sampler probes.
func (c Config) ProbeEvery() int {
	n := int(c.Interval / c.FramePeriod())
	if n < 1 {
		return 1
	}
	return n
}

// Mask is the family mask after feature switches are applied.
func (c Config) Mask() model.Mask {
	m := c.Families
	if !c.EnableBatt {
		m &^= model.BatteryFamily
	}
	return m
}

// Level parses LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Validate reports option combinations the reactor cannot honour.
func (c Config) Validate() error {
	var errs []error
	if c.FrameRate < 1 || c.FrameRate > 120 {
		errs = append(errs, fmt.Errorf("fps %d out of range 1-120", c.FrameRate))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval %v must be positive", c.Interval))
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// FromFlags resolves options with precedence flags > environment >
// settings file > defaults. getenv is usually os.Getenv.
func FromFlags(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet("bpulse", flag.ContinueOnError)
	fs.Var((*secondsDuration)(&cfg.Interval), "interval", "sampling interval (e.g. 2s, 500ms, or bare seconds)")
	fs.IntVar(&cfg.FrameRate, "fps", cfg.FrameRate, "render frames per second")
	fs.Var((*maskValue)(&cfg.Families), "families", "metric families: cpu,mem,disk,net,io,users,battery,host or all")
	fs.StringVar(&cfg.Disk, "disk", cfg.Disk, "mount path for free space")
	fs.StringVar(&cfg.CPU, "cpu", cfg.CPU, "cpu aggregate: empty for all cores, or cpuN")
	fs.StringVar(&cfg.Eth, "eth", cfg.Eth, "network interface, empty for all")
	fs.StringVar(&cfg.IO, "io", cfg.IO, "block device, empty for all")
	fs.BoolVar(&cfg.EnableBatt, "battery", cfg.EnableBatt, "enable battery sampling")
	fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "output one-shot JSON and exit")
	fs.StringVar(&cfg.SettingsPath, "settings", cfg.SettingsPath, "YAML settings file")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "write logs to this file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	// The settings path itself comes from flag, env or default only.
	if !explicit["settings"] {
		if v := getenv(envName("settings")); v != "" {
			cfg.SettingsPath = v
			explicit["settings"] = true
		}
	}
	var (
		settings Settings
		err      error
	)
	if explicit["settings"] {
		settings, err = LoadSettings(cfg.SettingsPath)
	} else {
		cfg.SettingsPath = DefaultSettingsPath(getenv)
		settings, err = loadOptional(cfg.SettingsPath)
	}
	if err != nil {
		return cfg, err
	}
	cfg.Settings = settings

	var applyErr error
	fs.VisitAll(func(f *flag.Flag) {
		if explicit[f.Name] || f.Name == "settings" || applyErr != nil {
			return
		}
		if v := getenv(envName(f.Name)); v != "" {
			if err := fs.Set(f.Name, v); err != nil {
				applyErr = fmt.Errorf("config: %s=%q: %w", envName(f.Name), v, err)
			}
			return
		}
		if v, ok := settings.Get(f.Name); ok {
			if err := fs.Set(f.Name, v); err != nil {
				applyErr = fmt.Errorf("config: settings key %q: %w", f.Name, err)
			}
		}
	})
	if applyErr != nil {
		return cfg, applyErr
	}

	// "timeout" in milliseconds is the older spelling of interval.
	if !explicit["interval"] && getenv(envName("interval")) == "" {
		if _, ok := settings.Get("interval"); !ok {
			if v, ok := settings.Get("timeout"); ok {
				ms, err := strconv.Atoi(v)
				if err != nil {
					return cfg, fmt.Errorf("config: settings key \"timeout\": %w", err)
				}
				cfg.Interval = time.Duration(ms) * time.Millisecond
			}
		}
	}
	return cfg, cfg.Validate()
}

func envName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// secondsDuration parses Go durations and bare numbers as seconds.
type secondsDuration time.Duration

func (d *secondsDuration) String() string { return time.Duration(*d).String() }

func (d *secondsDuration) Set(v string) error {
	if parsed, err := time.ParseDuration(v); err == nil {
		*d = secondsDuration(parsed)
		return nil
	}
	parsed, err := time.ParseDuration(v + "s")
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	*d = secondsDuration(parsed)
	return nil
}

type maskValue model.Mask

func (m *maskValue) String() string { return model.Mask(*m).String() }

func (m *maskValue) Set(v string) error {
	parsed, err := model.ParseMask(v)
	if err != nil {
		return err
	}
	*m = maskValue(parsed)
	return nil
}
