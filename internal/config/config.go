// Package config loads the static process configuration. It is read once at startup and
// validated before the first tick; nothing re-reads it at runtime.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"still_controller/internal/discovery"
	"still_controller/internal/logger"
	"still_controller/internal/models"
	"still_controller/internal/phase"
	"still_controller/internal/simulator"
	"still_controller/internal/telemetry"
)

const envPrefix = "STILL"

// Backends for sensor and actuator.
const (
	BackendSim    = "sim"
	BackendSerial = "serial"
)

type DB struct {
	Path string `mapstructure:"path"`
}

type Auth struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type Supervisor struct {
	Period       time.Duration `mapstructure:"period"`
	JournalQueue int           `mapstructure:"journal_queue"`
	PersistEvery time.Duration `mapstructure:"persist_every"`
}

type Serial struct {
	Backend     string        `mapstructure:"backend"`
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type Sensor struct {
	Serial      `mapstructure:",squash"`
	TrendWindow int `mapstructure:"trend_window"`
}

type Telemetry struct {
	Codec            string `mapstructure:"codec"`
	InboundQueue     int    `mapstructure:"inbound_queue"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer"`
}

// Config is the whole process configuration.
type Config struct {
	Port       string              `mapstructure:"port"`
	DB         DB                  `mapstructure:"db"`
	Log        logger.Options      `mapstructure:"log"`
	Auth       Auth                `mapstructure:"auth"`
	Supervisor Supervisor          `mapstructure:"supervisor"`
	Safety     models.SafetyLimits `mapstructure:"safety"`
	Phase      phase.Config        `mapstructure:"phase"`
	Sensor     Sensor              `mapstructure:"sensor"`
	Actuator   Serial              `mapstructure:"actuator"`
	Telemetry  Telemetry           `mapstructure:"telemetry"`
	Simulator  simulator.Config    `mapstructure:"simulator"`
	Discovery  discovery.Config    `mapstructure:"discovery"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "still.db")

	v.SetDefault("log.level", logger.InfoLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)

	v.SetDefault("auth.signing_key", "change-me")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("supervisor.period", time.Second)
	v.SetDefault("supervisor.journal_queue", 64)
	v.SetDefault("supervisor.persist_every", 5*time.Second)

	v.SetDefault("safety.max_temperature", 95.0)
	v.SetDefault("safety.max_duty", 100)
	v.SetDefault("safety.sensor_timeout", 500*time.Millisecond)
	v.SetDefault("safety.max_consecutive_invalid_readings", 5)

	v.SetDefault("phase.target_temperature", 78.0)
	v.SetDefault("phase.tolerance", 1.0)
	v.SetDefault("phase.stable_samples", 5)
	v.SetDefault("phase.hold_duration", 30*time.Second)
	v.SetDefault("phase.distill_duration", 30*time.Minute)
	v.SetDefault("phase.safe_handle_temperature", 40.0)
	v.SetDefault("phase.proportional_band", 5.0)

	v.SetDefault("sensor.backend", BackendSim)
	v.SetDefault("sensor.port", "")
	v.SetDefault("sensor.baud", 115200)
	v.SetDefault("sensor.read_timeout", 200*time.Millisecond)
	v.SetDefault("sensor.trend_window", 30)

	v.SetDefault("actuator.backend", BackendSim)
	v.SetDefault("actuator.port", "")
	v.SetDefault("actuator.baud", 115200)
	v.SetDefault("actuator.read_timeout", 200*time.Millisecond)

	v.SetDefault("telemetry.codec", "json")
	v.SetDefault("telemetry.inbound_queue", 8)
	v.SetDefault("telemetry.subscriber_buffer", 16)

	sim := simulator.DefaultConfig()
	v.SetDefault("simulator.ambient_c", sim.AmbientC)
	v.SetDefault("simulator.initial_c", sim.InitialC)
	v.SetDefault("simulator.heat_rate", sim.HeatRate)
	v.SetDefault("simulator.loss_rate", sim.LossRate)
	v.SetDefault("simulator.humidity_pct", sim.HumidityPct)
	v.SetDefault("simulator.noise_c", sim.NoiseC)
	v.SetDefault("simulator.time_scale", sim.TimeScale)
	v.SetDefault("simulator.measure_delay", sim.MeasureDelay)

	mdns := discovery.DefaultConfig()
	v.SetDefault("discovery.enabled", mdns.Enabled)
	v.SetDefault("discovery.hostname", mdns.Hostname)
	v.SetDefault("discovery.instance", mdns.Instance)
	v.SetDefault("discovery.service", mdns.Service)
	v.SetDefault("discovery.domain", mdns.Domain)
	v.SetDefault("discovery.path", mdns.Path)
}

// Load reads path (a YAML file) over the defaults, then STILL_* environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks every section the controller depends on.
func (c Config) Validate() error {
	if err := c.Safety.Validate(); err != nil {
		return err
	}
	if err := c.Phase.Validate(); err != nil {
		return err
	}
	if c.Phase.TargetTemperature+c.Phase.Tolerance >= c.Safety.MaxTemperature {
		return errors.New("config: phase band reaches safety.max_temperature")
	}
	if c.Supervisor.Period <= 0 {
		return errors.New("config: supervisor.period must be > 0")
	}
	if c.Safety.SensorTimeout >= c.Supervisor.Period {
		return errors.New("config: safety.sensor_timeout must be shorter than supervisor.period")
	}
	for name, s := range map[string]Serial{"sensor": c.Sensor.Serial, "actuator": c.Actuator} {
		switch s.Backend {
		case BackendSim:
		case BackendSerial:
			if s.Port == "" {
				return fmt.Errorf("config: %s.port required for serial backend", name)
			}
			// one silent-board read must fit inside a tick
			if s.ReadTimeout <= 0 || s.ReadTimeout >= c.Supervisor.Period {
				return fmt.Errorf("config: %s.read_timeout must be > 0 and shorter than supervisor.period", name)
			}
		default:
			return fmt.Errorf("config: unknown %s.backend %q", name, s.Backend)
		}
	}
	if _, err := telemetry.CodecByName(c.Telemetry.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Auth.SigningKey == "" {
		return errors.New("config: auth.signing_key must be set")
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
