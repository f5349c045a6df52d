package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// NEEDLEDROP_DETECTOR_CONFIRM_START=3s.
const EnvPrefix = "NEEDLEDROP"

// Config holds all runtime configuration.
type Config struct {
	Audio struct {
		Backend    string `mapstructure:"backend"` // auto, device, file, mock
		Device     string `mapstructure:"device"`
		File       string `mapstructure:"file"`
		SampleRate int    `mapstructure:"sample_rate"`
		FrameSize  int    `mapstructure:"frame_size"`
		Realtime   bool   `mapstructure:"realtime"` // pace file replay at capture cadence
	} `mapstructure:"audio"`

	Detector struct {
		StartAmplitude float64       `mapstructure:"start_amplitude"`
		StopAmplitude  float64       `mapstructure:"stop_amplitude"`
		StartWidth     float64       `mapstructure:"start_width"` // Hz
		ConfirmStart   time.Duration `mapstructure:"confirm_start"`
		ConfirmStop    time.Duration `mapstructure:"confirm_stop"`
	} `mapstructure:"detector"`

	Session struct {
		DetectionDelay time.Duration `mapstructure:"detection_delay"`
		DebugFile      string        `mapstructure:"debug_file"`
		FlushOnExit    bool          `mapstructure:"flush_on_exit"`
	} `mapstructure:"session"`

	Catalog struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"catalog"`

	Status struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"status"`

	Server struct {
		Port int `mapstructure:"port"` // 0 disables the HTTP server
	} `mapstructure:"server"`

	History struct {
		Path string `mapstructure:"path"` // "" disables history
	} `mapstructure:"history"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.backend", "auto")
	v.SetDefault("audio.device", "")
	v.SetDefault("audio.file", "")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.frame_size", 4096)
	v.SetDefault("audio.realtime", true)

	v.SetDefault("detector.start_amplitude", 0.001)
	v.SetDefault("detector.stop_amplitude", 0.0005)
	v.SetDefault("detector.start_width", 1000.0)
	v.SetDefault("detector.confirm_start", "2s")
	v.SetDefault("detector.confirm_stop", "5s")

	v.SetDefault("session.detection_delay", "10s")
	v.SetDefault("session.debug_file", ".data/debug.json")
	v.SetDefault("session.flush_on_exit", false)

	v.SetDefault("catalog.dir", ".data/albums")
	v.SetDefault("status.interval", "200ms")
	v.SetDefault("server.port", 8080)
	v.SetDefault("history.path", ".data/history.db")
	v.SetDefault("log.level", "info")
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"file":      "audio.file",
	"backend":   "audio.backend",
	"port":      "server.port",
	"log-level": "log.level",
}

// Flags registers the command-line flags understood by Load.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config.yaml")
	fs.Int("album", 0, "album ID to load at start-up")
	fs.String("file", "", "replay a recording instead of capturing from a device")
	fs.String("backend", "", "capture backend: auto, device, file or mock")
	fs.Bool("fast", false, "replay files as fast as possible")
	fs.Int("port", 8080, "HTTP port for the status API and listen-in (0 disables)")
	fs.String("log-level", "info", "debug, info, warn or error")
}

// Load builds the configuration from defaults, an optional config.yaml,
// NEEDLEDROP_* environment variables and, when fs is non-nil, the flags
// registered by Flags. An explicit path must exist; otherwise a missing
// config.yaml in . or ./.data is not an error.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./.data")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if fast, err := fs.GetBool("fast"); err == nil && fast {
			v.Set("audio.realtime", false)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the monitor cannot run with.
func (c Config) Validate() error {
	switch c.Audio.Backend {
	case "auto", "device", "file", "mock":
	default:
		return fmt.Errorf("audio.backend %q: want auto, device, file or mock", c.Audio.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.FrameSize <= 0 {
		return fmt.Errorf("audio.frame_size must be positive, got %d", c.Audio.FrameSize)
	}
	if c.Detector.StopAmplitude <= 0 || c.Detector.StopAmplitude >= c.Detector.StartAmplitude {
		return fmt.Errorf("detector.stop_amplitude %g must be positive and below start_amplitude %g",
			c.Detector.StopAmplitude, c.Detector.StartAmplitude)
	}
	if c.Detector.StartWidth < 0 {
		return fmt.Errorf("detector.start_width must not be negative, got %g", c.Detector.StartWidth)
	}
	if c.Detector.ConfirmStart < 0 || c.Detector.ConfirmStop < 0 {
		return errors.New("detector confirm durations must not be negative")
	}
	if c.Session.DetectionDelay < 0 {
		return fmt.Errorf("session.detection_delay must not be negative, got %v", c.Session.DetectionDelay)
	}
	if c.Status.Interval <= 0 {
		return fmt.Errorf("status.interval must be positive, got %v", c.Status.Interval)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
