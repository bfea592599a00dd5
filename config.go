package carburetor

import (
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const DefaultConfigFile = "carburetor.toml"

type PWMConfig struct {
	// Chip is the N in /sys/class/pwm/pwmchipN. Channels 0 and 1 are used.
	Chip     int  `toml:"chip" yaml:"chip" env:"CARBURETOR_PWM_CHIP"`
	Simulate bool `toml:"simulate" yaml:"simulate" env:"CARBURETOR_SIMULATE"`
}

type BatteryConfig struct {
	// Interface is the CAN interface of the battery management system.
	// Empty disables battery reporting.
	Interface string `toml:"interface" yaml:"interface" env:"CARBURETOR_BATTERY_INTERFACE"`
}

type LogConfig struct {
	Level      string `toml:"level" yaml:"level" env:"CARBURETOR_LOG_LEVEL"`
	File       string `toml:"file" yaml:"file" env:"CARBURETOR_LOG_FILE"`
	StreamPort int    `toml:"stream_port" yaml:"stream_port" env:"CARBURETOR_LOG_STREAM_PORT"`
}

type Config struct {
	Port    int           `toml:"port" yaml:"port" env:"CARBURETOR_PORT"`
	PWM     PWMConfig     `toml:"pwm" yaml:"pwm"`
	Battery BatteryConfig `toml:"battery" yaml:"battery"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Port: 8010,
		Log: LogConfig{
			Level:      "info",
			StreamPort: 7644,
		},
	}
}

// LoadConfig reads fileName, applies environment overrides and validates the
// result. An empty fileName means DefaultConfigFile next to the binary, which
// may be absent.
func LoadConfig(fileName string) (*Config, error) {
	optional := false
	if fileName == "" {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to determine binary location")
		}
		fileName = filepath.Join(dir, DefaultConfigFile)
		optional = true
	}

	file, err := os.Open(fileName)
	if err != nil {
		if optional && os.IsNotExist(err) {
			log.WithField("file", fileName).Info("no config file, using defaults")
			return finishConfig(DefaultConfig())
		}
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfigFromReader(file, filepath.Ext(fileName))
}

// LoadConfigFromReader decodes TOML, or YAML when ext is .yaml or .yml.
func LoadConfigFromReader(configReader io.Reader, ext string) (*Config, error) {
	configData, err := io.ReadAll(configReader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read config reader")
	}
	config := DefaultConfig()
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(configData, config); err != nil {
			return nil, errors.Wrap(err, "unable to load yaml configuration")
		}
	default:
		if _, err := toml.Decode(string(configData), config); err != nil {
			return nil, errors.Wrap(err, "unable to load toml configuration")
		}
	}
	return finishConfig(config)
}

func finishConfig(config *Config) (*Config, error) {
	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(err, "unable to apply environment overrides")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.Log.StreamPort < 0 || c.Log.StreamPort > 65535 {
		return errors.Errorf("log stream port %d out of range", c.Log.StreamPort)
	}
	if c.Log.StreamPort == c.Port {
		return errors.Errorf("log stream port and port are both %d", c.Port)
	}
	if c.PWM.Chip < 0 {
		return errors.Errorf("pwm chip %d out of range", c.PWM.Chip)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	return nil
}
