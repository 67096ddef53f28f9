package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. JSONRELAY_SERVER_PORT.
const EnvPrefix = "JSONRELAY"

// Settings is the service configuration. Endpoint rules live in a separate
// file (Endpoints.File) loaded by the engine.
type Settings struct {
	Server    ServerSettings    `mapstructure:"server"`
	Log       LogSettings       `mapstructure:"log"`
	Endpoints EndpointsSettings `mapstructure:"endpoints"`
	Metrics   MetricsSettings   `mapstructure:"metrics"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout of zero is derived from the largest endpoint timeout.
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Addr returns host:port.
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogSettings configures zap.
type LogSettings struct {
	Level  string       `mapstructure:"level"`
	Format string       `mapstructure:"format"`
	Redact []RedactRule `mapstructure:"redact"`
}

// RedactRule is an extra pattern masked in logged payloads, on top of the
// built-in credential rules.
type RedactRule struct {
	Name        string `mapstructure:"name"`
	Pattern     string `mapstructure:"pattern"`
	Replacement string `mapstructure:"replacement"`
}

// EndpointsSettings locates the endpoint configuration file.
type EndpointsSettings struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// MetricsSettings toggles the /metrics endpoint.
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults registers every setting with its default so environment
// overrides apply to all of them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", int64(10<<20))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("endpoints.file", "config.json")
	v.SetDefault("endpoints.watch", false)

	v.SetDefault("metrics.enabled", true)
}

// Init 初始化配置，加载 .env 和 jsonrelay.yaml
func Init(cfgFile string) {
	// Load .env file (ignore if not exists)
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("jsonrelay")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
	}

	SetDefaults(viper.GetViper())

	// Environment variables
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// CONFIG_PATH is honoured without prefix for existing deployments
	_ = viper.BindEnv("endpoints.file", EnvPrefix+"_ENDPOINTS_FILE", "CONFIG_PATH")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}
}

// Load decodes the global viper state into Settings.
func Load() (*Settings, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes v into Settings.
func LoadFrom(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server.port %d", s.Server.Port)
	}
	if s.Endpoints.File == "" {
		return nil, fmt.Errorf("endpoints.file is empty")
	}
	for _, rule := range s.Log.Redact {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return nil, fmt.Errorf("invalid log.redact pattern for %q: %w", rule.Name, err)
		}
	}
	return &s, nil
}
