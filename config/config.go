package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"casehub/retry"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DatabaseConfig locates the shared case database
type DatabaseConfig struct {
	Type     string `mapstructure:"type" validate:"oneof=postgres sqlite clickhouse mongodb"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// Path is the database file when Type is sqlite
	Path string `mapstructure:"path"`

	// URI is the connection string when Type is mongodb
	URI string `mapstructure:"uri"`
}

// IndexServerConfig locates the keyword search server
type IndexServerConfig struct {
	Scheme string `mapstructure:"scheme" validate:"oneof=http https"`
	Host   string `mapstructure:"host" validate:"required"`
	Port   int    `mapstructure:"port" validate:"min=1,max=65535"`
	Path   string `mapstructure:"path"`
}

// MessagingConfig locates the message broker
type MessagingConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
	Selector string `mapstructure:"selector" validate:"required"`
}

// CoordinationConfig locates the coordination service cluster
type CoordinationConfig struct {
	Endpoints   []string      `mapstructure:"endpoints" validate:"min=1,dive,required"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"min=0"`
}

// MonitorConfig controls health checking
type MonitorConfig struct {
	// PollInterval between background checks; zero disables polling
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"min=0"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout" validate:"gt=0"`
	ProbeAttempts   int           `mapstructure:"probe_attempts" validate:"min=1,max=10"`
	ProbeRetryDelay time.Duration `mapstructure:"probe_retry_delay" validate:"min=0"`
}

// MessengerConfig controls event sending
type MessengerConfig struct {
	SendAttempts   int           `mapstructure:"send_attempts" validate:"min=1,max=10"`
	SendRetryDelay time.Duration `mapstructure:"send_retry_delay" validate:"min=0"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" validate:"min=0"`
	InboxSize      int           `mapstructure:"inbox_size" validate:"min=1"`
	DedupCacheSize int           `mapstructure:"dedup_cache_size" validate:"min=1"`
}

// Config holds all configuration for a casehub instance
type Config struct {
	Instance struct {
		Name string `mapstructure:"name" validate:"required"`
	} `mapstructure:"instance"`

	Database     DatabaseConfig     `mapstructure:"database"`
	IndexServer  IndexServerConfig  `mapstructure:"index_server"`
	Messaging    MessagingConfig    `mapstructure:"messaging"`
	Coordination CoordinationConfig `mapstructure:"coordination"`
	Monitor      MonitorConfig      `mapstructure:"monitor"`
	Messenger    MessengerConfig    `mapstructure:"messenger"`

	Diagnostics struct {
		Enabled   bool    `mapstructure:"enabled"`
		Addr      string  `mapstructure:"addr" validate:"required_if=Enabled true"`
		RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`
		Burst     int     `mapstructure:"burst" validate:"min=0"`
	} `mapstructure:"diagnostics"`

	Logging struct {
		Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"logging"`

	Secrets struct {
		Provider string `mapstructure:"provider" validate:"oneof=env vault aws"`
		Vault    struct {
			Address string `mapstructure:"address"`
			Token   string `mapstructure:"token"`
			Path    string `mapstructure:"path"`
		} `mapstructure:"vault"`
		AWS struct {
			Region    string `mapstructure:"region"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
			SecretID  string `mapstructure:"secret_id"`
			Endpoint  string `mapstructure:"endpoint"`
		} `mapstructure:"aws"`
	} `mapstructure:"secrets"`
}

func setDefaults(v *viper.Viper) {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "casehub"
	}
	v.SetDefault("instance.name", hostname)

	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.path", "")
	v.SetDefault("database.uri", "")

	v.SetDefault("index_server.scheme", "http")
	v.SetDefault("index_server.host", "localhost")
	v.SetDefault("index_server.port", 8983)
	v.SetDefault("index_server.path", "/solr")

	v.SetDefault("messaging.host", "localhost")
	v.SetDefault("messaging.port", 6379)
	v.SetDefault("messaging.username", "")
	v.SetDefault("messaging.password", "")
	v.SetDefault("messaging.db", 0)
	v.SetDefault("messaging.selector", "casehub-events")

	v.SetDefault("coordination.endpoints", []string{"localhost:2379"})
	v.SetDefault("coordination.username", "")
	v.SetDefault("coordination.password", "")
	v.SetDefault("coordination.dial_timeout", 15*time.Second)

	v.SetDefault("monitor.poll_interval", 15*time.Second)
	v.SetDefault("monitor.probe_timeout", 5*time.Second)
	v.SetDefault("monitor.probe_attempts", 2)
	v.SetDefault("monitor.probe_retry_delay", time.Second)

	v.SetDefault("messenger.send_attempts", 1)
	v.SetDefault("messenger.send_retry_delay", 500*time.Millisecond)
	v.SetDefault("messenger.send_timeout", 5*time.Second)
	v.SetDefault("messenger.inbox_size", 256)
	v.SetDefault("messenger.dedup_cache_size", 1024)

	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.addr", "127.0.0.1:9470")
	v.SetDefault("diagnostics.rate_limit", 1.0)
	v.SetDefault("diagnostics.burst", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", true)

	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.vault.address", "")
	v.SetDefault("secrets.vault.token", "")
	v.SetDefault("secrets.vault.path", "")
	v.SetDefault("secrets.aws.region", "")
	v.SetDefault("secrets.aws.access_key", "")
	v.SetDefault("secrets.aws.secret_key", "")
	v.SetDefault("secrets.aws.secret_id", "")
	v.SetDefault("secrets.aws.endpoint", "")
}

// loadFromEnv maps CASEHUB_SECTION_KEY variables onto section.key
func loadFromEnv(v *viper.Viper) {
	v.SetEnvPrefix("CASEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadConfig loads configuration from file and environment variables.
// With an empty path, casehub.yaml is searched in ".", "./config" and
// "$HOME/.casehub", and a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("casehub")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".casehub"))
		}
	}

	setDefaults(v)
	loadFromEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks struct constraints and the rules that span fields
func Validate(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	switch config.Database.Type {
	case "sqlite":
		if config.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "mongodb":
		if config.Database.URI == "" && config.Database.Host == "" {
			return errors.New("database.uri or database.host is required for mongodb")
		}
	default:
		if config.Database.Host == "" {
			return fmt.Errorf("database.host is required for %s", config.Database.Type)
		}
	}

	if config.Monitor.PollInterval > 0 && config.Monitor.PollInterval < time.Second {
		return fmt.Errorf("monitor.poll_interval must be at least 1s, got %v", config.Monitor.PollInterval)
	}
	return nil
}

// ProbePolicy returns the retry policy for one health check
func (c *Config) ProbePolicy() []retry.TaskAttempt {
	return retry.Policy(c.Monitor.ProbeAttempts, c.Monitor.ProbeRetryDelay, c.Monitor.ProbeTimeout)
}

// SendPolicy returns the retry policy for one event send
func (c *Config) SendPolicy() []retry.TaskAttempt {
	return retry.Policy(c.Messenger.SendAttempts, c.Messenger.SendRetryDelay, c.Messenger.SendTimeout)
}

// MonitorPollInterval maps the configured interval to the monitor's
// convention, where a negative interval disables polling
func (c *Config) MonitorPollInterval() time.Duration {
	if c.Monitor.PollInterval <= 0 {
		return -1
	}
	return c.Monitor.PollInterval
}
