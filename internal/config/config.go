package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yukikurage/taskboard/internal/constants"
)

type Config struct {
	DBDriver      string `mapstructure:"db_driver"`
	DBHost        string `mapstructure:"db_host"`
	DBPort        string `mapstructure:"db_port"`
	DBUser        string `mapstructure:"db_user"`
	DBPassword    string `mapstructure:"db_password"`
	DBName        string `mapstructure:"db_name"`
	RedisHost     string `mapstructure:"redis_host"`
	RedisPort     string `mapstructure:"redis_port"`
	SessionSecret string `mapstructure:"session_secret"`
	GinMode       string `mapstructure:"gin_mode"`
	ListenAddr    string `mapstructure:"listen_addr"`
	LogLevel      string `mapstructure:"log_level"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIModel   string `mapstructure:"openai_model"`

	// MaxAssumedWorkload is the workload at which a worker's capacity score reaches zero.
	MaxAssumedWorkload int `mapstructure:"max_assumed_workload"`
	// SyncDebounce is the window in which change notifications are coalesced.
	SyncDebounce time.Duration `mapstructure:"sync_debounce"`
	// ReconcileInterval is how often workload counters are recounted (0 disables the job).
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`

	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`
	KafkaGroupID string `mapstructure:"kafka_group_id"`
}

// SetDefaults registers default values with viper
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "3306")
	v.SetDefault("db_user", "taskuser")
	v.SetDefault("db_password", "taskpassword")
	v.SetDefault("db_name", "task_management")
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("session_secret", "default-secret-key-change-me")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "gpt-4o")
	v.SetDefault("max_assumed_workload", constants.DefaultMaxAssumedWorkload)
	v.SetDefault("sync_debounce", constants.DefaultDebounce)
	v.SetDefault("reconcile_interval", constants.DefaultReconcileInterval)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "taskboard-changes")
	v.SetDefault("kafka_group_id", "taskboard-sync")
}

// Load reads configuration from defaults, an optional config file and the
// environment (DB_HOST, SYNC_DEBOUNCE, ...). Environment wins.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the tunables that the engine depends on.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid db_driver %q: must be mysql, postgres or sqlite", c.DBDriver)
	}
	if c.MaxAssumedWorkload <= 0 {
		return fmt.Errorf("max_assumed_workload must be positive, got %d", c.MaxAssumedWorkload)
	}
	if c.SyncDebounce < 0 {
		return fmt.Errorf("sync_debounce must not be negative, got %s", c.SyncDebounce)
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile_interval must not be negative, got %s", c.ReconcileInterval)
	}
	return nil
}

// Brokers splits the comma separated broker list.
func (c *Config) Brokers() []string {
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
