package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Выбор бэкенда БД.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	DB          DBConfig         `mapstructure:"db"`
	GRPC        GRPCConfig       `mapstructure:"grpc"`
	Ops         OpsConfig        `mapstructure:"ops"`
	Scheduling  SchedulingConfig `mapstructure:"scheduling"`
	Leave       LeaveConfig      `mapstructure:"leave"`
	Notify      NotifyConfig     `mapstructure:"notify"`
}

type DBConfig struct {
	Backend         DatabaseBackend `mapstructure:"backend"`
	DSN             string          `mapstructure:"dsn"` // если задан, перекрывает отдельные поля
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	User            string          `mapstructure:"user"`
	Password        string          `mapstructure:"password"`
	Name            string          `mapstructure:"name"`
	SSLMode         string          `mapstructure:"sslmode"`
	TimeZone        string          `mapstructure:"timezone"`
	MaxOpenConns    int             `mapstructure:"max_open_conns"`
	MaxIdleConns    int             `mapstructure:"max_idle_conns"`
	ConnMaxLifeTime int             `mapstructure:"conn_max_lifetime_min"` // минуты
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

type SchedulingConfig struct {
	HorizonDays         int           `mapstructure:"horizon_days"`
	BookingWindowDays   int           `mapstructure:"booking_window_days"`
	MaterializeInterval time.Duration `mapstructure:"materialize_interval"`
}

type LeaveConfig struct {
	ApprovalTimeout time.Duration `mapstructure:"approval_timeout"`
}

type NotifyConfig struct {
	Sink          string        `mapstructure:"sink"` // log | redis | nats
	RedisURL      string        `mapstructure:"redis_url"`
	RedisChannel  string        `mapstructure:"redis_channel"`
	NATSURL       string        `mapstructure:"nats_url"`
	NATSSubject   string        `mapstructure:"nats_subject"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("db.backend", string(DatabasePostgres))
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "postgres")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "booking")
	v.SetDefault("db.password", "booking")
	v.SetDefault("db.name", "booking_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime_min", 30)

	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("ops.addr", ":9090")

	v.SetDefault("scheduling.horizon_days", 60)
	v.SetDefault("scheduling.booking_window_days", 30)
	v.SetDefault("scheduling.materialize_interval", time.Hour)

	v.SetDefault("leave.approval_timeout", 15*time.Second)

	v.SetDefault("notify.sink", "log")
	v.SetDefault("notify.redis_url", "redis://localhost:6379/0")
	v.SetDefault("notify.redis_channel", "therapy.notifications")
	v.SetDefault("notify.nats_url", "nats://localhost:4222")
	v.SetDefault("notify.nats_subject", "therapy.notifications")
	v.SetDefault("notify.rate_per_second", 50.0)
	v.SetDefault("notify.burst", 20)
	v.SetDefault("notify.send_timeout", 5*time.Second)
}

// Load читает дефолты, необязательный config.yaml и переменные окружения THERAPY_*.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("THERAPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate выполняет минимальные проверки.
func (c *Config) Validate() error {
	switch c.DB.Backend {
	case DatabasePostgres:
		if c.DB.DSN == "" && (c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "") {
			return fmt.Errorf("invalid DB config: host/user/name must not be empty")
		}
	case DatabaseSQLite:
		if c.DB.DSN == "" {
			return fmt.Errorf("invalid DB config: sqlite requires db.dsn")
		}
	default:
		return fmt.Errorf("unknown database backend: %s", c.DB.Backend)
	}
	if c.Scheduling.HorizonDays <= 0 {
		return fmt.Errorf("scheduling.horizon_days must be positive")
	}
	if c.Scheduling.BookingWindowDays <= 0 {
		return fmt.Errorf("scheduling.booking_window_days must be positive")
	}
	if c.Scheduling.MaterializeInterval <= 0 {
		return fmt.Errorf("scheduling.materialize_interval must be positive")
	}
	if c.Leave.ApprovalTimeout <= 0 {
		return fmt.Errorf("leave.approval_timeout must be positive")
	}
	return nil
}

// PostgresDSN собирает key/value DSN из отдельных полей.
func (c DBConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}
