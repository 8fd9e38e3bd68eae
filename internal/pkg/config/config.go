package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	LTA       LTAConfig       `mapstructure:"lta"`
	NEA       NEAConfig       `mapstructure:"nea"`
	Maps      MapsConfig      `mapstructure:"maps"`
	Web       WebConfig       `mapstructure:"web"`
	Data      DataConfig      `mapstructure:"data"`
	Weather   WeatherConfig   `mapstructure:"weather"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// LTAConfig configures the LTA DataMall client. A single account key is used.
type LTAConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ArrivalTTLSecs int           `mapstructure:"arrival_ttl_secs"`
}

type NEAConfig struct {
	ForecastURL string        `mapstructure:"forecast_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type MapsConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type WebConfig struct {
	Dir   string `mapstructure:"dir"`
	Index string `mapstructure:"index"`
}

// DataConfig locates static datasets. StopsPath, when set, replaces the
// database as the stop source.
type DataConfig struct {
	BoundariesPath string `mapstructure:"boundaries_path"`
	StopsPath      string `mapstructure:"stops_path"`
}

type WeatherConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	ZoomThreshold   float64       `mapstructure:"zoom_threshold"`
	RefreshInAPI    bool          `mapstructure:"refresh_in_api"`
}

// Load reads configuration from .env, file and environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load(".env") // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "busradar")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "busradar")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "busradar-weather")
	v.SetDefault("lta.base_url", "https://datamall2.mytransport.sg/ltaodataservice")
	v.SetDefault("lta.api_key", "")
	v.SetDefault("lta.timeout", 10*time.Second)
	v.SetDefault("lta.arrival_ttl_secs", 15)
	v.SetDefault("nea.forecast_url", "https://api.data.gov.sg/v1/environment/2-hour-weather-forecast")
	v.SetDefault("nea.timeout", 10*time.Second)
	v.SetDefault("maps.api_key", "")
	v.SetDefault("web.dir", "./web")
	v.SetDefault("web.index", "./web/index.html")
	v.SetDefault("data.boundaries_path", "./data/planning-areas.geojson")
	v.SetDefault("data.stops_path", "")
	v.SetDefault("weather.refresh_interval", 5*time.Minute)
	v.SetDefault("weather.zoom_threshold", 12.0)
	v.SetDefault("weather.refresh_in_api", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: BUSRADAR_DATABASE_HOST → database.host
	v.SetEnvPrefix("BUSRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain names used by existing deployments
	_ = v.BindEnv("server.port", "BUSRADAR_SERVER_PORT", "PORT")
	_ = v.BindEnv("lta.api_key", "BUSRADAR_LTA_API_KEY", "LTA_DATAMALL_API_KEY")
	_ = v.BindEnv("maps.api_key", "BUSRADAR_MAPS_API_KEY", "GOOGLE_MAPS_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.LTA.BaseURL == "" {
		errs = append(errs, "lta.base_url is required")
	}
	if c.LTA.Timeout <= 0 {
		errs = append(errs, "lta.timeout must be positive")
	}
	if c.NEA.ForecastURL == "" {
		errs = append(errs, "nea.forecast_url is required")
	}
	if c.Weather.RefreshInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("weather.refresh_interval must be at least 1m, got %s", c.Weather.RefreshInterval))
	}
	if c.Weather.ZoomThreshold < 0 || c.Weather.ZoomThreshold > 22 {
		errs = append(errs, fmt.Sprintf("weather.zoom_threshold must be 0-22, got %v", c.Weather.ZoomThreshold))
	}
	if c.Temporal.Enabled && c.Temporal.HostPort == "" {
		errs = append(errs, "temporal.host_port is required when temporal is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
