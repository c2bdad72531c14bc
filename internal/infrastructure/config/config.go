package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
	Catalog    CatalogConfig
	Finder     FinderConfig
	Order      OrderConfig
	Submission SubmissionConfig
	Export     ExportConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds settings for verifying bearer tokens issued by the portal's
// identity provider. This service never issues tokens.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Required bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	Profiling         ProfilingConfig
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string // Pyroscope server (e.g., "http://pyroscope:4040")
	ApplicationName   string // defaults to the telemetry service name
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string // cpu, alloc_space, inuse_space, goroutines, mutex_count, ...
	SpanProfiles      bool     // link CPU profiles to trace spans
}

// CatalogConfig selects and configures the catalog option source.
type CatalogConfig struct {
	// Source is "http" (remote catalog service) or "database" (local mirror table)
	Source         string
	BaseURL        string
	APIToken       string
	Timeout        time.Duration
	CacheEnabled   bool
	CacheTTL       time.Duration
	CacheKeyPrefix string
}

// FinderConfig holds incremental finder tuning
type FinderConfig struct {
	Debounce     time.Duration
	PageSize     int
	DefaultLimit int
}

// OrderConfig holds order form settings
type OrderConfig struct {
	ShippingFee string // decimal, EUR
	Currency    string
	SessionTTL  time.Duration
	SweepPeriod time.Duration
}

// SubmissionConfig configures the downstream order submission endpoint
type SubmissionConfig struct {
	URL      string
	APIToken string
	Timeout  time.Duration
}

// ExportConfig configures the weekly weclapp order export
type ExportConfig struct {
	Enabled          bool
	BaseURL          string // weclapp REST base, e.g. "https://tenant.weclapp.com/webapp/api/v1"
	APIToken         string
	Timeout          time.Duration
	PageSize         int
	Schedule         string // "minute hour * * weekday"
	OffsetWeeks      int
	OutputDir        string
	Channels         []string
	ExcludedKeywords []string
	PositionStatus   string
	MaxRetries       int
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with COCKPIT_ prefix (e.g., COCKPIT_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("COCKPIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("jwt.secret"),
			Issuer:   v.GetString("jwt.issuer"),
			Required: v.GetBool("jwt.required"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			Profiling: ProfilingConfig{
				Enabled:           v.GetBool("telemetry.profiling.enabled"),
				ServerAddress:     v.GetString("telemetry.profiling.server_address"),
				ApplicationName:   v.GetString("telemetry.profiling.application_name"),
				BasicAuthUser:     v.GetString("telemetry.profiling.basic_auth_user"),
				BasicAuthPassword: v.GetString("telemetry.profiling.basic_auth_password"),
				ProfileTypes:      v.GetStringSlice("telemetry.profiling.profile_types"),
				SpanProfiles:      v.GetBool("telemetry.profiling.span_profiles"),
			},
		},
		Catalog: CatalogConfig{
			Source:         v.GetString("catalog.source"),
			BaseURL:        v.GetString("catalog.base_url"),
			APIToken:       v.GetString("catalog.api_token"),
			Timeout:        v.GetDuration("catalog.timeout"),
			CacheEnabled:   v.GetBool("catalog.cache_enabled"),
			CacheTTL:       v.GetDuration("catalog.cache_ttl"),
			CacheKeyPrefix: v.GetString("catalog.cache_key_prefix"),
		},
		Finder: FinderConfig{
			Debounce:     v.GetDuration("finder.debounce"),
			PageSize:     v.GetInt("finder.page_size"),
			DefaultLimit: v.GetInt("finder.default_limit"),
		},
		Order: OrderConfig{
			ShippingFee: v.GetString("order.shipping_fee"),
			Currency:    v.GetString("order.currency"),
			SessionTTL:  v.GetDuration("order.session_ttl"),
			SweepPeriod: v.GetDuration("order.sweep_period"),
		},
		Submission: SubmissionConfig{
			URL:      v.GetString("submission.url"),
			APIToken: v.GetString("submission.api_token"),
			Timeout:  v.GetDuration("submission.timeout"),
		},
		Export: ExportConfig{
			Enabled:          v.GetBool("export.enabled"),
			BaseURL:          v.GetString("export.base_url"),
			APIToken:         v.GetString("export.api_token"),
			Timeout:          v.GetDuration("export.timeout"),
			PageSize:         v.GetInt("export.page_size"),
			Schedule:         v.GetString("export.schedule"),
			OffsetWeeks:      v.GetInt("export.offset_weeks"),
			OutputDir:        v.GetString("export.output_dir"),
			Channels:         v.GetStringSlice("export.channels"),
			ExcludedKeywords: v.GetStringSlice("export.excluded_keywords"),
			PositionStatus:   v.GetString("export.position_status"),
			MaxRetries:       v.GetInt("export.max_retries"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bestell-cockpit"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "productmanager"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "productmanager"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	// Empty CORS origins means no cross-origin requests until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "bestell-cockpit"
	}
	if cfg.Telemetry.Profiling.ApplicationName == "" {
		cfg.Telemetry.Profiling.ApplicationName = cfg.Telemetry.ServiceName
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
	if cfg.Catalog.Source == "" {
		cfg.Catalog.Source = "http"
	}
	if cfg.Catalog.BaseURL == "" {
		cfg.Catalog.BaseURL = "http://localhost:5000/api"
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 10 * time.Second
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = 2 * time.Minute
	}
	if cfg.Catalog.CacheKeyPrefix == "" {
		cfg.Catalog.CacheKeyPrefix = "catalog:page:"
	}
	if cfg.Finder.Debounce == 0 {
		cfg.Finder.Debounce = 250 * time.Millisecond
	}
	if cfg.Finder.PageSize == 0 {
		cfg.Finder.PageSize = 20
	}
	if cfg.Finder.DefaultLimit == 0 {
		cfg.Finder.DefaultLimit = 10
	}
	if cfg.Order.ShippingFee == "" {
		cfg.Order.ShippingFee = "2.50"
	}
	if cfg.Order.Currency == "" {
		cfg.Order.Currency = "EUR"
	}
	if cfg.Order.SessionTTL == 0 {
		cfg.Order.SessionTTL = 30 * time.Minute
	}
	if cfg.Order.SweepPeriod == 0 {
		cfg.Order.SweepPeriod = time.Minute
	}
	if cfg.Submission.Timeout == 0 {
		cfg.Submission.Timeout = 15 * time.Second
	}
	if cfg.Export.Timeout == 0 {
		cfg.Export.Timeout = 30 * time.Second
	}
	if cfg.Export.PageSize == 0 {
		cfg.Export.PageSize = 100
	}
	if cfg.Export.Schedule == "" {
		cfg.Export.Schedule = "0 6 * * 1"
	}
	if cfg.Export.OffsetWeeks == 0 {
		cfg.Export.OffsetWeeks = salesexport.DefaultOffsetWeeks
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "exports"
	}
	if len(cfg.Export.Channels) == 0 {
		cfg.Export.Channels = slices.Clone(salesexport.DefaultChannels)
	}
	if len(cfg.Export.ExcludedKeywords) == 0 {
		cfg.Export.ExcludedKeywords = slices.Clone(salesexport.DefaultExcludedKeywords)
	}
	if cfg.Export.PositionStatus == "" {
		cfg.Export.PositionStatus = salesexport.StatusCompleted
	}
	if cfg.Export.MaxRetries == 0 {
		cfg.Export.MaxRetries = 3
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Catalog.Source {
	case "http", "database":
	default:
		return fmt.Errorf("catalog.source must be 'http' or 'database', got %q", c.Catalog.Source)
	}
	if c.Catalog.Source == "http" {
		if _, err := url.ParseRequestURI(c.Catalog.BaseURL); err != nil {
			return fmt.Errorf("catalog.base_url is not a valid URL: %w", err)
		}
	}

	if c.Finder.Debounce < 0 {
		return fmt.Errorf("finder.debounce cannot be negative")
	}
	if c.Finder.PageSize <= 0 || c.Finder.PageSize > 100 {
		return fmt.Errorf("finder.page_size must be between 1 and 100, got %d", c.Finder.PageSize)
	}

	fee, err := decimal.NewFromString(c.Order.ShippingFee)
	if err != nil {
		return fmt.Errorf("order.shipping_fee is not a decimal: %w", err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("order.shipping_fee cannot be negative")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Submission.URL == "" {
			return fmt.Errorf("submission.url is required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.Profiling.Enabled && c.Telemetry.Profiling.ServerAddress == "" {
		return fmt.Errorf("telemetry.profiling.server_address is required when profiling is enabled")
	}

	if c.Export.Enabled {
		if _, err := url.ParseRequestURI(c.Export.BaseURL); err != nil {
			return fmt.Errorf("export.base_url is not a valid URL: %w", err)
		}
		if c.Export.APIToken == "" {
			return fmt.Errorf("export.api_token is required when the export is enabled")
		}
	}
	if c.Export.PageSize <= 0 || c.Export.PageSize > 1000 {
		return fmt.Errorf("export.page_size must be between 1 and 1000, got %d", c.Export.PageSize)
	}
	if c.Export.OffsetWeeks < 0 {
		return fmt.Errorf("export.offset_weeks cannot be negative")
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ShippingFeeDecimal returns the configured shipping fee. Load has already
// validated the value.
func (o *OrderConfig) ShippingFeeDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(o.ShippingFee)
	if err != nil {
		return decimal.Zero
	}
	return d
}
