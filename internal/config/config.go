package config

import "time"

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverRedis  = "redis"
)

// Seen notification scopes.
const (
	// SeenScopeParties notifies the receiver and the author of a directed message.
	SeenScopeParties = "parties"
	// SeenScopeGlobal notifies every online connection.
	SeenScopeGlobal = "global"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	StoreDriver   string `mapstructure:"store_driver" yaml:"store_driver"`
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`
	JWTRequired bool          `mapstructure:"jwt_required" yaml:"jwt_required"`

	MaxMessageBytes int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	SendBuffer      int           `mapstructure:"send_buffer" yaml:"send_buffer"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	PersistTimeout  time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`

	SeenScope     string        `mapstructure:"seen_scope" yaml:"seen_scope"`
	MaxOffline    int           `mapstructure:"max_offline" yaml:"max_offline"`
	OfflineTTL    time.Duration `mapstructure:"offline_ttl" yaml:"offline_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	PruneOnRebind bool          `mapstructure:"prune_on_rebind" yaml:"prune_on_rebind"`

	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",

		StoreDriver:  StoreDriverSQLite,
		DatabasePath: "wirerelay.db",
		RedisAddr:    "localhost:6379",

		JWTSecret:   "change-me",
		JWTIssuer:   "wirerelay",
		JWTAudience: "wirerelay",
		JWTTTL:      24 * time.Hour,

		MaxMessageBytes: 1 << 16,
		SendBuffer:      64,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		PersistTimeout:  5 * time.Second,

		SeenScope:     SeenScopeParties,
		MaxOffline:    1024,
		OfflineTTL:    time.Hour,
		SweepInterval: time.Minute,
		PruneOnRebind: true,

		MetricsEnabled: true,
	}
}

// UpdateFrom overwrites receiver fields with the non-zero values of other.
// Booleans are left alone: false cannot be told apart from unset.
func (c *Config) UpdateFrom(other Config) {
	setString(&c.Addr, other.Addr)
	setDuration(&c.ReadHeaderTimeout, other.ReadHeaderTimeout)
	setDuration(&c.ShutdownTimeout, other.ShutdownTimeout)
	setString(&c.LogLevel, other.LogLevel)

	setString(&c.StoreDriver, other.StoreDriver)
	setString(&c.DatabasePath, other.DatabasePath)
	setString(&c.RedisAddr, other.RedisAddr)
	setString(&c.RedisPassword, other.RedisPassword)
	setInt(&c.RedisDB, other.RedisDB)

	setString(&c.JWTSecret, other.JWTSecret)
	setString(&c.JWTIssuer, other.JWTIssuer)
	setString(&c.JWTAudience, other.JWTAudience)
	setDuration(&c.JWTTTL, other.JWTTTL)

	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	setInt(&c.SendBuffer, other.SendBuffer)
	if other.RateLimitRPS != 0 {
		c.RateLimitRPS = other.RateLimitRPS
	}
	setInt(&c.RateLimitBurst, other.RateLimitBurst)
	setDuration(&c.PersistTimeout, other.PersistTimeout)

	setString(&c.SeenScope, other.SeenScope)
	setInt(&c.MaxOffline, other.MaxOffline)
	setDuration(&c.OfflineTTL, other.OfflineTTL)
	setDuration(&c.SweepInterval, other.SweepInterval)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
