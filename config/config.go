package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`

	// ServiceKey authenticates gameplay producers posting to /api/events.
	ServiceKey string   `mapstructure:"service_key"`
	AdminIPs   []string `mapstructure:"admin_ips"` // empty allows any address
}

type CatalogConfig struct {
	Path string `mapstructure:"path"` // YAML file with quests, achievements and chains
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // memory | sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type GameConfig struct {
	DailyCount    int    `mapstructure:"daily_count"`
	WeeklyCount   int    `mapstructure:"weekly_count"`
	DailyReset    string `mapstructure:"daily_reset"`  // cron expression
	WeeklyReset   string `mapstructure:"weekly_reset"` // cron expression
	ResetTimezone string `mapstructure:"reset_timezone"`
	// PlayerLockTimeout bounds how long a command waits for another command
	// on the same player before failing with a retryable storage error.
	PlayerLockTimeout time.Duration `mapstructure:"player_lock_timeout"`
	NotificationTTL   time.Duration `mapstructure:"notification_ttl"`
	PruneSchedule     string        `mapstructure:"prune_schedule"` // cron expression
	// RankingRebuild is how often the leaderboard is recomputed from the
	// database; zero disables it.
	RankingRebuild time.Duration `mapstructure:"ranking_rebuild"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type LogConfig struct {
	Level          string `mapstructure:"level"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	FileMaxSizeMB  int    `mapstructure:"file_max_size_mb"`
	FileMaxBackups int    `mapstructure:"file_max_backups"`
	FileMaxAgeDays int    `mapstructure:"file_max_age_days"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("catalog.path", "./data/catalog.yaml")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/game.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.daily_count", 3)
	v.SetDefault("game.weekly_count", 1)
	v.SetDefault("game.daily_reset", "0 0 * * *")
	v.SetDefault("game.weekly_reset", "0 0 * * 1")
	v.SetDefault("game.reset_timezone", "UTC")
	v.SetDefault("game.player_lock_timeout", "3s")
	v.SetDefault("game.notification_ttl", "720h")
	v.SetDefault("game.prune_schedule", "30 3 * * *")
	v.SetDefault("game.ranking_rebuild", "1h")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_path", "./logs/server.log")
	v.SetDefault("log.file_max_size_mb", 10)
	v.SetDefault("log.file_max_backups", 5)
	v.SetDefault("log.file_max_age_days", 30)
}
