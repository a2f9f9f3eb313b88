package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Engine    EngineConfig    `mapstructure:"engine"`
	Session   SessionConfig   `mapstructure:"session"`
	XP        XPConfig        `mapstructure:"xp"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Timezone  string          `mapstructure:"timezone"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

// EngineConfig describes the external conversational AI engine endpoint
// and the audio format it expects on each direction of the stream.
type EngineConfig struct {
	URL               string        `mapstructure:"url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	SendSampleRate    int           `mapstructure:"send_sample_rate"`
	ReceiveSampleRate int           `mapstructure:"receive_sample_rate"`
	FrameBytes        int           `mapstructure:"frame_bytes"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout_sec"`
	AnalysisTimeout   time.Duration `mapstructure:"analysis_timeout_sec"`
}

type SessionConfig struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout_sec"`
	GracePeriod       time.Duration `mapstructure:"grace_period_sec"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl_min"`
	MaxTurns          int           `mapstructure:"max_turns"`
	ExpectedDuration  time.Duration `mapstructure:"expected_duration_sec"`
	OutboundQueueSize int           `mapstructure:"outbound_queue_size"`
}

// XPConfig carries the gamification constants. All values are overridable
// from the config file; zero means "use the product default".
type XPConfig struct {
	BaseSessionXP          int      `mapstructure:"base_session_xp"`
	AccuracyBonusThreshold float64  `mapstructure:"accuracy_bonus_threshold"`
	AccuracyBonusXP        int      `mapstructure:"accuracy_bonus_xp"`
	PerfectScoreBonus      int      `mapstructure:"perfect_score_bonus"`
	FirstSessionBonus      int      `mapstructure:"first_session_bonus"`
	SpeedBonusMax          int      `mapstructure:"speed_bonus_max"`
	StreakBonusPerDay      int      `mapstructure:"streak_bonus_per_day"`
	StreakBonusMax         int      `mapstructure:"streak_bonus_max"`
	PerfectDayBonus        int      `mapstructure:"perfect_day_bonus"`
	BadgeXP                int      `mapstructure:"badge_xp"`
	DailyXPGoal            int      `mapstructure:"daily_xp_goal"`
	PassMark               int      `mapstructure:"pass_mark"`
	RequiredModalities     []string `mapstructure:"required_modalities"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("LINGUA_VOICE")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// AI engine
	viper.BindEnv("engine.url", "ENGINE_URL")
	viper.BindEnv("engine.api_key", "ENGINE_API_KEY")
	viper.BindEnv("engine.model", "ENGINE_MODEL")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.Engine.DialTimeout = cfg.Engine.DialTimeout * time.Second
	cfg.Engine.AnalysisTimeout = cfg.Engine.AnalysisTimeout * time.Second
	cfg.Session.IdleTimeout = cfg.Session.IdleTimeout * time.Second
	cfg.Session.GracePeriod = cfg.Session.GracePeriod * time.Second
	cfg.Session.ExpectedDuration = cfg.Session.ExpectedDuration * time.Second
	cfg.Session.CacheTTL = cfg.Session.CacheTTL * time.Minute

	applyDefaults(&cfg)

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Engine.URL == "" {
		return nil, fmt.Errorf("engine.url is required")
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.SendSampleRate == 0 {
		cfg.Engine.SendSampleRate = 16000
	}
	if cfg.Engine.ReceiveSampleRate == 0 {
		cfg.Engine.ReceiveSampleRate = 24000
	}
	if cfg.Engine.FrameBytes == 0 {
		cfg.Engine.FrameBytes = 3200 // 100ms of 16kHz s16le mono
	}
	if cfg.Engine.DialTimeout == 0 {
		cfg.Engine.DialTimeout = 10 * time.Second
	}
	if cfg.Engine.AnalysisTimeout == 0 {
		cfg.Engine.AnalysisTimeout = 5 * time.Second
	}
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 2 * time.Minute
	}
	if cfg.Session.GracePeriod == 0 {
		cfg.Session.GracePeriod = 30 * time.Second
	}
	if cfg.Session.CacheTTL == 0 {
		cfg.Session.CacheTTL = 30 * time.Minute
	}
	if cfg.Session.MaxTurns == 0 {
		cfg.Session.MaxTurns = 100
	}
	if cfg.Session.ExpectedDuration == 0 {
		cfg.Session.ExpectedDuration = 10 * time.Minute
	}
	if cfg.Session.OutboundQueueSize == 0 {
		cfg.Session.OutboundQueueSize = 256
	}

	if cfg.XP.BaseSessionXP == 0 {
		cfg.XP.BaseSessionXP = 20
	}
	if cfg.XP.AccuracyBonusThreshold == 0 {
		cfg.XP.AccuracyBonusThreshold = 0.80
	}
	if cfg.XP.AccuracyBonusXP == 0 {
		cfg.XP.AccuracyBonusXP = 10
	}
	if cfg.XP.PerfectScoreBonus == 0 {
		cfg.XP.PerfectScoreBonus = 25
	}
	if cfg.XP.FirstSessionBonus == 0 {
		cfg.XP.FirstSessionBonus = 15
	}
	if cfg.XP.SpeedBonusMax == 0 {
		cfg.XP.SpeedBonusMax = 10
	}
	if cfg.XP.StreakBonusPerDay == 0 {
		cfg.XP.StreakBonusPerDay = 2
	}
	if cfg.XP.StreakBonusMax == 0 {
		cfg.XP.StreakBonusMax = 30
	}
	if cfg.XP.PerfectDayBonus == 0 {
		cfg.XP.PerfectDayBonus = 50
	}
	if cfg.XP.BadgeXP == 0 {
		cfg.XP.BadgeXP = 50
	}
	if cfg.XP.DailyXPGoal == 0 {
		cfg.XP.DailyXPGoal = 100
	}
	if cfg.XP.PassMark == 0 {
		cfg.XP.PassMark = 60
	}
	if len(cfg.XP.RequiredModalities) == 0 {
		cfg.XP.RequiredModalities = []string{"speaking", "listening", "grammar"}
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
}
