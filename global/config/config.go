package config

import (
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// AppConfig api 节点的全部配置。
// 加载顺序：内置默认值 -> yaml 文件 -> 环境变量（地址/密钥类）。
type AppConfig struct {
	Port     int    `mapstructure:"port"`
	NodeId   int64  `mapstructure:"node_id"`
	LogLevel string `mapstructure:"log_level"`

	JwtSecret string `mapstructure:"jwt_secret"`

	Redis RedisConfig `mapstructure:"redis"`
	Mongo MongoConfig `mapstructure:"mongo"`

	Session SessionConfig `mapstructure:"session"`
	Guard   GuardConfig   `mapstructure:"guard"`
	Probe   ProbeConfig   `mapstructure:"probe"`

	RateLimit map[string]TierConfig `mapstructure:"rate_limit"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MongoConfig struct {
	Uri         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
}

type SessionConfig struct {
	// 平台TTL（秒）：web 1天 / app 30天
	WebTTLSec int `mapstructure:"web_ttl_sec"`
	AppTTLSec int `mapstructure:"app_ttl_sec"`
}

type GuardConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BlockSec    int `mapstructure:"block_sec"`
}

type ProbeConfig struct {
	IntervalSec int `mapstructure:"interval_sec"`
	TimeoutSec  int `mapstructure:"timeout_sec"`
}

// TierConfig 某一档限流的覆盖值；未配置的档位用内置表
type TierConfig struct {
	Points   int `mapstructure:"points"`
	Duration int `mapstructure:"duration"`
	Block    int `mapstructure:"block"`
}

func Default() AppConfig {
	return AppConfig{
		Port:     8080,
		NodeId:   1,
		LogLevel: "debug",
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			PoolSize: 32,
		},
		Mongo: MongoConfig{
			Uri:         "mongodb://localhost:27017",
			Database:    "social",
			MaxPoolSize: 20,
		},
		Session: SessionConfig{
			WebTTLSec: 24 * 3600,
			AppTTLSec: 30 * 24 * 3600,
		},
		Guard: GuardConfig{
			MaxAttempts: 10,
			BlockSec:    30 * 60,
		},
		Probe: ProbeConfig{
			IntervalSec: 5,
			TimeoutSec:  2,
		},
	}
}

// Load 读取 yaml（可不存在），宽松解码覆盖到默认配置上
func Load(path string) (AppConfig, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			var m map[string]any
			if err := yaml.Unmarshal(raw, &m); err != nil {
				return cfg, err
			}
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				Result:           &cfg,
				WeaklyTypedInput: true, // "8080" -> int 等
			})
			if err != nil {
				return cfg, err
			}
			if err := dec.Decode(m); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv 地址与密钥类配置允许环境变量覆盖
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.Uri = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JwtSecret = v
	}
}
