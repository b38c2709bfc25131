package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	JWT      JWTConfig
	Presence PresenceConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Address            string
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds"`
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

type JWTConfig struct {
	Secret      string
	ExpireHours int `mapstructure:"expire_hours"`
}

type PresenceConfig struct {
	GraceMinutes int `mapstructure:"grace_minutes"`
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")

	// 營運參數的預設值，配置文件可覆蓋
	viper.SetDefault("server.call_timeout_seconds", 10)
	viper.SetDefault("presence.grace_minutes", 5)
	viper.SetDefault("jwt.expire_hours", 240)
	viper.SetDefault("redis.enabled", false)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// CallTimeout 回傳單次事件處理的外部呼叫上限時間
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Server.CallTimeoutSeconds) * time.Second
}

// PresenceGrace 回傳離線後保留在線狀態記錄的寬限期
func (c *Config) PresenceGrace() time.Duration {
	return time.Duration(c.Presence.GraceMinutes) * time.Minute
}
