package structures

import (
	"net/http"
	"time"
)

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}

type Route struct {
	Method  string
	Url     string
	Handler http.Handler
}

type Server struct {
	Host       string `yaml:"host" validate:"required"`
	Port       int    `yaml:"port" validate:"required|uint|min:1"`
	PathPrefix string `yaml:"pathPrefix" validate:"required|startsWith:/"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type StoreConfig struct {
	Driver       string `yaml:"driver" validate:"required|in:memory,redis,sqlite"`
	RedisURL     string `yaml:"redisUrl"`
	RedisPrefix  string `yaml:"redisPrefix"`
	SQLitePath   string `yaml:"sqlitePath"`
	MaxTxRetries int    `yaml:"maxTxRetries"`
}

type AuthConfig struct {
	Driver         string        `yaml:"driver" validate:"required|in:gotrue,static"`
	URL            string        `yaml:"url"`
	AnonKey        string        `yaml:"anonKey"`
	ServiceRoleKey string        `yaml:"serviceRoleKey"`
	Timeout        time.Duration `yaml:"timeout"`
	CacheTTL       time.Duration `yaml:"cacheTTL"`
	StaticUsers    []StaticUser  `yaml:"staticUsers"`
}

type StaticUser struct {
	Token  string `yaml:"token"`
	UserID string `yaml:"userId"`
	Email  string `yaml:"email"`
	Name   string `yaml:"name"`
}

type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerMinute int  `yaml:"perMinute"`
	Burst     int  `yaml:"burst"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server          `yaml:"webServer"`
	Persistence Persistence     `yaml:"persistence"`
	Logger      LoggerConfig    `yaml:"logger"`
	Store       StoreConfig     `yaml:"store"`
	Auth        AuthConfig      `yaml:"auth"`
	RateLimit   RateLimitConfig `yaml:"rateLimit"`
	Cache       CacheConfig     `yaml:"cache"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}
