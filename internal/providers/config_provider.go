package providers

import (
	"fmt"
	"github.com/spf13/viper"
	"moriportal/internal/structures"
	"path/filepath"
	"strings"
	"time"
)

const defaultPathPrefix = "/make-server-92f3175c"

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.SetDefault("webServer.pathPrefix", defaultPathPrefix)
	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.redisPrefix", "mori:")
	viper.SetDefault("auth.driver", "gotrue")
	viper.SetDefault("auth.timeout", 5*time.Second)
	viper.SetDefault("auth.cacheTTL", 60*time.Second)
	viper.SetDefault("cache.ttl", 2*time.Second)
	viper.SetDefault("rateLimit.perMinute", 120)
	viper.SetDefault("rateLimit.burst", 30)

	viper.BindEnv("logger.level", "MORI_LOG_LEVEL")
	viper.BindEnv("store.driver", "MORI_STORE_DRIVER")
	viper.BindEnv("store.redisUrl", "MORI_REDIS_URL")
	viper.BindEnv("store.sqlitePath", "MORI_SQLITE_PATH")
	viper.BindEnv("auth.url", "MORI_AUTH_URL")
	viper.BindEnv("auth.anonKey", "MORI_AUTH_ANON_KEY")
	viper.BindEnv("auth.serviceRoleKey", "MORI_AUTH_SERVICE_ROLE_KEY")
	viper.BindEnv("cache.enabled", "MORI_CACHE_ENABLED")
	viper.BindEnv("cache.size", "MORI_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "MoriPortal"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
