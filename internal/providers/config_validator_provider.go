package providers

import (
	"fmt"

	"github.com/gookit/validate"
	"moriportal/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return v.Errors
	}

	switch cv.conf.Store.Driver {
	case "redis":
		if cv.conf.Store.RedisURL == "" {
			return fmt.Errorf("store.redisUrl is required for the redis driver")
		}
	case "sqlite":
		if cv.conf.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlitePath is required for the sqlite driver")
		}
	}

	if cv.conf.Auth.Driver == "gotrue" && (cv.conf.Auth.URL == "" || cv.conf.Auth.AnonKey == "") {
		return fmt.Errorf("auth.url and auth.anonKey are required for the gotrue driver")
	}
	return nil
}
