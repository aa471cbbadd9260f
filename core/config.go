package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environments
const (
	EnvDev  = "DEV" // local; default
	EnvTest = "TEST"
	EnvQA   = "QA"
	EnvProd = "PROD"
)

// Storage engines
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type (
	APIConfig struct {
		BaseURL string        `validate:"required,url"`
		Timeout time.Duration `validate:"gt=0"`
	}

	SessionConfig struct {
		RedirectDelay     time.Duration
		LoginRoute        string `validate:"required,startswith=/"`
		DefaultRoute      string `validate:"required,startswith=/"`
		UnauthorizedRoute string `validate:"required,startswith=/"`
		CookieName        string `validate:"required"`
		CookieMaxAge      time.Duration
		// IdleTimeout evicts portal sessions from memory; their storage is kept.
		IdleTimeout time.Duration
	}

	RedisConfig struct {
		Addr     string
		Username string
		Password string
		DB       int
		Prefix   string
	}

	DatabaseConfig struct {
		Engine     string
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	StorageConfig struct {
		Engine   string `validate:"oneof=memory file redis postgres"`
		FilePath string
		Redis    RedisConfig
		Database DatabaseConfig
	}

	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	Config struct {
		WorkDir      string
		Env          string
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string // app version, sent as X-App-Version
		RollbarToken string
		API          APIConfig
		Session      SessionConfig
		Storage      StorageConfig
		Server       ServerConfig
	}
)

func (db DatabaseConfig) Address() string {
	if db.Port == "" {
		return db.Host
	}
	return db.Host + ":" + db.Port
}

// IsProduction reports whether the portal runs against the production API.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProd
}

// EnvironmentTag is the value of the X-Environment header.
func (c *Config) EnvironmentTag() string {
	if c.IsProduction() {
		return "production"
	}
	return "development"
}

func (c *Config) Validate(validate *validator.Validate) error {
	return validate.Struct(c)
}

// NewConfig loads the configuration from defaults, `config/.env.<env>` (if it exists) and the environment.
// Env vars are prefixed with the current env, e.g. `DEV_API_BASEURL`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "1.0.0")
	v.SetDefault("api.baseURL", "http://localhost:5000/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("session.redirectDelay", 1500*time.Millisecond)
	v.SetDefault("session.loginRoute", "/auth/login")
	v.SetDefault("session.defaultRoute", "/dashboard")
	v.SetDefault("session.unauthorizedRoute", "/unauthorized")
	v.SetDefault("session.cookieName", "masomo_sid")
	v.SetDefault("session.cookieMaxAge", 30*24*time.Hour)
	v.SetDefault("session.idleTimeout", 30*time.Minute)
	v.SetDefault("storage.engine", StorageMemory)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.prefix", "masomo:portal:")
	v.SetDefault("storage.database.engine", "postgres")
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", "5432")
	v.SetDefault("storage.database.name", "masomo_portal")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (default), TEST, QA, PROD
	switch env {
	case "":
		env = EnvDev
	case EnvTest:
		v.SetDefault("testMode", true)
	case EnvProd:
		v.SetDefault("debug", false)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		WorkDir:      wd,
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		RollbarToken: v.GetString("rollbarToken"),
		API: APIConfig{
			BaseURL: strings.TrimRight(v.GetString("api.baseURL"), "/"),
			Timeout: v.GetDuration("api.timeout"),
		},
		Session: SessionConfig{
			RedirectDelay:     v.GetDuration("session.redirectDelay"),
			LoginRoute:        v.GetString("session.loginRoute"),
			DefaultRoute:      v.GetString("session.defaultRoute"),
			UnauthorizedRoute: v.GetString("session.unauthorizedRoute"),
			CookieName:        v.GetString("session.cookieName"),
			CookieMaxAge:      v.GetDuration("session.cookieMaxAge"),
			IdleTimeout:       v.GetDuration("session.idleTimeout"),
		},
		Storage: StorageConfig{
			Engine:   v.GetString("storage.engine"),
			FilePath: v.GetString("storage.filePath"),
			Redis: RedisConfig{
				Addr:     v.GetString("storage.redis.addr"),
				Username: v.GetString("storage.redis.username"),
				Password: v.GetString("storage.redis.password"),
				DB:       v.GetInt("storage.redis.db"),
				Prefix:   v.GetString("storage.redis.prefix"),
			},
			Database: DatabaseConfig{
				Engine:     v.GetString("storage.database.engine"),
				Host:       v.GetString("storage.database.host"),
				Port:       v.GetString("storage.database.port"),
				Name:       v.GetString("storage.database.name"),
				User:       v.GetString("storage.database.user"),
				Password:   v.GetString("storage.database.password"),
				DisableTLS: v.GetBool("storage.database.disableTLS"),
			},
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
	}
}
