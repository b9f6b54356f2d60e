package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config agrupa la configuración del servicio.
// Los nombres de las keys coinciden con las variables de entorno (PORT, DB_DSN, ...).
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	DBDriver string // memory | postgres | sqlite
	DBDSN    string

	TZ       string
	Location *time.Location

	LogLevel  string
	LogFormat string
	LogFile   string
	AppName   string

	AuthMode    string // dev | jwt | odin
	JWTSecret   string
	JWTTTL      time.Duration
	OdinBaseURL string
	OdinAPIKey  string

	SeedDemo       bool
	MetricsEnabled bool
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	AuthModeDev  = "dev"
	AuthModeJWT  = "jwt"
	AuthModeOdin = "odin"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("READ_TIMEOUT", "5s")
	v.SetDefault("WRITE_TIMEOUT", "10s")
	v.SetDefault("DB_DRIVER", "")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("TZ", "UTC")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("APP_NAME", "dawailo")
	v.SetDefault("AUTH_MODE", AuthModeDev)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("ODIN_BASE_URL", "")
	v.SetDefault("ODIN_API_KEY", "")
	v.SetDefault("SEED_DEMO", false)
	v.SetDefault("METRICS_ENABLED", true)
}

// Load lee defaults, archivo opcional (yaml/json/toml/env) y variables de entorno.
// Las variables de entorno ganan sobre el archivo.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if f := strings.TrimSpace(file); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", f, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:           strings.TrimSpace(v.GetString("PORT")),
		ReadTimeout:    v.GetDuration("READ_TIMEOUT"),
		WriteTimeout:   v.GetDuration("WRITE_TIMEOUT"),
		DBDriver:       strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DBDSN:          strings.TrimSpace(v.GetString("DB_DSN")),
		TZ:             strings.TrimSpace(v.GetString("TZ")),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFormat:      v.GetString("LOG_FORMAT"),
		LogFile:        strings.TrimSpace(v.GetString("LOG_FILE")),
		AppName:        strings.TrimSpace(v.GetString("APP_NAME")),
		AuthMode:       strings.ToLower(strings.TrimSpace(v.GetString("AUTH_MODE"))),
		JWTSecret:      v.GetString("JWT_SECRET"),
		JWTTTL:         v.GetDuration("JWT_TTL"),
		OdinBaseURL:    strings.TrimSpace(v.GetString("ODIN_BASE_URL")),
		OdinAPIKey:     strings.TrimSpace(v.GetString("ODIN_API_KEY")),
		SeedDemo:       v.GetBool("SEED_DEMO"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
	}

	// Sin driver explícito: postgres si hay DSN, si no in-memory (modo dev).
	if cfg.DBDriver == "" {
		if cfg.DBDSN != "" {
			cfg.DBDriver = DriverPostgres
		} else {
			cfg.DBDriver = DriverMemory
		}
	}

	switch cfg.DBDriver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if cfg.DBDSN == "" {
			return Config{}, fmt.Errorf("config: DB_DSN required for driver %q", cfg.DBDriver)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown DB_DRIVER %q", cfg.DBDriver)
	}

	switch cfg.AuthMode {
	case AuthModeDev, AuthModeOdin:
	case AuthModeJWT:
		if len(cfg.JWTSecret) < 16 {
			return Config{}, fmt.Errorf("config: JWT_SECRET must be at least 16 chars in jwt mode")
		}
	default:
		return Config{}, fmt.Errorf("config: unknown AUTH_MODE %q", cfg.AuthMode)
	}

	if cfg.TZ == "" {
		cfg.TZ = "UTC"
	}
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid TZ %q: %w", cfg.TZ, err)
	}
	cfg.Location = loc

	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 7 * 24 * time.Hour
	}

	return cfg, nil
}

// Addr devuelve la dirección de escucha para http.Server.
func (c Config) Addr() string {
	return ":" + c.Port
}
