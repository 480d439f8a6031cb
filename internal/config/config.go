// Package config carrega a configuração do processo uma única vez na
// inicialização. Nenhum componente lê variáveis de ambiente depois disso.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvTest        = "test"
	EnvDevelopment = "development"

	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Config é imutável depois de Load; passe o valor (não ponteiro) aos componentes.
type Config struct {
	Environment string
	Port        string

	DBHost       string
	DBPort       uint
	DBName       string
	DBSecretID   string
	DBUsername   string
	DBPassword   string
	DBSSLDisable bool

	AccessSecret  string
	RefreshSecret string
	CSRFSecret    string
	AdminEmails   []string

	MaxRefreshTokensPerUser int
	RevokeFamilyOnReuse     bool
	RevokedTokenRetention   time.Duration
	TokenCleanupInterval    time.Duration
	MigrateLegacyTokens     bool

	CookieSecure       bool
	CSRFSessionBinding string
	CORSAllowedOrigins []string
	TrustProxy         bool

	RedisURL         string
	LoginRateMax     int
	LoginRateWindow  time.Duration
	GlobalRateMax    int
	GlobalRateWindow time.Duration

	SecurityWebhookURL string
}

// IsTest indica o modo de teste, único sinal que desliga a proteção CSRF.
func (c Config) IsTest() bool { return c.Environment == EnvTest }

// Load lê o .env (se existir) e as variáveis de ambiente, aplicando defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup monta a Config a partir de uma função de lookup; útil em testes.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	e := env{lookup: lookup}

	accessSecret := e.get("JWT_SECRET", "")
	admins := e.getList("ADMIN_EMAILS", nil)
	if single := e.get("ADMIN_EMAIL", ""); single != "" {
		admins = append(admins, single)
	}

	cfg := Config{
		Environment: e.get("APP_ENV", EnvDevelopment),
		Port:        e.get("PORT", "8080"),

		DBHost:       e.get("DB_HOST", "localhost"),
		DBPort:       uint(e.getInt("DB_PORT", 5432)),
		DBName:       e.get("DB_NAME", "sistema"),
		DBSecretID:   e.get("DB_SECRET_ID", ""),
		DBUsername:   e.get("DB_USERNAME", ""),
		DBPassword:   e.get("DB_PASSWORD", ""),
		DBSSLDisable: e.getBool("DB_SSL_MODE_DISABLE", false),

		AccessSecret:  accessSecret,
		RefreshSecret: e.get("JWT_REFRESH_SECRET", accessSecret),
		CSRFSecret:    e.get("CSRF_SECRET", ""),
		AdminEmails:   admins,

		MaxRefreshTokensPerUser: e.getInt("MAX_REFRESH_TOKENS_PER_USER", 5),
		RevokeFamilyOnReuse:     e.getBool("REVOKE_FAMILY_ON_REUSE", false),
		RevokedTokenRetention:   e.getDuration("REVOKED_TOKEN_RETENTION", 30*24*time.Hour),
		TokenCleanupInterval:    e.getDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),
		MigrateLegacyTokens:     e.getBool("MIGRATE_LEGACY_TOKENS", false),

		CookieSecure:       e.getBool("COOKIE_SECURE", false),
		CSRFSessionBinding: strings.ToLower(e.get("CSRF_SESSION_BINDING", "cookie")),
		CORSAllowedOrigins: e.getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		TrustProxy:         e.getBool("TRUST_PROXY", false),

		RedisURL:         e.get("REDIS_URL", ""),
		LoginRateMax:     e.getInt("LOGIN_RATE_MAX", 5),
		LoginRateWindow:  e.getDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
		GlobalRateMax:    e.getInt("GLOBAL_RATE_MAX", 100),
		GlobalRateWindow: e.getDuration("GLOBAL_RATE_WINDOW", 15*time.Minute),

		SecurityWebhookURL: e.get("SECURITY_WEBHOOK_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate falha em configurações que tornariam o processo inseguro.
func (c Config) Validate() error {
	if c.AccessSecret == "" {
		return errors.New("JWT_SECRET não definida")
	}
	if c.RefreshSecret == "" {
		return errors.New("JWT_REFRESH_SECRET não definida")
	}
	if c.CSRFSecret == "" && !c.IsTest() {
		return errors.New("CSRF_SECRET não definida")
	}
	if c.MaxRefreshTokensPerUser < 1 {
		return fmt.Errorf("MAX_REFRESH_TOKENS_PER_USER inválido: %d", c.MaxRefreshTokensPerUser)
	}
	switch c.CSRFSessionBinding {
	case "cookie", "ip":
	default:
		return fmt.Errorf("CSRF_SESSION_BINDING inválido: %q", c.CSRFSessionBinding)
	}
	return nil
}

type env struct {
	lookup func(string) (string, bool)
}

func (e env) get(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e env) getInt(key string, def int) int {
	if v, ok := e.lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func (e env) getDuration(key string, def time.Duration) time.Duration {
	if v, ok := e.lookup(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func (e env) getBool(key string, def bool) bool {
	if v, ok := e.lookup(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func (e env) getList(key string, def []string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
