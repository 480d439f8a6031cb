package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"JWT_SECRET":  "access",
		"CSRF_SECRET": "csrf",
	}))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "access", cfg.RefreshSecret, "refresh secret falls back to the access secret")
	assert.Equal(t, 5, cfg.MaxRefreshTokensPerUser)
	assert.Equal(t, 5, cfg.LoginRateMax)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateWindow)
	assert.Equal(t, 100, cfg.GlobalRateMax)
	assert.Equal(t, "cookie", cfg.CSRFSessionBinding)
	assert.Equal(t, uint(5432), cfg.DBPort)
	assert.False(t, cfg.IsTest())
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"APP_ENV":                     "test",
		"JWT_SECRET":                  "access",
		"JWT_REFRESH_SECRET":          "refresh",
		"ADMIN_EMAILS":                "a@x.com, b@x.com",
		"ADMIN_EMAIL":                 "c@x.com",
		"MAX_REFRESH_TOKENS_PER_USER": "3",
		"LOGIN_RATE_WINDOW":           "1m",
		"COOKIE_SECURE":               "true",
		"CSRF_SESSION_BINDING":        "IP",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsTest())
	assert.Equal(t, "refresh", cfg.RefreshSecret)
	assert.Equal(t, []string{"a@x.com", "b@x.com", "c@x.com"}, cfg.AdminEmails)
	assert.Equal(t, 3, cfg.MaxRefreshTokensPerUser)
	assert.Equal(t, time.Minute, cfg.LoginRateWindow)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "ip", cfg.CSRFSessionBinding)
}

func TestFromLookup_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret":  {"CSRF_SECRET": "csrf"},
		"missing csrf secret": {"JWT_SECRET": "access"},
		"bad cap":             {"JWT_SECRET": "a", "CSRF_SECRET": "c", "MAX_REFRESH_TOKENS_PER_USER": "0"},
		"bad binding":         {"JWT_SECRET": "a", "CSRF_SECRET": "c", "CSRF_SESSION_BINDING": "header"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(env))
			require.Error(t, err)
		})
	}
}

func TestFromLookup_TestModeNeedsNoCSRFSecret(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{"APP_ENV": "test", "JWT_SECRET": "a"}))
	require.NoError(t, err)
}
