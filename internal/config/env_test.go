package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestEnvFromLookup_Defaults(t *testing.T) {
	env, err := EnvFromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "3000", env.AppPort)
	assert.Equal(t, 600, env.MaxWidth)
	assert.Equal(t, "https://justadudewhohacks.github.io/face-api.js/models", env.ModelURL)
	assert.Equal(t, DefaultRuntimeURL, env.RuntimeURL)
	assert.Equal(t, 30*time.Second, env.DetectTimeout)
	assert.Equal(t, time.Minute, env.LoadTimeout)
	assert.Equal(t, "memory", env.SessionStore)
	assert.Equal(t, time.Hour, env.SessionTTL)
	assert.False(t, env.ArchiveEnabled())
}

func TestEnvFromLookup_Overrides(t *testing.T) {
	env, err := EnvFromLookup(lookupFrom(map[string]string{
		"APP_PORT":        "8080",
		"MAX_WIDTH":       "800",
		"DETECT_TIMEOUT":  "45",
		"SESSION_TTL":     "15m",
		"SESSION_STORE":   "redis",
		"REDIS_ADDRESS":   "localhost:6379",
		"AWS_BUCKET_NAME": "faces",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", env.AppPort)
	assert.Equal(t, 800, env.MaxWidth)
	assert.Equal(t, 45*time.Second, env.DetectTimeout)
	assert.Equal(t, 15*time.Minute, env.SessionTTL)
	assert.Equal(t, "redis", env.SessionStore)
	assert.True(t, env.ArchiveEnabled())
}

func TestEnvFromLookup_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad width":         {"MAX_WIDTH": "wide"},
		"zero width":        {"MAX_WIDTH": "0"},
		"bad duration":      {"DETECT_TIMEOUT": "soon"},
		"unknown store":     {"SESSION_STORE": "postgres"},
		"redis w/o address": {"SESSION_STORE": "redis"},
		"bad port":          {"APP_PORT": "http"},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := EnvFromLookup(lookupFrom(values))
			assert.Error(t, err)
		})
	}
}
