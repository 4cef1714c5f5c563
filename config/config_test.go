package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	s, err := Load(nil, "testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, "civicsync", s.MongoDatabase)
	assert.Equal(t, 10, s.IssueDailyLimit)
	assert.Equal(t, 5*time.Minute, s.MentorCacheTTL)
	assert.Equal(t, 3, s.ConflictRetries)
	assert.Equal(t, []string{"http://localhost:3000"}, s.CORSOrigins)
	assert.False(t, s.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")
	t.Setenv("GO_ENV", "production")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MENTOR_CACHE_TTL", "30s")

	s, err := Load(nil, "testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "9090", s.Port)
	assert.True(t, s.IsProduction())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.CORSOrigins)
	assert.Equal(t, 30*time.Second, s.MentorCacheTTL)
}

func TestLoadFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9090")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("port", "8080", "")
	flags.Bool("memory", false, "")
	require.NoError(t, flags.Parse([]string{"--port", "7070", "--memory"}))

	s, err := Load(flags, "testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, "7070", s.Port)
	assert.True(t, s.MemoryStore)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "zero retries", env: map[string]string{"JWT_SECRET": "s", "CONFLICT_RETRIES": "0"}},
		{name: "zero daily limit", env: map[string]string{"JWT_SECRET": "s", "ISSUE_DAILY_LIMIT": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(nil, "testdata/does-not-exist.env")
			assert.Error(t, err)
		})
	}
}
