package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings is the process configuration, read from the environment after
// an optional .env file.
type Settings struct {
	Port            string
	Environment     string
	Domain          string
	CORSOrigins     []string
	MongoURI        string
	MongoDatabase   string
	RedisAddress    string
	RedisPassword   string
	IssueLimitQueue string
	IssueDailyLimit int
	JWTSecret       string
	MentorCacheTTL  time.Duration
	LogLevel        string
	ConflictRetries int
	MemoryStore     bool
}

// IsProduction reports whether GO_ENV is production.
func (s *Settings) IsProduction() bool {
	return s.Environment == "production"
}

// flagKeys maps config keys to the command-line flags that may override them.
var flagKeys = map[string]string{
	"PORT":         "port",
	"MEMORY_STORE": "memory",
	"LOG_LEVEL":    "log-level",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MONGODB_DATABASE", "civicsync")
	v.SetDefault("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue-limit")
	v.SetDefault("ISSUE_DAILY_LIMIT", 10)
	v.SetDefault("MENTOR_CACHE_TTL", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CONFLICT_RETRIES", 3)
	v.SetDefault("MEMORY_STORE", false)
	return v
}

// Load reads settings. Flags in flags override the environment for the keys
// bound in flagKeys; flags may be nil. envFiles are passed to godotenv and a
// missing file is not an error.
func Load(flags *pflag.FlagSet, envFiles ...string) (*Settings, error) {
	_ = godotenv.Load(envFiles...)

	v := newViper()
	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	s := &Settings{
		Port:            v.GetString("PORT"),
		Environment:     v.GetString("GO_ENV"),
		Domain:          v.GetString("DOMAIN"),
		CORSOrigins:     splitList(v.GetString("CORS_ORIGINS")),
		MongoURI:        v.GetString("MONGODB_URI"),
		MongoDatabase:   v.GetString("MONGODB_DATABASE"),
		RedisAddress:    v.GetString("REDIS_ADDRESS"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		IssueLimitQueue: v.GetString("REDIS_QUEUE_FOR_ISSUE_LIMIT"),
		IssueDailyLimit: v.GetInt("ISSUE_DAILY_LIMIT"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		MentorCacheTTL:  v.GetDuration("MENTOR_CACHE_TTL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		ConflictRetries: v.GetInt("CONFLICT_RETRIES"),
		MemoryStore:     v.GetBool("MEMORY_STORE"),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	if s.ConflictRetries < 1 {
		return fmt.Errorf("CONFLICT_RETRIES must be at least 1, got %d", s.ConflictRetries)
	}
	if s.IssueDailyLimit < 1 {
		return fmt.Errorf("ISSUE_DAILY_LIMIT must be at least 1, got %d", s.IssueDailyLimit)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
