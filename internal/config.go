package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	Host     string `env:"HOST,default=0.0.0.0"`
	Port     int    `env:"PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	ReadPolicy      string        `env:"READ_POLICY,default=members"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT,default=5s"`
	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	MaxPageSize     int           `env:"MAX_PAGE_SIZE,default=100"`
	IndexBufferSize int           `env:"INDEX_BUFFER_SIZE,default=1024"`

	ModerationEnabled bool   `env:"MODERATION_ENABLED,default=true"`
	CensoredWordsDir  string `env:"CENSORED_WORDS_DIR"`
	CharReplacement   string `env:"CHARACTER_REPLACEMENT,default=*"`

	CORSAllowedOrigins string        `env:"CORS_ALLOWED_ORIGINS,default=*"`
	SendRateLimit      int           `env:"SEND_RATE_LIMIT,default=60"`
	SendRateWindow     time.Duration `env:"SEND_RATE_WINDOW,default=1m"`
	ConnectionBuffer   int           `env:"CONNECTION_BUFFER_SIZE,default=256"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL,default=interest-chat:events"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if len(config.JWTSecret) < 32 {
		return Config{}, fmt.Errorf("config error: JWT_SECRET must be at least 32 characters")
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
