package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"livequiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	LogLevel                string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Game        Game
	NATS        NATS
	Leaderboard Leaderboard
	CORS        CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders the pgx connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode, p.MaxConns)
}

// Redis holds registry and leaderboard storage configuration.
type Redis struct {
	Addr      string `env:"REDIS_ADDR,notEmpty"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize  int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"quiz"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret         string        `env:"JWT_SECRET,notEmpty"`
	PlayerTokenSecret string        `env:"PLAYER_TOKEN_SECRET" envDefault:""`
	Issuer            string        `env:"JWT_ISSUER" envDefault:"livequiz"`
	HostTokenTTL      time.Duration `env:"HOST_TOKEN_TTL" envDefault:"12h"`
	PlayerTokenTTL    time.Duration `env:"PLAYER_TOKEN_TTL" envDefault:"6h"`
}

// Game groups live session and websocket tuning.
type Game struct {
	JoinTimeout       time.Duration `env:"GAME_JOIN_TIMEOUT" envDefault:"10s"`
	CommandTimeout    time.Duration `env:"GAME_COMMAND_TIMEOUT" envDefault:"5s"`
	FinishedRetention time.Duration `env:"GAME_FINISHED_RETENTION" envDefault:"10m"`
	SessionTTL        time.Duration `env:"GAME_SESSION_TTL" envDefault:"12h"`
	PinLength         int           `env:"GAME_PIN_LENGTH" envDefault:"6"`
	QuizCacheTTL      time.Duration `env:"GAME_QUIZ_CACHE_TTL" envDefault:"5m"`
	WriteWait         time.Duration `env:"WS_WRITE_WAIT" envDefault:"10s"`
	PongWait          time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	PingPeriod        time.Duration `env:"WS_PING_PERIOD" envDefault:"54s"`
	SendBuffer        int           `env:"WS_SEND_BUFFER" envDefault:"256"`
}

// NATS configures the outbound game event stream. An empty URL disables publishing.
type NATS struct {
	URL           string        `env:"NATS_URL" envDefault:""`
	StreamName    string        `env:"NATS_STREAM" envDefault:"QUIZ_EVENTS"`
	SubjectPrefix string        `env:"NATS_SUBJECT_PREFIX" envDefault:"quiz.events"`
	MaxAge        time.Duration `env:"NATS_STREAM_MAX_AGE" envDefault:"24h"`
}

// Leaderboard governs the hall of fame and results recorder.
type Leaderboard struct {
	TopN           int `env:"LEADERBOARD_TOP" envDefault:"50"`
	Retain         int `env:"LEADERBOARD_RETAIN" envDefault:"500"`
	RecorderBuffer int `env:"LEADERBOARD_RECORDER_BUFFER" envDefault:"128"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
