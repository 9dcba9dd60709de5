package internal

import "time"

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	// Per-connection outbound event buffer; a full buffer drops pushes.
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,required=true"`
	// Presence transition channel between the registry and its worker.
	PresenceBufferSize int           `env:"PRESENCE_BUFFER_SIZE,required=true"`
	SinkTimeout        time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,required=true"`
	LimitMessages      *int          `env:"LIMIT_MESSAGES"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}
