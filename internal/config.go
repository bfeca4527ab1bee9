package internal

import (
	"fmt"
	"time"
)

// Config is the relay server environment.
type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=4242"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=100ms"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	MaxLineBytes         int           `env:"MAX_LINE_BYTES,default=8192"`
	MalformedTolerance   int           `env:"MALFORMED_TOLERANCE,default=5"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	ModerationEnabled    bool          `env:"MODERATION_ENABLED,default=true"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
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
