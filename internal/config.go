package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	Host      string `env:"HOST,required=true"`
	Port      int    `env:"PORT,required=true"`
	DebugPort int    `env:"DEBUG_PORT"`

	TokenSecret       string        `env:"TOKEN_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	ConnectionLifetime   time.Duration `env:"CONNECTION_LIFETIME,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	DeliveryTimeout      time.Duration `env:"DELIVERY_TIMEOUT,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	ReapInterval         time.Duration `env:"REAP_INTERVAL,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`

	PageSize        int    `env:"PAGE_SIZE,required=true"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,required=true"`
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
