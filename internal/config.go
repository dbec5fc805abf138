package internal

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BadgerGCInterval     time.Duration `env:"BADGER_GC_INTERVAL,default=5m"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	FramesPerSecond      float64       `env:"FRAMES_PER_SECOND,default=20"`
	FrameBurst           int           `env:"FRAME_BURST,default=40"`
	DefaultRooms         string        `env:"DEFAULT_ROOMS,default=general"`
}

// Rooms splits the comma-separated room bootstrap list.
func (c Config) Rooms() []string {
	var rooms []string
	for _, room := range strings.Split(c.DefaultRooms, ",") {
		if trimmed := strings.TrimSpace(room); trimmed != "" {
			rooms = append(rooms, trimmed)
		}
	}
	return rooms
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
