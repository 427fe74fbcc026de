package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"mathbattle/internal/battle"
	"mathbattle/internal/gamedata"
)

type Config struct {
	Host           string
	Port           string
	DatabaseURL    string
	LogLevel       string
	LogFormat      string
	PublicURL      string
	AllowedOrigins []string

	AnswerTime     int // seconds
	ParentPenalty  int // seconds
	MaxScore       int
	TickMillis     int
	TimerEnabled   bool
	DefaultMode    string
	RoomIdleTTL    int // minutes
	OutboundBuffer int
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("loading .env file")
	}

	cfg := Config{
		Host:           getEnv("HOST", "0.0.0.0"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		PublicURL:      strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		AnswerTime:     getEnvInt("ANSWER_TIME", 20),
		ParentPenalty:  getEnvInt("PARENT_PENALTY", 10),
		MaxScore:       getEnvInt("MAX_SCORE", 30),
		TickMillis:     getEnvInt("TICK_MS", 1000),
		TimerEnabled:   getEnvBool("TIMER_ENABLED", true),
		DefaultMode:    getEnv("DEFAULT_MODE", string(battle.Shared)),
		RoomIdleTTL:    getEnvInt("ROOM_IDLE_TTL", 10),
		OutboundBuffer: getEnvInt("OUTBOUND_BUFFER", 64),
	}
	return cfg
}

// Game converts the environment settings into registry tuning. Values that
// make no sense fall back to gamedata defaults.
func (c Config) Game() gamedata.Config {
	g := gamedata.DefaultConfig()
	if c.AnswerTime > 0 {
		g.AnswerTime = time.Duration(c.AnswerTime) * time.Second
	}
	if c.ParentPenalty >= 0 {
		g.ParentPenalty = time.Duration(c.ParentPenalty) * time.Second
	}
	// Parents must keep a window to answer in.
	if g.ParentPenalty >= g.AnswerTime {
		g.ParentPenalty = g.AnswerTime / 2
	}
	if c.MaxScore >= 0 {
		g.MaxScore = c.MaxScore
	}
	if c.TickMillis > 0 {
		g.TickInterval = time.Duration(c.TickMillis) * time.Millisecond
	}
	g.TimerEnabled = c.TimerEnabled
	if m, ok := battle.ParseMode(c.DefaultMode); ok {
		g.DefaultMode = m
	}
	if c.RoomIdleTTL > 0 {
		g.RoomIdleTTL = time.Duration(c.RoomIdleTTL) * time.Minute
	}
	if c.OutboundBuffer > 0 {
		g.OutboundBuffer = c.OutboundBuffer
	}
	return g
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
