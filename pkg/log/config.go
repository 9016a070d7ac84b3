package log

import (
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level       string `mapstructure:"level"`
	Pretty      bool   `mapstructure:"pretty"`
	ServiceName string `mapstructure:"service_name"`
}

var (
	global zerolog.Logger
	mu     sync.RWMutex
	once   sync.Once
)

func init() {
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// New builds a logger writing to stdout. Pretty switches to the console writer.
func New(cfg Config) zerolog.Logger {
	var w io.Writer = os.Stdout
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return NewWithWriter(cfg, w)
}

// NewWithWriter builds a logger on an arbitrary writer.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.ServiceName != "" {
		logger = logger.With().Str(FieldService, cfg.ServiceName).Logger()
	}
	return logger
}

// Init installs the global logger once and routes the stdlib log package through it.
func Init(cfg Config) {
	once.Do(func() {
		SetGlobal(New(cfg))

		stdlog.SetFlags(0)
		stdlog.SetOutput(L().With().Str("source", "stdlog").Logger())
	})
}

// SetGlobal replaces the global logger.
func SetGlobal(logger zerolog.Logger) {
	mu.Lock()
	global = logger
	mu.Unlock()
}

// L returns the global logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
