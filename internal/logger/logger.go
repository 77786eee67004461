package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger so components share one field vocabulary
type Logger struct {
	*zap.Logger
}

// With creates a new Logger with additional fields
func (l *Logger) With(fields ...zapcore.Field) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
	}
}

// Component tags every entry with the owning component
func (l *Logger) Component(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With(zap.String("component", component)),
	}
}

// ForSymbol scopes entries to one trading pair
func (l *Logger) ForSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// New creates a logger configured from LOG_LEVEL and LOG_FORMAT
func New() *Logger {
	return NewWithWriter(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stderr)
}

// NewWithWriter builds a logger writing to w. format is "json" or console.
func NewWithWriter(level, format string, w io.Writer) *Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
	encoderCfg.CallerKey = "caller"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(format) {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), parseLevel(level))

	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field creation helpers

// Symbol is the field every component uses for a trading pair
func Symbol(symbol string) zapcore.Field {
	return zap.String("symbol", symbol)
}

// RunID tags entries of one collector run
func RunID(id string) zapcore.Field {
	return zap.String("run_id", id)
}

func String(key, val string) zapcore.Field {
	return zap.String(key, val)
}

func Strings(key string, val []string) zapcore.Field {
	return zap.Strings(key, val)
}

func Int(key string, val int) zapcore.Field {
	return zap.Int(key, val)
}

func Int64(key string, val int64) zapcore.Field {
	return zap.Int64(key, val)
}

func Float64(key string, val float64) zapcore.Field {
	return zap.Float64(key, val)
}

func Bool(key string, val bool) zapcore.Field {
	return zap.Bool(key, val)
}

func Error(err error) zapcore.Field {
	return zap.Error(err)
}

func Any(key string, val any) zapcore.Field {
	return zap.Any(key, val)
}

func Duration(key string, val time.Duration) zapcore.Field {
	return zap.Duration(key, val)
}

func Time(key string, val time.Time) zapcore.Field {
	return zap.Time(key, val)
}
