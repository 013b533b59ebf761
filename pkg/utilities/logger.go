package utilities

import (
	"os"
	"strconv"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process logger. File is optional; when set, logs are
// also written to a file rotated every RotationTime and kept for MaxAge.
type Config struct {
	Level        string
	Dev          bool
	Service      string
	File         string
	MaxAge       time.Duration
	RotationTime time.Duration
}

// ConfigFromEnv reads LOG_* variables.
func ConfigFromEnv() Config {
	dev := os.Getenv("LOG_DEV") == "1"
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		if dev {
			lvl = "debug"
		} else {
			lvl = "info"
		}
	}
	svc := os.Getenv("LOG_SERVICE")
	if svc == "" {
		svc = "service-integrity-go"
	}
	return Config{
		Level:        lvl,
		Dev:          dev,
		Service:      svc,
		File:         os.Getenv("LOG_FILE"),
		MaxAge:       hoursFromEnv("LOG_MAX_AGE_HOURS", 7*24),
		RotationTime: hoursFromEnv("LOG_ROTATE_HOURS", 24),
	}
}

func hoursFromEnv(key string, def int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Hour
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(def) * time.Hour
	}
	return time.Duration(n) * time.Hour
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init builds the process logger: console output in dev mode, JSON on
// stdout (plus the rotating file, if any) otherwise.
func Init(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	var fields []zap.Field
	if cfg.Service != "" {
		fields = append(fields, zap.String("service", cfg.Service))
	}
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build(zap.Fields(fields...))
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	sink := zapcore.AddSync(os.Stdout)
	if cfg.File != "" {
		rl, err := rotatelogs.New(
			cfg.File+".%Y%m%d%H",
			rotatelogs.WithLinkName(cfg.File),
			rotatelogs.WithMaxAge(cfg.MaxAge),
			rotatelogs.WithRotationTime(cfg.RotationTime),
			rotatelogs.WithClock(rotatelogs.UTC),
		)
		if err != nil {
			return nil, err
		}
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(rl))
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel), zap.Fields(fields...)), nil
}
