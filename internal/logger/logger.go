// Package logger provides structured logging for slabkv
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with slabkv-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	// Set global log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Pretty printing for development
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// Create logger
	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "slabkv").
		Logger()

	// Add caller information if requested
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// GetZerolog returns the underlying zerolog logger
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) *zerolog.Event {
	return l.zlog.Fatal().Str("msg", msg)
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WalLogger returns a logger for WAL operations.
func (l *Logger) WalLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "wal").
			Logger(),
	}
}

// EngineLogger returns a logger for KV façade operations.
func (l *Logger) EngineLogger() *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "engine").
			Logger(),
	}
}

// LogEngineOpen logs a successful directory open, with the recovery
// summary that produced the ready-to-serve state.
func (l *Logger) LogEngineOpen(dir string, currentWalID uint64, recoveredBuffers int) {
	l.zlog.Info().
		Str("event", "engine_open").
		Str("dir", dir).
		Uint64("current_wal_id", currentWalID).
		Int("recovered_buffers", recoveredBuffers).
		Msg("slabkv directory opened")
}

// LogRotate logs a WAL rotation.
func (l *Logger) LogRotate(oldID, newID uint64, endOffset int64) {
	l.zlog.Info().
		Str("event", "wal_rotate").
		Uint64("old_wal_id", oldID).
		Uint64("new_wal_id", newID).
		Int64("end_offset", endOffset).
		Msg("WAL rotated")
}

// LogFlushCycle logs one drain of a sealed buffer by the background
// flusher.
func (l *Logger) LogFlushCycle(walPath string, duration time.Duration, ops int, err error) {
	event := l.zlog.Debug().
		Str("event", "flush_cycle").
		Str("wal_path", walPath).
		Dur("duration_ms", duration).
		Int("ops", ops)

	if err != nil {
		event = l.zlog.Error().
			Str("event", "flush_cycle").
			Str("wal_path", walPath).
			Dur("duration_ms", duration).
			Int("ops", ops).
			Err(err)
	}

	event.Msg("flush cycle completed")
}

// LogRecovery logs replay of a single WAL file at open.
func (l *Logger) LogRecovery(walPath string, batches int, sealed bool) {
	l.zlog.Info().
		Str("event", "recovery_replay").
		Str("wal_path", walPath).
		Int("batches", batches).
		Bool("sealed", sealed).
		Msg("WAL file replayed during recovery")
}

// LogBucketExpand logs a hash-bucket growth event.
func (l *Logger) LogBucketExpand(shard, oldEntryNum, newEntryNum int) {
	l.zlog.Debug().
		Str("event", "bucket_expand").
		Int("shard", shard).
		Int("old_entry_num", oldEntryNum).
		Int("new_entry_num", newEntryNum).
		Msg("hash bucket expanded")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = *globalLogger.GetZerolog()
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with defaults if not set
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
