package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ringneck/libwebphone/internal/errors"
)

const (
	// traceLevelValue sits below slog.LevelDebug (-4)
	traceLevelValue = slog.Level(-8)

	// floatPrecisionRatio rounds floats to 3 decimal places in log output
	floatPrecisionRatio = 1000.0

	moduleKey  = "module"
	traceIDKey = "trace_id"
)

var (
	globalLogger   *CentralLogger
	globalLoggerMu sync.Mutex
)

// SetGlobal sets the global CentralLogger instance.
// Call once during startup after configuration is loaded.
func SetGlobal(cl *CentralLogger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cl
}

// Global returns the global CentralLogger instance, creating a console-only
// fallback if SetGlobal has not been called.
func Global() *CentralLogger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger
	}

	globalLogger = &CentralLogger{
		config: &LoggingConfig{
			DefaultLevel: DefaultLogLevel,
			Console:      &ConsoleOutput{Enabled: true, Level: DefaultLogLevel},
		},
		timezone:      time.Local,
		moduleWriters: make(map[string]*bufferedFileWriter),
		moduleLevels:  make(map[string]slog.Level),
		baseHandler:   newTextHandler(os.Stderr, slog.LevelInfo, time.Local),
	}
	return globalLogger
}

type loggerContextKey struct{ name string }

// TraceIDKey is the context key for trace IDs. Use WithTraceID to set values.
var TraceIDKey = loggerContextKey{traceIDKey}

// WithTraceID returns a new context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// CentralLogger manages module-aware logging with flexible routing
type CentralLogger struct {
	config        *LoggingConfig
	timezone      *time.Location
	baseHandler   slog.Handler
	mainWriter    *bufferedFileWriter
	moduleWriters map[string]*bufferedFileWriter
	moduleLevels  map[string]slog.Level
	mu            sync.RWMutex
}

// NewCentralLogger creates a centralized logger with module routing
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	var tz *time.Location
	switch cfg.Timezone {
	case "", "Local":
		tz = time.Local
	default:
		var err error
		tz, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)
		}
	}

	cl := &CentralLogger{
		config:        cfg,
		timezone:      tz,
		moduleWriters: make(map[string]*bufferedFileWriter),
		moduleLevels:  make(map[string]slog.Level),
	}

	for module, levelStr := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseLogLevel(levelStr)
	}

	if err := cl.createBaseHandler(os.Stderr); err != nil {
		return nil, fmt.Errorf("failed to create base handler: %w", err)
	}

	for module, moduleConfig := range cfg.ModuleOutputs {
		if !moduleConfig.Enabled {
			continue
		}
		if err := ensureFileDirectory(moduleConfig.FilePath); err != nil {
			cl.closeAllWriters()
			return nil, fmt.Errorf("failed to create directory for module %s: %w", module, err)
		}
		writer, err := newBufferedFileWriter(moduleConfig.FilePath)
		if err != nil {
			cl.closeAllWriters()
			return nil, fmt.Errorf("failed to create log writer for module %s: %w", module, err)
		}
		cl.moduleWriters[module] = writer
	}

	return cl, nil
}

// NewWriterLogger returns a CentralLogger that writes text records to w.
// Tests use it with a bytes.Buffer or io.Discard.
func NewWriterLogger(w io.Writer, level LogLevel) *CentralLogger {
	return &CentralLogger{
		config: &LoggingConfig{
			DefaultLevel: string(level),
			Console:      &ConsoleOutput{Enabled: true, Level: string(level)},
		},
		timezone:      time.UTC,
		baseHandler:   newTextHandler(w, parseSlogLevel(level), time.UTC),
		moduleWriters: make(map[string]*bufferedFileWriter),
		moduleLevels:  make(map[string]slog.Level),
	}
}

func (cl *CentralLogger) createBaseHandler(console io.Writer) error {
	var handlers []slog.Handler

	if cl.config.Console != nil && cl.config.Console.Enabled {
		handlers = append(handlers, newTextHandler(console, parseLogLevel(cl.config.Console.Level), cl.timezone))
	}

	if cl.config.FileOutput != nil && cl.config.FileOutput.Enabled {
		if err := ensureFileDirectory(cl.config.FileOutput.Path); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		writer, err := newBufferedFileWriter(cl.config.FileOutput.Path)
		if err != nil {
			return fmt.Errorf("failed to create log writer: %w", err)
		}
		cl.mainWriter = writer
		handlers = append(handlers, slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: parseLogLevel(cl.config.FileOutput.Level),
		}))
	}

	if len(handlers) == 0 {
		handlers = append(handlers, newTextHandler(console, parseLogLevel(cl.config.DefaultLevel), cl.timezone))
	}

	if len(handlers) == 1 {
		cl.baseHandler = handlers[0]
	} else {
		cl.baseHandler = newMultiWriterHandler(handlers...)
	}
	return nil
}

// Module returns a logger scoped to a specific module
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()

	moduleConfig, hasModuleConfig := cl.config.ModuleOutputs[name]
	moduleLevel := cl.getModuleLevelLocked(name)
	if hasModuleConfig && moduleConfig.Level != "" {
		moduleLevel = parseLogLevel(moduleConfig.Level)
	}

	var handlers []slog.Handler
	if hasModuleConfig && moduleConfig.Enabled {
		if moduleWriter, ok := cl.moduleWriters[name]; ok {
			handlers = append(handlers, slog.NewJSONHandler(moduleWriter, &slog.HandlerOptions{Level: moduleLevel}))
		}
		if moduleConfig.ConsoleAlso && cl.config.Console != nil && cl.config.Console.Enabled {
			handlers = append(handlers, newTextHandler(os.Stderr, moduleLevel, cl.timezone))
		}
	}
	if len(handlers) == 0 {
		handlers = append(handlers, cl.baseHandler)
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = newMultiWriterHandler(handlers...)
	}

	return &moduleLogger{
		module: name,
		logger: slog.New(handler),
		level:  moduleLevel,
	}
}

func (cl *CentralLogger) getModuleLevelLocked(module string) slog.Level {
	if level, ok := cl.moduleLevels[module]; ok {
		return level
	}
	return parseLogLevel(cl.config.DefaultLevel)
}

// Close closes all file writers
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.closeAllWritersLocked()
}

func (cl *CentralLogger) closeAllWriters() {
	_ = cl.closeAllWritersLocked()
}

func (cl *CentralLogger) closeAllWritersLocked() error {
	var errs []error
	if cl.mainWriter != nil {
		if err := cl.mainWriter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close main log writer: %w", err))
		}
		cl.mainWriter = nil
	}
	for module, writer := range cl.moduleWriters {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close log writer for module %s: %w", module, err))
		}
	}
	cl.moduleWriters = nil
	return errors.Join(errs...)
}

// Flush writes buffered records to the OS
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	var errs []error
	if cl.mainWriter != nil {
		if err := cl.mainWriter.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush main log writer: %w", err))
		}
	}
	for module, writer := range cl.moduleWriters {
		if err := writer.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush log writer for module %s: %w", module, err))
		}
	}
	return errors.Join(errs...)
}

func ensureFileDirectory(filePath string) error {
	if filePath == "" {
		return nil
	}
	dir := filepath.Dir(filePath)
	if dir == "." || dir == filePath {
		return nil
	}
	const dirPermissions = 0o700
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	return parseSlogLevel(LogLevel(level))
}

func parseSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelTrace:
		return traceLevelValue
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// moduleLogger implements Logger for a specific module
type moduleLogger struct {
	module string
	logger *slog.Logger
	level  slog.Level
	fields []Field
}

// Module creates a sub-module logger with its own copy of the accumulated fields.
func (m *moduleLogger) Module(name string) Logger {
	if m == nil {
		return nil
	}
	return &moduleLogger{
		module: m.module + "." + name,
		logger: m.logger,
		level:  m.level,
		fields: slices.Clone(m.fields),
	}
}

func (m *moduleLogger) Trace(msg string, fields ...Field) {
	if m == nil || m.level > traceLevelValue {
		return
	}
	m.log(traceLevelValue, msg, fields...)
}

func (m *moduleLogger) Debug(msg string, fields ...Field) {
	if m == nil || m.level > slog.LevelDebug {
		return
	}
	m.log(slog.LevelDebug, msg, fields...)
}

func (m *moduleLogger) Info(msg string, fields ...Field) {
	if m == nil || m.level > slog.LevelInfo {
		return
	}
	m.log(slog.LevelInfo, msg, fields...)
}

func (m *moduleLogger) Warn(msg string, fields ...Field) {
	if m == nil || m.level > slog.LevelWarn {
		return
	}
	m.log(slog.LevelWarn, msg, fields...)
}

func (m *moduleLogger) Error(msg string, fields ...Field) {
	if m == nil {
		return
	}
	m.log(slog.LevelError, msg, fields...)
}

func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	if m == nil {
		return
	}
	lvl := parseSlogLevel(level)
	if m.level > lvl {
		return
	}
	m.log(lvl, msg, fields...)
}

func (m *moduleLogger) With(fields ...Field) Logger {
	if m == nil {
		return nil
	}
	return &moduleLogger{
		module: m.module,
		logger: m.logger,
		level:  m.level,
		fields: slices.Concat(m.fields, fields),
	}
}

func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if m == nil {
		return nil
	}
	if ctx == nil {
		return m
	}
	traceID, _ := ctx.Value(TraceIDKey).(string)
	if traceID == "" {
		return m
	}
	return m.With(String(traceIDKey, traceID))
}

// Flush is a no-op; module loggers do not own writers
func (m *moduleLogger) Flush() error {
	return nil
}

func (m *moduleLogger) log(level slog.Level, msg string, fields ...Field) {
	attrs := make([]slog.Attr, 0, 1+len(m.fields)+len(fields))
	if m.module != "" {
		attrs = append(attrs, slog.String(moduleKey, m.module))
	}
	for i := range m.fields {
		attrs = append(attrs, fieldToAttr(m.fields[i]))
	}
	for i := range fields {
		attrs = append(attrs, fieldToAttr(fields[i]))
	}
	m.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func roundFloat(val float64) float64 {
	return math.Round(val*floatPrecisionRatio) / floatPrecisionRatio
}

func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float32:
		return slog.Float64(f.Key, roundFloat(float64(v)))
	case float64:
		return slog.Float64(f.Key, roundFloat(v))
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}
