// Package logging provides config-driven categorized file-based logging for
// the forest server. Logs are written to <data-root>/logs/ with a separate
// file per category. Logging is controlled by debug_mode in the forest
// config - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/component.
type Category string

const (
	CategoryBoot       Category = "boot"       // process startup/shutdown
	CategoryKV         Category = "kv"         // KV Store (C1)
	CategoryVector     Category = "vector"     // Vector Index (C2)
	CategoryEmbedding  Category = "embedding"  // Embedding Service (C3)
	CategoryBridge     Category = "bridge"     // Intelligence Bridge (C4)
	CategoryHTAEngine  Category = "htaengine"  // Schema HTA Engine (C5)
	CategoryHTAStore   Category = "htastore"   // HTA Store (C6)
	CategoryOnboarding Category = "onboarding" // Gated Onboarding (C7)
	CategorySelector   Category = "selector"   // Task Selector (C8)
	CategoryPipeline   Category = "pipeline"   // Pipeline Presenter (C9)
	CategoryEvolver    Category = "evolver"    // Strategy Evolver (C10)
	CategorySupervisor Category = "supervisor" // Background Supervisor (C11)
	CategoryRouter     Category = "router"     // Tool Router (C12)
	CategoryProject    Category = "project"    // project record management
	CategorySession    Category = "session"    // server session lifecycle
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig to avoid
// circular imports.
type loggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

// configFile is the shape of <data-root>/config.json relevant to logging.
type configFile struct {
	Logging loggingConfig `json:"logging"`
}

// StructuredLogEntry is a JSON log entry.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	RequestID string                 `json:"req,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers      = make(map[Category]*Logger)
	loggersMu    sync.RWMutex
	logsDir      string
	dataRoot     string
	config       loggingConfig
	configMu     sync.RWMutex
	logLevel     int
)

const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config. Called once at
// startup with the server's data root (FOREST_DATA_DIR).
func Initialize(root string) error {
	if root == "" {
		return fmt.Errorf("data root required")
	}

	dataRoot = root
	logsDir = filepath.Join(dataRoot, "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	if !config.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("forest logging initialized")
	boot.Info("data root: %s", dataRoot)
	boot.Info("debug mode: %v, level: %s", config.DebugMode, config.Level)
	return nil
}

func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(dataRoot, "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			config.DebugMode = false
			return nil
		}
		return err
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	config = cf.Logging

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	return nil
}

// ReloadConfig reloads the logging config from disk.
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode reports whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled reports whether a category is enabled.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category. It returns a
// no-op logger when debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("debug", msg)
		return
	}
	l.logger.Printf("[DEBUG] %s", msg)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("info", msg)
		return
	}
	l.logger.Printf("[INFO] %s", msg)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("warn", msg)
		return
	}
	l.logger.Printf("[WARN] %s", msg)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("error", msg)
		return
	}
	l.logger.Printf("[ERROR] %s", msg)
}

// CloseAll closes all open log files. Call at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Timer measures operation duration and logs it at Debug level.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the elapsed duration.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold, else debug.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}

// =============================================================================
// Convenience functions for the hottest categories. Other categories are
// logged via Get(category).Info/Debug/Warn/Error directly.
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{})  { Get(CategoryBoot).Debug(format, args...) }
func BootError(format string, args ...interface{})  { Get(CategoryBoot).Error(format, args...) }

func KV(format string, args ...interface{})        { Get(CategoryKV).Info(format, args...) }
func KVDebug(format string, args ...interface{})   { Get(CategoryKV).Debug(format, args...) }
func KVError(format string, args ...interface{})   { Get(CategoryKV).Error(format, args...) }

func Vector(format string, args ...interface{})      { Get(CategoryVector).Info(format, args...) }
func VectorDebug(format string, args ...interface{}) { Get(CategoryVector).Debug(format, args...) }
func VectorWarn(format string, args ...interface{})  { Get(CategoryVector).Warn(format, args...) }
func VectorError(format string, args ...interface{}) { Get(CategoryVector).Error(format, args...) }

func Embedding(format string, args ...interface{})      { Get(CategoryEmbedding).Info(format, args...) }
func EmbeddingDebug(format string, args ...interface{}) { Get(CategoryEmbedding).Debug(format, args...) }
func EmbeddingError(format string, args ...interface{}) { Get(CategoryEmbedding).Error(format, args...) }

func Bridge(format string, args ...interface{})      { Get(CategoryBridge).Info(format, args...) }
func BridgeDebug(format string, args ...interface{}) { Get(CategoryBridge).Debug(format, args...) }
func BridgeError(format string, args ...interface{}) { Get(CategoryBridge).Error(format, args...) }

func HTAEngine(format string, args ...interface{})      { Get(CategoryHTAEngine).Info(format, args...) }
func HTAEngineDebug(format string, args ...interface{}) { Get(CategoryHTAEngine).Debug(format, args...) }

func HTAStore(format string, args ...interface{})      { Get(CategoryHTAStore).Info(format, args...) }
func HTAStoreDebug(format string, args ...interface{}) { Get(CategoryHTAStore).Debug(format, args...) }

func Onboarding(format string, args ...interface{})      { Get(CategoryOnboarding).Info(format, args...) }
func OnboardingDebug(format string, args ...interface{}) { Get(CategoryOnboarding).Debug(format, args...) }

func Supervisor(format string, args ...interface{})      { Get(CategorySupervisor).Info(format, args...) }
func SupervisorDebug(format string, args ...interface{}) { Get(CategorySupervisor).Debug(format, args...) }
func SupervisorError(format string, args ...interface{}) { Get(CategorySupervisor).Error(format, args...) }

func Router(format string, args ...interface{})      { Get(CategoryRouter).Info(format, args...) }
func RouterDebug(format string, args ...interface{}) { Get(CategoryRouter).Debug(format, args...) }
func RouterError(format string, args ...interface{}) { Get(CategoryRouter).Error(format, args...) }
