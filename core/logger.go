package core

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel controls which messages a ProductionLogger emits.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ProductionLogger writes structured logs to stdout. It emits JSON when the
// service runs in a cluster (or when forced) and human-readable text locally.
// Repeated errors with the same message are rate limited to avoid log storms
// when a dependency is down.
type ProductionLogger struct {
	service   string
	level     LogLevel
	jsonMode  bool
	mu        sync.Mutex
	lastError map[string]time.Time
}

// ErrorRateLimitWindow bounds how often an identical error message is logged.
const ErrorRateLimitWindow = 10 * time.Second

// NewProductionLogger creates a logger for the named service.
func NewProductionLogger(service string, level LogLevel, jsonMode bool) *ProductionLogger {
	return &ProductionLogger{
		service:   service,
		level:     level,
		jsonMode:  jsonMode,
		lastError: make(map[string]time.Time),
	}
}

// NewLoggerFromEnv builds a logger from PULSEWARD_LOG_LEVEL and
// PULSEWARD_LOG_FORMAT, switching to JSON automatically inside Kubernetes.
func NewLoggerFromEnv(service string) *ProductionLogger {
	level := ParseLogLevel(os.Getenv("PULSEWARD_LOG_LEVEL"))
	jsonMode := os.Getenv("KUBERNETES_SERVICE_HOST") != ""
	switch strings.ToLower(os.Getenv("PULSEWARD_LOG_FORMAT")) {
	case "json":
		jsonMode = true
	case "text":
		jsonMode = false
	}
	return NewProductionLogger(service, level, jsonMode)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, fields)
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	if l.rateLimited(msg) {
		return
	}
	l.log(LogLevelError, msg, fields)
}

func (l *ProductionLogger) rateLimited(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if last, ok := l.lastError[msg]; ok && now.Sub(last) < ErrorRateLimitWindow {
		return true
	}
	l.lastError[msg] = now
	return false
}

func (l *ProductionLogger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if l.jsonMode {
		entry := map[string]interface{}{
			"timestamp": ts,
			"level":     level.String(),
			"service":   l.service,
			"message":   msg,
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(os.Stdout, string(data))
			return
		}
		// fall through to text on marshal failure
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s: %s", ts, level.String(), l.service, msg)
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	fmt.Fprintln(os.Stdout, b.String())
}
