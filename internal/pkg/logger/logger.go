package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes structured JSON lines with optional PII redaction.
type Logger struct {
	level     Level
	mu        sync.Mutex
	out       io.Writer
	redactPII bool
	fields    []interface{}
	root      *Logger
}

var defaultLogger = &Logger{level: INFO, out: os.Stderr, redactPII: true}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level = l }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.redactPII = r }

// SetOutput redirects the default logger. Tests use it to capture entries.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defaultLogger.out = w
	defaultLogger.mu.Unlock()
}

// With returns a logger that adds the given key-value pairs to every entry.
// It follows later level, output and redaction changes of the default logger.
func With(fields ...interface{}) *Logger {
	return defaultLogger.With(fields...)
}

func (l *Logger) With(fields ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{root: l.base(), fields: merged}
}

func (l *Logger) base() *Logger {
	if l.root != nil {
		return l.root
	}
	return l
}

func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }
func Info(msg string, fields ...interface{})  { defaultLogger.log(INFO, msg, fields...) }
func Warn(msg string, fields ...interface{})  { defaultLogger.log(WARN, msg, fields...) }
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	r := l.base()
	if level < r.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	all := fields
	if len(l.fields) > 0 {
		all = append(append([]interface{}{}, l.fields...), fields...)
	}
	for i := 0; i < len(all)-1; i += 2 {
		key := fmt.Sprintf("%v", all[i])
		var val string
		switch v := all[i+1].(type) {
		case error:
			val = v.Error()
		case fmt.Stringer:
			val = v.String()
		default:
			val = fmt.Sprintf("%v", v)
		}
		if r.redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	r.mu.Lock()
	fmt.Fprintln(r.out, string(data))
	r.mu.Unlock()
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || key == "recipient" || key == "to" {
		return RedactEmail(val)
	}
	// unsubscribe tokens are bearer credentials
	if strings.Contains(key, "token") {
		return "***"
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
