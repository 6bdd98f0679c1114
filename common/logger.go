package common

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LoggerConfig controls how NewLogger builds a logrus.Logger.
type LoggerConfig struct {
	Level        LogLevel
	JSONFormat   bool
	ReportCaller bool
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{Level: LogLevelInfo, JSONFormat: true, ReportCaller: false}
}

// NewLogger builds a logrus.Logger wired to OutputSplitter so error records
// land on stderr and everything else on stdout.
func NewLogger(config LoggerConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&OutputSplitter{})
	logger.SetReportCaller(config.ReportCaller)

	if config.JSONFormat {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch config.Level {
	case LogLevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LogLevelError:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelFatal:
		logger.SetLevel(logrus.FatalLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// ContextLogger carries a logrus.Logger plus a bag of fields attached to
// every entry it emits.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

func ServiceLogger(serviceName, serviceVersion string) *ContextLogger {
	logger := NewLogger(DefaultLoggerConfig())
	return &ContextLogger{
		logger: logger,
		fields: logrus.Fields{
			"service":         serviceName,
			"service_version": serviceVersion,
			"pid":             os.Getpid(),
		},
	}
}

func (c *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	fields := cloneFields(c.fields)
	fields[key] = value
	return &ContextLogger{logger: c.logger, fields: fields}
}

func (c *ContextLogger) WithFields(extra map[string]interface{}) *ContextLogger {
	fields := cloneFields(c.fields)
	for k, v := range extra {
		fields[k] = v
	}
	return &ContextLogger{logger: c.logger, fields: fields}
}

func (c *ContextLogger) WithError(err error) *ContextLogger {
	return c.WithField("error", err.Error())
}

// WithContext pulls request_id/trace_id/user_id out of ctx, if present, and
// attaches them as fields.
func (c *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	out := c
	for _, key := range []string{"request_id", "trace_id", "user_id"} {
		if v := ctx.Value(key); v != nil {
			out = out.WithField(key, v)
		}
	}
	return out
}

func (c *ContextLogger) Debug(msg string) { c.logger.WithFields(c.fields).Debug(msg) }
func (c *ContextLogger) Info(msg string)  { c.logger.WithFields(c.fields).Info(msg) }
func (c *ContextLogger) Warn(msg string)  { c.logger.WithFields(c.fields).Warn(msg) }
func (c *ContextLogger) Error(msg string) { c.logger.WithFields(c.fields).Error(msg) }
func (c *ContextLogger) Fatal(msg string) { c.logger.WithFields(c.fields).Fatal(msg) }

func cloneFields(in logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func RequestLogger(base *ContextLogger, requestID, method, path string) *ContextLogger {
	return base.WithFields(map[string]interface{}{
		"request_id":  requestID,
		"http_method": method,
		"http_path":   path,
	})
}

// LogOperation runs fn, logging its outcome and duration under operation.
func LogOperation(logger *ContextLogger, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)
	entry := logger.WithFields(map[string]interface{}{
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return err
	}
	entry.Info("operation completed")
	return nil
}

func LogDuration(logger *ContextLogger, operation string) func() {
	start := time.Now()
	return func() {
		logger.WithFields(map[string]interface{}{
			"operation":   operation,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("operation completed")
	}
}

func LogPanic(logger *ContextLogger) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		logger.WithFields(map[string]interface{}{
			"panic":      fmt.Sprintf("%v", r),
			"stacktrace": string(buf[:n]),
		}).Error("panic recovered")
	}
}

func HTTPFields(method, path string, statusCode int, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"http_method":      method,
		"http_path":        path,
		"http_status_code": statusCode,
		"duration_ms":      duration.Milliseconds(),
	}
}

func DatabaseFields(operation, table string, rowsAffected int64, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"db_operation":  operation,
		"db_table":      table,
		"rows_affected": rowsAffected,
		"duration_ms":   duration.Milliseconds(),
	}
}
