package logging

import (
	"context"
	"time"

	"graphflow/internal/xerrors"
)

// LogField provides a structured way to add fields to logs
type LogField struct {
	Key   string
	Value interface{}
}

// EnhancedLogger wraps the existing StructuredLogger with additional utilities
type EnhancedLogger struct {
	Logger
	component string
}

// NewEnhancedLogger creates an enhanced logger for a component
func NewEnhancedLogger(component string) *EnhancedLogger {
	baseLogger := NewLogger(INFO)
	return &EnhancedLogger{
		Logger:    baseLogger.WithComponent(component),
		component: component,
	}
}

// WithContext creates a logger with context information
func (l *EnhancedLogger) WithContext(ctx context.Context) *EnhancedLogger {
	traceID := getTraceIDFromContext(ctx)
	newLogger := l.Logger.WithTraceID(traceID)

	return &EnhancedLogger{
		Logger:    newLogger,
		component: l.component,
	}
}

// WithError logs an error with enhanced error information
func (l *EnhancedLogger) WithError(err error) *EnhancedLogger {
	if err == nil {
		return l
	}

	// If it's a query error, extract its code and operation.
	if qerr, ok := err.(*xerrors.QueryError); ok {
		l.Error("Query error occurred",
			"error", err.Error(),
			"code", string(qerr.Code),
			"op", qerr.Op,
			"trace_id", qerr.TraceID,
		)
	} else {
		l.Error("Error occurred", "error", err.Error())
	}

	return l
}

// LogOperation logs the start and completion of an operation
func (l *EnhancedLogger) LogOperation(operation string, fn func() error) error {
	startTime := time.Now()
	l.Info("Starting operation", "operation", operation)

	err := fn()
	duration := time.Since(startTime)

	if err != nil {
		l.Error("Operation failed",
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return err
	}

	l.Info("Operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// LogSlowOperation logs operations that exceed expected duration
func (l *EnhancedLogger) LogSlowOperation(operation string, duration, expected time.Duration) {
	l.Warn("Slow operation detected",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"expected_ms", expected.Milliseconds(),
		"slowdown_factor", float64(duration)/float64(expected),
	)
}

// getTraceIDFromContext extracts trace ID from context
func getTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value("trace_id").(string); ok {
		return traceID
	}
	// Try the logging package's trace ID key
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// Package-level loggers, one per component that logs in this process.
// Components bind these directly instead of each calling WithComponent on
// its own, so the component name set lives in exactly one place.
var (
	EngineLogger     = NewEnhancedLogger("engine")
	PlannerLogger    = NewEnhancedLogger("planner")
	DispatcherLogger = NewEnhancedLogger("dispatcher")
	CatalogLogger    = NewEnhancedLogger("catalog")
	HTTPAPILogger    = NewEnhancedLogger("httpapi")
	DebugAPILogger   = NewEnhancedLogger("debugapi")
	MCPToolsLogger   = NewEnhancedLogger("mcptools")
)
