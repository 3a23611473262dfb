package testdoubles

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/pipelined-commandbus-go/commandbus"
)

// Log levels as recorded by LoggerSpy.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LoggerSpy captures calls to both the plain and the contextual logger interface.
type LoggerSpy struct {
	mu      sync.Mutex
	records []SpyLogRecord
}

// SpyLogRecord represents a recorded log call. Context is only set for the contextual methods.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

func (s *LoggerSpy) record(record SpyLogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.Args = append([]any(nil), record.Args...)
	s.records = append(s.records, record)
}

// Debug implements the Logger interface for testing.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelDebug, Message: msg, Args: args})
}

// Info implements the Logger interface for testing.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelInfo, Message: msg, Args: args})
}

// Warn implements the Logger interface for testing.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelWarn, Message: msg, Args: args})
}

// Error implements the Logger interface for testing.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelError, Message: msg, Args: args})
}

// DebugContext implements the ContextualLogger interface for testing.
func (s *LoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelDebug, Message: msg, Args: args, Context: ctx})
}

// InfoContext implements the ContextualLogger interface for testing.
func (s *LoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelInfo, Message: msg, Args: args, Context: ctx})
}

// WarnContext implements the ContextualLogger interface for testing.
func (s *LoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelWarn, Message: msg, Args: args, Context: ctx})
}

// ErrorContext implements the ContextualLogger interface for testing.
func (s *LoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelError, Message: msg, Args: args, Context: ctx})
}

// Records returns a copy of all recorded log calls.
func (s *LoggerSpy) Records() []SpyLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyLogRecord(nil), s.records...)
}

// RecordsAt returns the recorded log calls of one level.
func (s *LoggerSpy) RecordsAt(level string) []SpyLogRecord {
	var matching []SpyLogRecord

	for _, record := range s.Records() {
		if record.Level == level {
			matching = append(matching, record)
		}
	}

	return matching
}

// HasLog checks if a log with the specified level and message exists.
func (s *LoggerSpy) HasLog(level string, message string) bool {
	for _, record := range s.RecordsAt(level) {
		if record.Message == message {
			return true
		}
	}

	return false
}

// HasContextualLog checks if a log with the specified level and message was recorded with a context.
func (s *LoggerSpy) HasContextualLog(level string, message string) bool {
	for _, record := range s.RecordsAt(level) {
		if record.Message == message && record.Context != nil {
			return true
		}
	}

	return false
}

// Reset clears all recorded log calls.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}

var (
	_ commandbus.Logger           = (*LoggerSpy)(nil)
	_ commandbus.ContextualLogger = (*LoggerSpy)(nil)
)
