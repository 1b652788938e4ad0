package diag

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Level classifies a diagnostic message
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelSuccess
	LevelTitle
)

// String returns the string representation of a Level
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	case LevelTitle:
		return "title"
	default:
		return "unknown"
	}
}

// Message is one structured diagnostic line of a filter report.
type Message struct {
	Level     Level         `json:"level" yaml:"level"`
	Text      string        `json:"text" yaml:"text"`
	Predicate string        `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Count     int           `json:"count,omitempty" yaml:"count,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
	Time      time.Time     `json:"time" yaml:"time"`
}

// Line renders the message the way the report shows it.
func (m Message) Line() string {
	switch m.Level {
	case LevelTitle:
		return fmt.Sprintf("----- %s -----", m.Text)
	case LevelInfo:
		return m.Text
	default:
		return fmt.Sprintf("[%s] %s", strings.ToUpper(m.Level.String()), m.Text)
	}
}

// Sink receives diagnostics from the engine.
type Sink interface {
	Emit(m Message)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(m Message)

// Emit calls f(m)
func (f SinkFunc) Emit(m Message) { f(m) }

// Helpers building messages of each level

func Info(text string) Message    { return Message{Level: LevelInfo, Text: text} }
func Warning(text string) Message { return Message{Level: LevelWarning, Text: text} }
func Error(text string) Message   { return Message{Level: LevelError, Text: text} }
func Success(text string) Message { return Message{Level: LevelSuccess, Text: text} }
func Title(text string) Message   { return Message{Level: LevelTitle, Text: text} }

// Count formats n with thousands separators.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Log keeps the messages of the current filter report in memory.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Emit appends a message, stamping its time if unset.
func (l *Log) Emit(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m.Time.IsZero() {
		m.Time = l.now()
	}
	l.messages = append(l.messages, m)
}

// Messages returns a copy of the stored messages
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of stored messages
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Clear drops every message
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

// Text renders the report, one message per line.
func (l *Log) Text() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var sb strings.Builder
	for _, m := range l.messages {
		sb.WriteString(m.Line())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// LoggerSink forwards diagnostics to a structured logger.
type LoggerSink struct {
	Logger *slog.Logger
}

// Emit logs the message at a level derived from its diagnostic level.
func (s LoggerSink) Emit(m Message) {
	if s.Logger == nil {
		return
	}
	args := make([]any, 0, 6)
	if m.Predicate != "" {
		args = append(args, "predicate", m.Predicate)
	}
	if m.Count != 0 {
		args = append(args, "count", m.Count)
	}
	if m.Elapsed != 0 {
		args = append(args, "elapsed", m.Elapsed)
	}

	switch m.Level {
	case LevelWarning:
		s.Logger.Warn(m.Text, args...)
	case LevelError:
		s.Logger.Error(m.Text, args...)
	case LevelTitle:
		s.Logger.Debug(m.Text, args...)
	default:
		s.Logger.Info(m.Text, args...)
	}
}

// Multi fans a message out to several sinks. Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return multiSink(kept)
}

type multiSink []Sink

func (ms multiSink) Emit(m Message) {
	for _, s := range ms {
		s.Emit(m)
	}
}

// Discard drops every message
var Discard Sink = SinkFunc(func(Message) {})
