package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType represents the pipeline stage an event belongs to
type EventType string

const (
	EventParse     EventType = "parse"
	EventNormalize EventType = "normalize"
	EventScore     EventType = "score"
	EventDatapoint EventType = "datapoint"
	EventArchive   EventType = "archive"
	EventSubmit    EventType = "submit"
	EventWarning   EventType = "warning"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event of a benchmark run
type Event struct {
	Timestamp   time.Time         `json:"ts"`
	RunID       string            `json:"run_id"`
	Level       EventLevel        `json:"level"`
	Event       EventType         `json:"event"`
	Module      string            `json:"module,omitempty"`
	Tool        string            `json:"tool,omitempty"`
	Path        string            `json:"path,omitempty"`
	DatapointID string            `json:"datapoint_id,omitempty"`
	Hash        string            `json:"intermediate_hash,omitempty"`
	Rows        int               `json:"rows,omitempty"`
	Features    int               `json:"features,omitempty"`
	Duration    int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error       string            `json:"error,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file. A nil logger discards events.
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	runID := ulid.Make().String()
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s-%s.jsonl", timestamp, runID[len(runID)-6:])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    runID,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogParse logs a parsed input file
func (l *EventLogger) LogParse(tool, path string, rows int, duration time.Duration, err error) error {
	level, errMsg := levelFor(err)
	return l.Log(&Event{
		Level:    level,
		Event:    EventParse,
		Tool:     tool,
		Path:     path,
		Rows:     rows,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogNormalize logs the outcome of the standard-format conversion
func (l *EventLogger) LogNormalize(module, tool string, rows, features int, dropped map[string]int) error {
	extra := make(map[string]string, len(dropped))
	for k, v := range dropped {
		extra[k] = fmt.Sprintf("%d", v)
	}
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventNormalize,
		Module:   module,
		Tool:     tool,
		Rows:     rows,
		Features: features,
		Extra:    extra,
	})
}

// LogScore logs the size of a scored intermediate table
func (l *EventLogger) LogScore(module, tool string, features int, hash string, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventScore,
		Module:   module,
		Tool:     tool,
		Features: features,
		Hash:     hash,
		Duration: duration.Milliseconds(),
	})
}

// LogDatapoint logs a newly built datapoint
func (l *EventLogger) LogDatapoint(module, id, hash string, nrPrec int) error {
	return l.Log(&Event{
		Level:       LevelInfo,
		Event:       EventDatapoint,
		Module:      module,
		DatapointID: id,
		Hash:        hash,
		Features:    nrPrec,
	})
}

// LogArchive logs an archive load; err is set when the load degraded
func (l *EventLogger) LogArchive(module, source string, datapoints int, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelWarning
		errMsg = err.Error()
	}
	return l.Log(&Event{
		Level:  level,
		Event:  EventArchive,
		Module: module,
		Path:   source,
		Rows:   datapoints,
		Error:  errMsg,
	})
}

// LogSubmit logs a submission attempt
func (l *EventLogger) LogSubmit(module, id, branch, prURL string, err error) error {
	level, errMsg := levelFor(err)
	return l.Log(&Event{
		Level:       level,
		Event:       EventSubmit,
		Module:      module,
		DatapointID: id,
		Error:       errMsg,
		Extra: map[string]string{
			"branch": branch,
			"pr_url": prURL,
		},
	})
}

// LogWarning logs a recoverable condition
func (l *EventLogger) LogWarning(event EventType, message string) error {
	return l.Log(&Event{
		Level: LevelWarning,
		Event: event,
		Error: message,
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

func levelFor(err error) (EventLevel, string) {
	if err != nil {
		return LevelError, err.Error()
	}
	return LevelInfo, ""
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the ULID shared by every event of this logger
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
