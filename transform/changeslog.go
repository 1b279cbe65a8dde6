package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Change is one logged field mutation.
type Change struct {
	Timestamp string `json:"timestamp"`
	Entity    string `json:"entity"`
	RecordID  string `json:"record_id"`
	FieldKey  string `json:"field_key"`
	Old       string `json:"old"`
	New       string `json:"new"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// ChangesLog appends one entry per change, as JSONL or aligned text.
type ChangesLog struct {
	output io.Writer
	format string // "json" or "text"
}

// NewChangesLog creates a log writing to output.
func NewChangesLog(output io.Writer, format string) *ChangesLog {
	if format == "" {
		format = "text"
	}
	return &ChangesLog{output: output, format: format}
}

// OpenChangesLog opens (appending) a changes log file. An empty format
// is inferred from the extension: .json and .jsonl log JSONL,
// anything else text. The returned closer is nil-safe for callers
// that defer it unconditionally.
func OpenChangesLog(path, format string) (*ChangesLog, func() error, error) {
	if format == "" {
		switch filepath.Ext(path) {
		case ".json", ".jsonl":
			format = "json"
		default:
			format = "text"
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening changes log: %w", err)
	}
	return NewChangesLog(f, format), f.Close, nil
}

// Write logs one change. Log errors are swallowed: a failing log
// never fails the update it describes.
func (cl *ChangesLog) Write(change Change) {
	if change.Timestamp == "" {
		change.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if cl.format == "json" {
		data, err := json.Marshal(change)
		if err != nil {
			return
		}
		fmt.Fprintf(cl.output, "%s\n", data)
		return
	}
	suffix := ""
	if change.DryRun {
		suffix = " (dry-run)"
	}
	fmt.Fprintf(cl.output, "%s %s %s %s: %q -> %q%s\n",
		change.Timestamp,
		change.Entity,
		change.RecordID,
		change.FieldKey,
		change.Old,
		change.New,
		suffix,
	)
}
