// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logview

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wingedpig/relief/pkg/client"
)

var csvHeader = []string{"id", "timestamp", "level", "message"}

// Formatter writes log entries in one Format.
type Formatter struct {
	w      io.Writer
	format Format
	header bool
}

// NewFormatter creates a Formatter writing to w.
func NewFormatter(w io.Writer, format Format) *Formatter {
	return &Formatter{w: w, format: format}
}

// WriteEntries writes a batch. JSON is written as one array.
func (f *Formatter) WriteEntries(entries []client.LogEntry) error {
	if f.format == FormatJSON {
		if entries == nil {
			entries = []client.LogEntry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f.w, "%s\n", data)
		return err
	}
	for i := range entries {
		if err := f.WriteEntry(&entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteEntry writes one entry. Streams use it, so JSON degrades to JSON lines.
func (f *Formatter) WriteEntry(entry *client.LogEntry) error {
	switch f.format {
	case FormatJSON, FormatJSONL:
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(f.w, "%s\n", data)
		return err
	case FormatCSV:
		return f.writeCSV(entry)
	case FormatRaw:
		_, err := fmt.Fprintln(f.w, entry.Message)
		return err
	default:
		level := strings.ToUpper(entry.Level)
		if level == "" {
			level = "INFO"
		}
		_, err := fmt.Fprintf(f.w, "%s %-5s %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05.000"), level, entry.Message)
		return err
	}
}

func (f *Formatter) writeCSV(entry *client.LogEntry) error {
	w := csv.NewWriter(f.w)
	if !f.header {
		f.header = true
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	record := []string{
		strconv.FormatInt(entry.ID, 10),
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.Level,
		entry.Message,
	}
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
