// Package trace implements the per-query conversation log: an append-only,
// concurrency-safe record of every cross-agent hop. Each transport call
// produces exactly two entries, one at send time and one at receipt (or
// timeout). Entries are immutable once appended; the log itself lives for
// the duration of one query and is handed back to the caller with the final
// response.
package trace

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Kind distinguishes the two entries a hop produces.
type Kind string

const (
	// KindRequest marks the entry written when a message is sent.
	KindRequest Kind = "request"
	// KindResult marks the entry written when the result (or a synthetic
	// timeout/transport error) is received.
	KindResult Kind = "result"
)

// Entry records one half of a cross-agent hop. Correlate request/result
// pairs by MessageID, not by timestamp: parallel hops may interleave.
type Entry struct {
	Time      time.Time      `json:"time"`
	Kind      Kind           `json:"kind"`
	MessageID string         `json:"message_id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Action    string         `json:"action"`
	Args      map[string]any `json:"args,omitempty"`
	Result    string         `json:"result,omitempty"`
	Err       string         `json:"error,omitempty"`
}

// Format renders an entry in the canonical single-line transcript form.
func (e Entry) Format() string {
	switch e.Kind {
	case KindResult:
		if e.Err != "" {
			return fmt.Sprintf("[A2A] from=%s to=%s action=%s error=%s", e.From, e.To, e.Action, e.Err)
		}
		return fmt.Sprintf("[A2A] from=%s to=%s action=%s result=%s", e.From, e.To, e.Action, e.Result)
	default:
		return fmt.Sprintf("[A2A] from=%s to=%s action=%s args=%s", e.From, e.To, e.Action, formatArgs(e.Args))
	}
}

// formatArgs renders argument maps with stable key order so transcripts are
// diffable between runs.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, args[k])
	}
	b.WriteString("}")
	return b.String()
}

// Log is the append-only accumulator for one query. Append is the only
// mutation and is safe for concurrent use from parallel task dispatch.
// Log must never be shared between queries.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLog creates an empty conversation log.
func NewLog() *Log {
	return &Log{}
}

// Record appends the request-side entry for a hop.
func (l *Log) Record(messageID, from, to, action string, args map[string]any) {
	l.append(Entry{
		Time:      time.Now().UTC(),
		Kind:      KindRequest,
		MessageID: messageID,
		From:      from,
		To:        to,
		Action:    action,
		Args:      copyArgs(args),
	})
}

// RecordResult appends the result-side entry for a hop. From/To describe the
// direction the result travels, i.e. the reverse of the request. Exactly one
// of result/errDetail should be set.
func (l *Log) RecordResult(messageID, from, to, action, result, errDetail string) {
	l.append(Entry{
		Time:      time.Now().UTC(),
		Kind:      KindResult,
		MessageID: messageID,
		From:      from,
		To:        to,
		Action:    action,
		Result:    result,
		Err:       errDetail,
	})
}

func (l *Log) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a snapshot copy of the log so far. The returned slice is
// owned by the caller; later appends do not show up in it.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries recorded so far.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Dump joins all formatted entries with newlines for transcript output.
func (l *Log) Dump() string {
	entries := l.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Format()
	}
	return strings.Join(lines, "\n")
}

func copyArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

// Sink receives a completed query's log entries. Durable transcript storage
// is the sink implementation's responsibility, not the coordination core's.
type Sink interface {
	Flush(entries []Entry) error
}

// WriterSink writes formatted entries to an io.Writer, one per line.
type WriterSink struct {
	W io.Writer
}

// Flush implements Sink.
func (s WriterSink) Flush(entries []Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintln(s.W, e.Format()); err != nil {
			return fmt.Errorf("flush transcript: %w", err)
		}
	}
	return nil
}
