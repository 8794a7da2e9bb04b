package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Canonical serializes a DecisionRecord to its canonical form: a single JSON
// line with fixed field order and integer-only numeric fields. Two equal
// records always canonicalize to identical bytes.
func Canonical(rec DecisionRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("canonicalize record w=%d workload=%s: %w", rec.W, rec.WorkloadID, err)
	}
	return append(b, '\n'), nil
}

// CanonicalSequence serializes a record sequence to one canonical byte stream.
// Used by the replay verifier for byte-equality comparison.
func CanonicalSequence(recs []DecisionRecord) ([]byte, error) {
	var buf strings.Builder
	for _, rec := range recs {
		line, err := Canonical(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
	}
	return []byte(buf.String()), nil
}

// Writer appends canonical decision records to an underlying sink. The
// decision log is append-only; nothing in the governor reads it back.
type Writer struct {
	w    *bufio.Writer
	file *os.File // nil when wrapping a caller-owned io.Writer
}

// NewWriter wraps an io.Writer as a decision-log sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// OpenWriter opens (or creates) an append-only decision log file.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open decision log %s: %w", path, err)
	}
	return &Writer{w: bufio.NewWriter(f), file: f}, nil
}

// Append writes one record in canonical form.
func (dw *Writer) Append(rec DecisionRecord) error {
	line, err := Canonical(rec)
	if err != nil {
		return err
	}
	if _, err := dw.w.Write(line); err != nil {
		return fmt.Errorf("append decision record: %w", err)
	}
	return nil
}

// Flush drains buffered records to the sink.
func (dw *Writer) Flush() error {
	return dw.w.Flush()
}

// Close flushes and, when the writer owns its file, closes it.
func (dw *Writer) Close() error {
	if err := dw.w.Flush(); err != nil {
		return err
	}
	if dw.file != nil {
		return dw.file.Close()
	}
	return nil
}

// ObservationLine is the replay-input form of a record: the decision log
// stripped to its inputs.
type ObservationLine struct {
	W          int64  `json:"w"`
	WorkloadID string `json:"workload"`
	Usage      int64  `json:"usage"`
}

// ReadRecords parses a decision log back into records. Blank lines are
// skipped; any malformed line is an error, never dropped.
func ReadRecords(r io.Reader) ([]DecisionRecord, error) {
	var recs []DecisionRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec DecisionRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("decision log line %d: %w", lineNo, err)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read decision log: %w", err)
	}
	return recs, nil
}

// ReadObservations parses a stream of observation lines. A full decision log
// is accepted too: the extra fields are simply ignored, so a recorded run can
// be replayed from its own log.
func ReadObservations(r io.Reader) ([]ObservationLine, error) {
	var obs []ObservationLine
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var o ObservationLine
		if err := json.Unmarshal([]byte(line), &o); err != nil {
			return nil, fmt.Errorf("observation line %d: %w", lineNo, err)
		}
		if o.Usage < 0 {
			return nil, fmt.Errorf("observation line %d: negative usage %d", lineNo, o.Usage)
		}
		obs = append(obs, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}
	return obs, nil
}

// WriteObservations emits observation lines in the replay-input format.
func WriteObservations(w io.Writer, obs []ObservationLine) error {
	bw := bufio.NewWriter(w)
	for _, o := range obs {
		b, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal observation w=%d workload=%s: %w", o.W, o.WorkloadID, err)
		}
		if _, err := bw.Write(append(b, '\n')); err != nil {
			return fmt.Errorf("write observation: %w", err)
		}
	}
	return bw.Flush()
}
